// Package permission stores group URL permission grants and answers the
// active-grant existence query used by the decision engine.
package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"urlguard/internal/models"
	"urlguard/internal/urlnorm"
)

// GrantInput describes a grant to create. URL is normalized before it is
// persisted and Method is uppercased.
type GrantInput struct {
	GroupID     int64
	URL         string
	Method      string
	Active      bool
	Description *string
}

// GrantPatch edits the mutable fields of a grant. Nil fields are left alone.
type GrantPatch struct {
	IsActive    *bool
	Description *string
}

// Store is the gorm backed permission store. It is safe for concurrent use.
type Store struct {
	db   *gorm.DB
	norm urlnorm.Normalizer

	mu       sync.RWMutex
	onChange []func(context.Context)
}

func NewStore(db *gorm.DB, norm urlnorm.Normalizer) *Store {
	return &Store{db: db, norm: norm}
}

// OnChange registers fn to run after every successful write.
func (s *Store) OnChange(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) changed(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.onChange {
		fn(ctx)
	}
}

func (s *Store) prepare(in GrantInput) (models.PermissionGrant, error) {
	method, ok := models.ParseHTTPMethod(in.Method)
	if !ok {
		return models.PermissionGrant{}, fmt.Errorf("%w: %q", ErrInvalidMethod, in.Method)
	}
	url := s.norm.ForStorage(strings.TrimSpace(in.URL))
	if url == "" {
		return models.PermissionGrant{}, ErrInvalidURL
	}
	return models.PermissionGrant{
		GroupID:     in.GroupID,
		URL:         url,
		Method:      method,
		IsActive:    in.Active,
		Description: in.Description,
	}, nil
}

func groupExists(tx *gorm.DB, groupID int64) error {
	var n int64
	if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func findTuple(tx *gorm.DB, g models.PermissionGrant) (models.PermissionGrant, bool, error) {
	var existing models.PermissionGrant
	err := tx.Where("group_id = ? AND url = ? AND http_method = ?", g.GroupID, g.URL, g.Method).
		Limit(1).Find(&existing).Error
	if err != nil {
		return existing, false, err
	}
	return existing, existing.ID != 0, nil
}

// CreateGrant inserts a grant. It fails with ErrDuplicateGrant when the
// group already holds a grant for the same normalized url and method.
func (s *Store) CreateGrant(ctx context.Context, in GrantInput) (int64, error) {
	grant, err := s.prepare(in)
	if err != nil {
		return 0, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := groupExists(tx, grant.GroupID); err != nil {
			return err
		}
		if _, found, err := findTuple(tx, grant); err != nil {
			return err
		} else if found {
			return ErrDuplicateGrant
		}
		return tx.Create(&grant).Error
	})
	if err != nil {
		return 0, storeErr(err)
	}
	s.changed(ctx)
	return grant.ID, nil
}

// UpsertGrant inserts a grant or, when the tuple already exists, updates
// its active flag and description. created reports which of the two happened.
func (s *Store) UpsertGrant(ctx context.Context, in GrantInput) (id int64, created bool, err error) {
	grant, err := s.prepare(in)
	if err != nil {
		return 0, false, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := groupExists(tx, grant.GroupID); err != nil {
			return err
		}
		existing, found, err := findTuple(tx, grant)
		if err != nil {
			return err
		}
		if !found {
			created = true
			return tx.Create(&grant).Error
		}
		grant.ID = existing.ID
		return tx.Model(&existing).Updates(map[string]any{
			"is_active":   grant.IsActive,
			"description": grant.Description,
		}).Error
	})
	if err != nil {
		return 0, false, storeErr(err)
	}
	s.changed(ctx)
	return grant.ID, created, nil
}

// UpdateGrant applies patch to the grant with id.
func (s *Store) UpdateGrant(ctx context.Context, id int64, patch GrantPatch) (models.PermissionGrant, error) {
	var grant models.PermissionGrant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&grant, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGrantNotFound
			}
			return err
		}
		updates := map[string]any{}
		if patch.IsActive != nil {
			updates["is_active"] = *patch.IsActive
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&grant).Updates(updates).Error
	})
	if err != nil {
		return models.PermissionGrant{}, storeErr(err)
	}
	s.changed(ctx)
	return grant, nil
}

// DeleteGrant removes a single grant.
func (s *Store) DeleteGrant(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.PermissionGrant{}, id)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrGrantNotFound
	}
	s.changed(ctx)
	return nil
}

// DeleteGrantsForGroup removes every grant of a group.
func (s *Store) DeleteGrantsForGroup(ctx context.Context, groupID int64) error {
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.PermissionGrant{}).Error
	if err != nil {
		return storeErr(err)
	}
	s.changed(ctx)
	return nil
}

// ReplaceGroupGrants deletes all grants of a group and inserts inputs in a
// single transaction, so readers see either the old set or the new one.
// Repeated (url, method) pairs in inputs are collapsed.
func (s *Store) ReplaceGroupGrants(ctx context.Context, groupID int64, inputs []GrantInput) ([]models.PermissionGrant, error) {
	grants := make([]models.PermissionGrant, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		in.GroupID = groupID
		g, err := s.prepare(in)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[g.PairID()]; dup {
			continue
		}
		seen[g.PairID()] = struct{}{}
		grants = append(grants, g)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := groupExists(tx, groupID); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.PermissionGrant{}).Error; err != nil {
			return err
		}
		if len(grants) == 0 {
			return nil
		}
		return tx.Create(&grants).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	s.changed(ctx)
	return grants, nil
}

// GrantFilter narrows FindGrants. Zero fields match everything.
type GrantFilter struct {
	GroupID  int64
	Method   string
	IsActive *bool
	// Query is a case-insensitive substring of the group name, url or
	// description.
	Query string
}

// ListGrants returns the grants of a group, or of every group when groupID
// is 0, ordered by group name then url.
func (s *Store) ListGrants(ctx context.Context, groupID int64) ([]models.PermissionGrant, error) {
	return s.FindGrants(ctx, GrantFilter{GroupID: groupID})
}

// FindGrants returns the grants matching f, ordered like ListGrants.
func (s *Store) FindGrants(ctx context.Context, f GrantFilter) ([]models.PermissionGrant, error) {
	q := s.db.WithContext(ctx).
		Preload("Group").
		Joins("JOIN `groups` g ON g.id = group_url_permissions.group_id").
		Order("g.name, group_url_permissions.url, group_url_permissions.http_method")
	if f.GroupID != 0 {
		q = q.Where("group_url_permissions.group_id = ?", f.GroupID)
	}
	if f.Method != "" {
		method, ok := models.ParseHTTPMethod(f.Method)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, f.Method)
		}
		q = q.Where("group_url_permissions.http_method = ?", method)
	}
	if f.IsActive != nil {
		q = q.Where("group_url_permissions.is_active = ?", *f.IsActive)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(g.name) LIKE ? OR LOWER(group_url_permissions.url) LIKE ? OR LOWER(group_url_permissions.description) LIKE ?)",
			like, like, like)
	}
	var grants []models.PermissionGrant
	if err := q.Find(&grants).Error; err != nil {
		return nil, storeErr(err)
	}
	return grants, nil
}

// QueryActiveGrant reports whether an active grant exists for any of
// groupIDs with the exact normalized url and either the method or ALL.
func (s *Store) QueryActiveGrant(ctx context.Context, groupIDs []int64, url, method string) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}
	methods := []string{strings.ToUpper(method), string(models.MethodAll)}

	var found int
	err := s.db.WithContext(ctx).
		Model(&models.PermissionGrant{}).
		Select("1").
		Where("group_id IN ? AND url = ? AND is_active = ? AND http_method IN ?",
			groupIDs, s.norm.Normalize(url, ""), true, methods).
		Limit(1).
		Scan(&found).Error
	if err != nil {
		return false, storeErr(err)
	}
	return found == 1, nil
}

// DeleteGroup removes a group together with its grants and memberships.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&models.PermissionGrant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.UserGroup{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Group{}, groupID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		return storeErr(err)
	}
	s.changed(ctx)
	return nil
}
