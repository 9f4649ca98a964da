// Package seed creates the initial superuser, demo groups, and demo grants.
// Every step is idempotent.
package seed

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"urlguard/internal/logging"
	"urlguard/internal/models"
	"urlguard/internal/permission"
)

type Options struct {
	AdminEmail    string
	AdminPassword string
}

type demoGrant struct {
	group  string
	url    string
	method models.HTTPMethod
}

var demoGroups = []models.Group{
	{Name: "Editors", Description: "Write access to articles"},
	{Name: "Auditors", Description: "Read access to reports and the audit trail"},
}

var demoGrants = []demoGrant{
	{"Editors", "articles", models.MethodGet},
	{"Editors", "articles", models.MethodPost},
	{"Auditors", "reports", models.MethodAll},
	{"Auditors", "api/v1/audit", models.MethodGet},
}

func FirstSetup(ctx context.Context, db *gorm.DB, store *permission.Store, opts Options) error {
	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		return errors.New("seed: admin email and password are required")
	}

	groupIDs := map[string]int64{}
	for _, g := range demoGroups {
		group := g
		if err := db.WithContext(ctx).Where("name = ?", group.Name).FirstOrCreate(&group).Error; err != nil {
			return fmt.Errorf("seed group %s: %w", group.Name, err)
		}
		groupIDs[group.Name] = group.ID
	}

	// Existing grants keep their state so an admin's soft-disable survives
	// restarts.
	for _, dg := range demoGrants {
		var n int64
		err := db.WithContext(ctx).Model(&models.PermissionGrant{}).
			Where("group_id = ? AND url = ? AND http_method = ?", groupIDs[dg.group], dg.url, dg.method).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("seed grant %s %s: %w", dg.method, dg.url, err)
		}
		if n > 0 {
			continue
		}
		_, err = store.CreateGrant(ctx, permission.GrantInput{
			GroupID: groupIDs[dg.group],
			URL:     dg.url,
			Method:  string(dg.method),
			Active:  true,
		})
		if err != nil && !errors.Is(err, permission.ErrDuplicateGrant) {
			return fmt.Errorf("seed grant %s %s: %w", dg.method, dg.url, err)
		}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{
		Email:        opts.AdminEmail,
		Name:         "Admin User",
		Status:       models.UserActive,
		IsSuperuser:  true,
		PasswordHash: string(passHash),
	}
	if err := db.WithContext(ctx).Where("email = ?", opts.AdminEmail).FirstOrCreate(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	logging.Info().
		Str("admin", opts.AdminEmail).
		Int("groups", len(demoGroups)).
		Int("grants", len(demoGrants)).
		Msg("seed complete")
	return nil
}
