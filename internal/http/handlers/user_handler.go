package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"urlguard/internal/models"
)

// ListUsers returns all users with their groups.
func ListUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var users []models.User
		if err := db.WithContext(c.Request.Context()).Preload("Groups").Order("id").Find(&users).Error; err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// CreateUser inserts a new user, optionally placing them in groups.
func CreateUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Email       string  `json:"email" binding:"required,email"`
			Name        string  `json:"name" binding:"required"`
			Password    string  `json:"password" binding:"required"`
			IsSuperuser bool    `json:"is_superuser"`
			GroupIDs    []int64 `json:"group_ids"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in.Email = strings.TrimSpace(strings.ToLower(in.Email))
		in.Name = strings.TrimSpace(in.Name)

		if len(in.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}

		ctx := c.Request.Context()
		groups, err := loadGroups(db.WithContext(ctx), in.GroupIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}

		user := models.User{
			Email:        in.Email,
			Name:         in.Name,
			Status:       models.UserActive,
			IsSuperuser:  in.IsSuperuser,
			PasswordHash: string(hash),
			Groups:       groups,
		}
		if err := db.WithContext(ctx).Omit("Groups.*").Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
				return
			}
			writeError(c, err)
			return
		}

		recordAudit(c, db, "users.create", "user", user.ID, map[string]any{
			"email":        user.Email,
			"is_superuser": user.IsSuperuser,
			"group_ids":    user.GroupIDs(),
		})
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// AssignGroups replaces the group memberships of a user.
func AssignGroups(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var in struct {
			GroupIDs []int64 `json:"group_ids"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		var user models.User
		if err := db.WithContext(ctx).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			writeError(c, err)
			return
		}

		groups, err := loadGroups(db.WithContext(ctx), in.GroupIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := db.WithContext(ctx).Model(&user).Association("Groups").Replace(groups); err != nil {
			writeError(c, err)
			return
		}

		recordAudit(c, db, "users.assign_groups", "user", user.ID, map[string]any{"group_ids": in.GroupIDs})
		user.Groups = groups
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// SetUserStatus activates or suspends a user. Suspended users are
// treated as anonymous by the identity middleware.
func SetUserStatus(db *gorm.DB, status models.UserStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c, "id")
		if !ok {
			return
		}
		res := db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", userID).Update("status", status)
		if res.Error != nil {
			writeError(c, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		recordAudit(c, db, "users.status", "user", userID, map[string]any{"status": status})
		c.JSON(http.StatusOK, gin.H{"id": userID, "status": status})
	}
}

var errUnknownGroup = errors.New("unknown group id")

// loadGroups fetches groups by id and fails if any id does not exist.
func loadGroups(db *gorm.DB, ids []int64) ([]models.Group, error) {
	groups := []models.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	unique := map[int64]struct{}{}
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	if err := db.Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	if len(groups) != len(unique) {
		return nil, errUnknownGroup
	}
	return groups, nil
}
