package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"urlguard/internal/models"
	"urlguard/internal/permission"
)

func ListGroups(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var groups []models.Group
		if err := db.WithContext(c.Request.Context()).Order("name").Find(&groups).Error; err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
	}
}

func CreateGroup(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		group := models.Group{
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
		}
		if err := db.WithContext(c.Request.Context()).Create(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "group already exists"})
				return
			}
			writeError(c, err)
			return
		}

		recordAudit(c, db, "groups.create", "group", group.ID, map[string]any{"name": group.Name})
		c.JSON(http.StatusCreated, gin.H{"group": group})
	}
}

// DeleteGroup removes a group, its grants, and its memberships.
func DeleteGroup(db *gorm.DB, store *permission.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := store.DeleteGroup(c.Request.Context(), groupID); err != nil {
			writeError(c, err)
			return
		}
		recordAudit(c, db, "groups.delete", "group", groupID, nil)
		c.Status(http.StatusNoContent)
	}
}
