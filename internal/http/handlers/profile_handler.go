package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"urlguard/internal/auth"
	"urlguard/internal/models"
)

// MeHandler returns the current user with their groups.
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.PrincipalFrom(c)

		var user models.User
		if err := db.WithContext(c.Request.Context()).Preload("Groups").First(&user, p.UserID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":      user,
			"group_ids": p.GroupIDs,
		})
	}
}
