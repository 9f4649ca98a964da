package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"urlguard/internal/models"
	"urlguard/internal/rbac"
	"urlguard/internal/routes"
	"urlguard/internal/urlnorm"
)

type decider interface {
	IsPermitted(ctx context.Context, p rbac.Principal, url, method string) (bool, error)
}

// CheckPermission answers whether a user may call url with method, the
// same way the enforcement middleware would on a guarded route.
func CheckPermission(db *gorm.DB, checker decider, norm urlnorm.Normalizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64  `json:"user_id" binding:"required"`
			URL    string `json:"url" binding:"required"`
			Method string `json:"method" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		method, ok := models.ParseHTTPMethod(req.Method)
		if !ok || method == models.MethodAll {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid method"})
			return
		}

		ctx := c.Request.Context()
		var user models.User
		if err := db.WithContext(ctx).Preload("Groups").First(&user, req.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			writeError(c, err)
			return
		}

		p := rbac.Anonymous()
		if user.Status == models.UserActive {
			p = rbac.Principal{
				UserID:        user.ID,
				Email:         user.Email,
				Authenticated: true,
				IsSuperuser:   user.IsSuperuser,
				GroupIDs:      user.GroupIDs(),
			}
		}
		p.Locale = norm.Locale(req.URL)

		allowed, err := checker.IsPermitted(ctx, p, req.URL, string(method))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"allowed":     allowed,
			"user_id":     user.ID,
			"url":         norm.Normalize(req.URL, p.Locale),
			"http_method": method,
		})
	}
}

// ListRoutes returns the routes served by the engine and whether each one
// requires a permission check.
func ListRoutes(table *routes.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"routes": table.ListKnownRoutes()})
	}
}
