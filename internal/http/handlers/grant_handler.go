package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"urlguard/internal/models"
	"urlguard/internal/permission"
	"urlguard/internal/routes"
	"urlguard/internal/urlnorm"
)

type grantRequest struct {
	GroupID     int64   `json:"group_id" binding:"required"`
	URL         string  `json:"url" binding:"required"`
	Method      string  `json:"http_method" binding:"required"`
	IsActive    *bool   `json:"is_active"`
	Description *string `json:"description"`
}

// ListGrants returns grants filtered by the optional query parameters
// group_id, http_method, is_active and q (searches group name, url and
// description).
func ListGrants(store *permission.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter permission.GrantFilter
		if s := c.Query("group_id"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
				return
			}
			filter.GroupID = id
		}
		filter.Method = c.Query("http_method")
		if s := c.Query("is_active"); s != "" {
			active, err := strconv.ParseBool(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid is_active"})
				return
			}
			filter.IsActive = &active
		}
		filter.Query = c.Query("q")

		grants, err := store.FindGrants(c.Request.Context(), filter)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"permissions": grants})
	}
}

// CreateGrant adds a grant. With ?upsert=true an existing grant for the
// same group, url and method is updated instead of rejected.
func CreateGrant(db *gorm.DB, store *permission.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req grantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in := permission.GrantInput{
			GroupID:     req.GroupID,
			URL:         req.URL,
			Method:      req.Method,
			Active:      req.IsActive == nil || *req.IsActive,
			Description: req.Description,
		}

		ctx := c.Request.Context()
		var (
			id      int64
			created = true
			err     error
		)
		if c.Query("upsert") == "true" {
			id, created, err = store.UpsertGrant(ctx, in)
		} else {
			id, err = store.CreateGrant(ctx, in)
		}
		if err != nil {
			writeError(c, err)
			return
		}

		action, status := "grants.create", http.StatusCreated
		if !created {
			action, status = "grants.update", http.StatusOK
		}
		recordAudit(c, db, action, "grant", id, map[string]any{
			"group_id":    in.GroupID,
			"url":         in.URL,
			"http_method": in.Method,
			"is_active":   in.Active,
		})
		c.JSON(status, gin.H{"id": id, "created": created})
	}
}

// UpdateGrant toggles is_active or edits the description.
func UpdateGrant(db *gorm.DB, store *permission.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			IsActive    *bool   `json:"is_active"`
			Description *string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		grant, err := store.UpdateGrant(c.Request.Context(), id, permission.GrantPatch{
			IsActive:    req.IsActive,
			Description: req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		recordAudit(c, db, "grants.update", "grant", id, map[string]any{
			"is_active":   req.IsActive,
			"description": req.Description,
		})
		c.JSON(http.StatusOK, gin.H{"permission": grant})
	}
}

func DeleteGrant(db *gorm.DB, store *permission.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := store.DeleteGrant(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		recordAudit(c, db, "grants.delete", "grant", id, nil)
		c.Status(http.StatusNoContent)
	}
}

// GroupPermissions returns the pairs a group holds and the pairs it could
// still be granted, both keyed "{url}|{method}".
func GroupPermissions(db *gorm.DB, store *permission.Store, table *routes.Table, norm urlnorm.Normalizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()

		var group models.Group
		if err := db.WithContext(ctx).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(c, permission.ErrGroupNotFound)
				return
			}
			writeError(c, err)
			return
		}

		grants, err := store.ListGrants(ctx, groupID)
		if err != nil {
			writeError(c, err)
			return
		}
		available, chosen := table.AvailablePairs(norm, grants)
		c.JSON(http.StatusOK, gin.H{
			"group":     group,
			"chosen":    chosen,
			"available": available,
		})
	}
}

// ReplaceGroupPermissions swaps the whole grant set of a group for the
// submitted pair ids in one transaction. The new grants are active.
func ReplaceGroupPermissions(db *gorm.DB, store *permission.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			Pairs []string `json:"pairs"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		inputs := make([]permission.GrantInput, 0, len(req.Pairs))
		for _, id := range req.Pairs {
			url, method, err := routes.ParsePairID(id)
			if err != nil {
				writeError(c, err)
				return
			}
			inputs = append(inputs, permission.GrantInput{URL: url, Method: method, Active: true})
		}

		grants, err := store.ReplaceGroupGrants(c.Request.Context(), groupID, inputs)
		if err != nil {
			writeError(c, err)
			return
		}

		recordAudit(c, db, "grants.replace", "group", groupID, map[string]any{"pairs": req.Pairs})
		c.JSON(http.StatusOK, gin.H{"permissions": grants})
	}
}
