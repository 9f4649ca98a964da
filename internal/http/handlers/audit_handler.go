package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"urlguard/internal/auth"
	"urlguard/internal/logging"
	"urlguard/internal/models"
)

// recordAudit stores an audit entry for the current caller. Failures are
// logged and never fail the request.
func recordAudit(c *gin.Context, db *gorm.DB, action, resourceType string, resourceID int64, meta map[string]any) {
	p := auth.PrincipalFrom(c)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	entry := models.AuditLog{
		UserID:        p.UserID,
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Metadata:      datatypes.JSON(metaJSON),
		IP:            c.ClientIP(),
		UserAgent:     c.GetHeader("User-Agent"),
		InitiatorName: p.Email,
		CreatedAt:     time.Now(),
	}
	if err := db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

// ListAudit returns audit entries newest first. Pagination is by cursor:
// pass the returned next_cursor as after_id to get the following page.
func ListAudit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}

		var afterID int64
		if cursorStr := c.Query("after_id"); cursorStr != "" {
			if parsed, err := strconv.ParseInt(cursorStr, 10, 64); err == nil && parsed > 0 {
				afterID = parsed
			}
		}

		search := strings.TrimSpace(c.Query("q"))

		query := db.WithContext(c.Request.Context()).Model(&models.AuditLog{}).Order("id DESC")
		if afterID > 0 {
			query = query.Where("id < ?", afterID)
		}
		if search != "" {
			like := "%" + search + "%"
			query = query.Where("(initiator_name LIKE ? OR action LIKE ? OR resource_type LIKE ? OR ip LIKE ?)",
				like, like, like, like)
		}

		var logs []models.AuditLog
		if err := query.Limit(limit + 1).Find(&logs).Error; err != nil {
			writeError(c, err)
			return
		}

		var nextCursor *int64
		if len(logs) > limit {
			logs = logs[:limit]
			next := logs[limit-1].ID
			nextCursor = &next
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":        logs,
			"next_cursor": nextCursor,
		})
	}
}
