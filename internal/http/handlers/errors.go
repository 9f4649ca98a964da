package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"urlguard/internal/logging"
	"urlguard/internal/permission"
	"urlguard/internal/routes"
)

// writeError maps store and domain errors to a JSON response.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, permission.ErrDuplicateGrant):
		status = http.StatusConflict
	case errors.Is(err, permission.ErrGrantNotFound),
		errors.Is(err, permission.ErrGroupNotFound):
		status = http.StatusNotFound
	case errors.Is(err, permission.ErrInvalidMethod),
		errors.Is(err, permission.ErrInvalidURL),
		errors.Is(err, routes.ErrInvalidPairID):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// idParam parses a positive integer path parameter, answering 400 if it
// is not one.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
