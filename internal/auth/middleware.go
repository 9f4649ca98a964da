package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"urlguard/internal/logging"
	"urlguard/internal/models"
	"urlguard/internal/rbac"
)

const (
	principalKey = "principal"
	claimsKey    = "claims"
)

// Identify returns a Gin middleware that resolves the caller from a JWT in
// the Authorization header or the "token" cookie. Missing or bad
// credentials leave the caller anonymous; rejecting is up to RequireAuth
// and the enforcement layer.
func Identify(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetPrincipal(c, rbac.Anonymous())

		tokenStr := tokenFromRequest(c)
		if tokenStr == "" {
			c.Next()
			return
		}

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			logging.Ctx(c.Request.Context()).Debug().Err(err).Msg("ignoring credentials")
			c.Next()
			return
		}

		var user models.User
		err = db.WithContext(c.Request.Context()).Preload("Groups").First(&user, claims.UserID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			logging.Ctx(c.Request.Context()).Debug().Int64("user_id", claims.UserID).Msg("token user not found")
			c.Next()
			return
		case err != nil:
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("load user")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity store unavailable"})
			return
		}

		if user.Status != models.UserActive {
			logging.Ctx(c.Request.Context()).Debug().Int64("user_id", user.ID).Msg("account suspended")
			c.Next()
			return
		}

		c.Set(claimsKey, claims)
		SetPrincipal(c, rbac.Principal{
			UserID:        user.ID,
			Email:         user.Email,
			Authenticated: true,
			IsSuperuser:   user.IsSuperuser,
			GroupIDs:      user.GroupIDs(),
		})
		c.Next()
	}
}

// RequireAuth rejects anonymous callers.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c).Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireSuperuser rejects everyone but superusers. Use after RequireAuth.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if !p.Authenticated || !p.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superuser required"})
			return
		}
		c.Next()
	}
}

// SetPrincipal stores p on the request context.
func SetPrincipal(c *gin.Context, p rbac.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the caller set by Identify, or an anonymous one.
func PrincipalFrom(c *gin.Context) rbac.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(rbac.Principal); ok {
			return p
		}
	}
	return rbac.Anonymous()
}

// ClaimsFrom returns the validated token claims, if any.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*Claims)
	return cl, ok
}
