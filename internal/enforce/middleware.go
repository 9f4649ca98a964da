// Package enforce is the gin middleware that applies URL permission
// decisions to incoming requests.
package enforce

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"urlguard/internal/auth"
	"urlguard/internal/logging"
	"urlguard/internal/metrics"
	"urlguard/internal/rbac"
	"urlguard/internal/routes"
	"urlguard/internal/urlnorm"
)

// Policy is the enforcement switchboard.
type Policy struct {
	Enabled        bool
	CheckAllRoutes bool
	// ExemptURLs are prefixes matched against the normalized path with a
	// leading slash, e.g. "/api/v1/auth/".
	ExemptURLs []string
}

// Decider answers permission questions, see rbac.Checker.
type Decider interface {
	IsPermitted(ctx context.Context, p rbac.Principal, url, method string) (bool, error)
}

type Middleware struct {
	policy  Policy
	decider Decider
	table   *routes.Table
	norm    urlnorm.Normalizer
}

func New(policy Policy, decider Decider, table *routes.Table, norm urlnorm.Normalizer) *Middleware {
	return &Middleware{policy: policy, decider: decider, table: table, norm: norm}
}

// Handler returns the gin middleware. It expects auth.Identify to run first.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		path := c.Request.URL.Path
		method := c.Request.Method
		log := logging.Ctx(ctx).With().Str("method", method).Str("path", path).Logger()

		locale := m.norm.Locale(path)
		normalized := m.norm.Normalize(path, locale)

		if m.isExempt("/" + normalized) {
			metrics.RecordEnforcement("exempt", "allow")
			c.Next()
			return
		}

		if !m.policy.Enabled {
			metrics.RecordEnforcement("disabled", "allow")
			c.Next()
			return
		}

		p := auth.PrincipalFrom(c)
		if !p.Authenticated {
			metrics.RecordEnforcement("anonymous", "allow")
			log.Debug().Msg("anonymous request, skipping permission check")
			c.Next()
			return
		}

		route, err := m.resolve(normalized, path)
		if err != nil {
			metrics.RecordEnforcement("route", "not_found")
			log.Debug().Err(err).Msg("route not resolved")
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		// gin answers methods the route does not serve with its own 404/405.
		if !route.Serves(method) {
			metrics.RecordEnforcement("route", "method_not_served")
			log.Debug().Str("route", route.Path).Msg("method not served by route")
			c.Next()
			return
		}
		if !route.Guarded && !m.policy.CheckAllRoutes {
			metrics.RecordEnforcement("route", "allow")
			c.Next()
			return
		}

		p.Locale = locale
		allowed, err := m.decider.IsPermitted(ctx, p, path, method)
		switch {
		case err != nil:
			metrics.RecordEnforcement("engine", "error")
			log.Error().Err(err).Int64("user_id", p.UserID).Msg("permission check failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "permission store unavailable"})
		case !allowed:
			metrics.RecordEnforcement("engine", "deny")
			log.Debug().Int64("user_id", p.UserID).Str("route", route.Path).Msg("permission denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			metrics.RecordEnforcement("engine", "allow")
			log.Debug().Int64("user_id", p.UserID).Str("route", route.Path).Msg("permission granted")
			c.Next()
		}
	}
}

func (m *Middleware) isExempt(path string) bool {
	for _, prefix := range m.policy.ExemptURLs {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// resolve tries the normalized path first and the raw request path second.
func (m *Middleware) resolve(normalized, original string) (routes.Route, error) {
	route, err := m.table.Resolve(normalized)
	if err == nil {
		return route, nil
	}
	if !errors.Is(err, routes.ErrRouteNotResolved) {
		return routes.Route{}, err
	}
	return m.table.Resolve(original)
}
