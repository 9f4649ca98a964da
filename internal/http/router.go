package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"urlguard/internal/auth"
	"urlguard/internal/enforce"
	"urlguard/internal/http/handlers"
	"urlguard/internal/models"
	"urlguard/internal/permission"
	"urlguard/internal/rbac"
	"urlguard/internal/routes"
	"urlguard/internal/urlnorm"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB         *gorm.DB
	Store      *permission.Store
	Checker    *rbac.Checker
	Normalizer urlnorm.Normalizer
	Policy     enforce.Policy
	JWTSecret  string
	TokenTTL   time.Duration
}

// GuardedRoutes opt in to URL permission checks when check-all is off.
var GuardedRoutes = []string{
	"/articles",
	"/articles/:id",
	"/reports",
	"/api/v1/routes",
	"/api/v1/audit",
}

// NewRouter builds the engine and the route table the enforcement
// middleware resolves requests against.
func NewRouter(d Deps) (*gin.Engine, *routes.Table) {
	table := routes.NewTable()
	table.Guard(GuardedRoutes...)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	r.Use(auth.Identify(d.DB, d.JWTSecret))
	r.Use(enforce.New(d.Policy, d.Checker, table, d.Normalizer).Handler())

	r.GET("/healthz", healthz(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Demo content, also served under every configured language prefix.
	articles := handlers.NewArticles()
	content := func(g *gin.RouterGroup) {
		g.GET("/articles", articles.List())
		g.POST("/articles", articles.Create())
		g.DELETE("/articles/:id", articles.Delete())
		g.Any("/reports", handlers.Reports())
	}
	content(&r.RouterGroup)
	for _, lang := range d.Normalizer.Languages() {
		content(r.Group("/" + lang))
	}

	api := r.Group("/api/v1")
	api.POST("/auth/login", handlers.LoginHandler(d.DB, d.JWTSecret, d.TokenTTL))
	api.POST("/auth/logout", handlers.LogoutHandler())

	authed := api.Group("", auth.RequireAuth())
	{
		authed.GET("/me", handlers.MeHandler(d.DB))
		authed.GET("/routes", handlers.ListRoutes(table))
		authed.GET("/audit", handlers.ListAudit(d.DB))
	}

	admin := authed.Group("", auth.RequireSuperuser())
	{
		// Groups
		admin.GET("/groups", handlers.ListGroups(d.DB))
		admin.POST("/groups", handlers.CreateGroup(d.DB))
		admin.DELETE("/groups/:id", handlers.DeleteGroup(d.DB, d.Store))
		admin.GET("/groups/:id/permissions", handlers.GroupPermissions(d.DB, d.Store, table, d.Normalizer))
		admin.PUT("/groups/:id/permissions", handlers.ReplaceGroupPermissions(d.DB, d.Store))

		// Grants
		admin.GET("/permissions", handlers.ListGrants(d.Store))
		admin.POST("/permissions", handlers.CreateGrant(d.DB, d.Store))
		admin.PATCH("/permissions/:id", handlers.UpdateGrant(d.DB, d.Store))
		admin.DELETE("/permissions/:id", handlers.DeleteGrant(d.DB, d.Store))
		admin.POST("/permissions/check", handlers.CheckPermission(d.DB, d.Checker, d.Normalizer))

		// Users
		admin.GET("/users", handlers.ListUsers(d.DB))
		admin.POST("/users", handlers.CreateUser(d.DB))
		admin.PUT("/users/:id/groups", handlers.AssignGroups(d.DB))
		admin.POST("/users/:id/activate", handlers.SetUserStatus(d.DB, models.UserActive))
		admin.POST("/users/:id/deactivate", handlers.SetUserStatus(d.DB, models.UserSuspended))
	}

	table.Load(r.Routes())
	return r, table
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
