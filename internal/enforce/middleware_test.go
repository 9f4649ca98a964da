package enforce

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlguard/internal/auth"
	"urlguard/internal/db/dbtest"
	"urlguard/internal/permission"
	"urlguard/internal/rbac"
	"urlguard/internal/routes"
	"urlguard/internal/urlnorm"
)

type stubDecider struct {
	allowed bool
	err     error
	calls   int
	last    struct {
		url    string
		method string
		p      rbac.Principal
	}
}

func (d *stubDecider) IsPermitted(_ context.Context, p rbac.Principal, url, method string) (bool, error) {
	d.calls++
	d.last.url, d.last.method, d.last.p = url, method, p
	return d.allowed, d.err
}

var member = rbac.Principal{UserID: 1, Email: "u@example.com", Authenticated: true, GroupIDs: []int64{1}}

func newEngine(policy Policy, decider Decider, p rbac.Principal, languages ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	norm := urlnorm.New(languages, "")
	table := routes.NewTable()
	table.Guard("/articles")

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, p)
		c.Next()
	})
	r.Use(New(policy, decider, table, norm).Handler())

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/articles", ok)
	r.POST("/articles", ok)
	r.GET("/dashboard", ok)
	r.GET("/api/v1/auth/login", ok)
	for _, lang := range languages {
		r.GET("/"+lang+"/articles", ok)
		// served only under the prefix
		r.GET("/"+lang+"/only", ok)
		table.Guard("/" + lang + "/only")
	}
	table.Load(r.Routes())
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

var defaultPolicy = Policy{Enabled: true, ExemptURLs: []string{"/api/v1/auth/"}}

func TestGuardedRoute(t *testing.T) {
	deny := &stubDecider{}
	w := serve(newEngine(defaultPolicy, deny, member), http.MethodPost, "/articles")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())
	assert.Equal(t, "/articles", deny.last.url)
	assert.Equal(t, http.MethodPost, deny.last.method)

	allow := &stubDecider{allowed: true}
	w = serve(newEngine(defaultPolicy, allow, member), http.MethodPost, "/articles")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, allow.calls)
}

func TestUnguardedRouteSkipsEngine(t *testing.T) {
	d := &stubDecider{}
	w := serve(newEngine(defaultPolicy, d, member), http.MethodGet, "/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, d.calls)

	checkAll := defaultPolicy
	checkAll.CheckAllRoutes = true
	w = serve(newEngine(checkAll, d, member), http.MethodGet, "/dashboard")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, d.calls)
}

func TestGateOrder(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		p      rbac.Principal
		path   string
	}{
		{"exempt", defaultPolicy, member, "/api/v1/auth/login"},
		{"disabled", Policy{Enabled: false}, member, "/articles"},
		{"anonymous", defaultPolicy, rbac.Anonymous(), "/articles"},
		{"exempt wins over unresolved route", Policy{Enabled: true, ExemptURLs: []string{"/missing"}}, member, "/missing/page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDecider{err: errors.New("must not be called")}
			w := serve(newEngine(tt.policy, d, tt.p), http.MethodGet, tt.path)
			assert.NotEqual(t, http.StatusForbidden, w.Code)
			assert.NotEqual(t, http.StatusServiceUnavailable, w.Code)
			assert.Zero(t, d.calls)
		})
	}
}

func TestSuperuserStillReachesEngine(t *testing.T) {
	d := &stubDecider{allowed: true}
	root := rbac.Principal{UserID: 2, Authenticated: true, IsSuperuser: true}
	w := serve(newEngine(defaultPolicy, d, root), http.MethodGet, "/articles")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, d.calls)
	assert.True(t, d.last.p.IsSuperuser)
}

func TestUnresolvedRoute(t *testing.T) {
	d := &stubDecider{allowed: true}
	w := serve(newEngine(defaultPolicy, d, member), http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no route matches path")
	assert.Zero(t, d.calls)
}

func TestStoreFailureFailsClosed(t *testing.T) {
	d := &stubDecider{allowed: true, err: permission.ErrStoreUnavailable}
	w := serve(newEngine(defaultPolicy, d, member), http.MethodGet, "/articles")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"permission store unavailable"}`, w.Body.String())
}

func TestLocalePrefixedPath(t *testing.T) {
	d := &stubDecider{allowed: true}
	w := serve(newEngine(defaultPolicy, d, member, "es"), http.MethodGet, "/es/articles")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, d.calls, "resolved through the normalized, guarded pattern")
	assert.Equal(t, "es", d.last.p.Locale)
	assert.Equal(t, "/es/articles", d.last.url)
}

func TestResolveFallsBackToRawPath(t *testing.T) {
	d := &stubDecider{}
	w := serve(newEngine(defaultPolicy, d, member, "es"), http.MethodGet, "/es/only")
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 1, d.calls, "the guarded /es/only route was found through the raw path")
	assert.Equal(t, "/es/only", d.last.url)
	assert.Equal(t, "es", d.last.p.Locale)

	allow := &stubDecider{allowed: true}
	w = serve(newEngine(defaultPolicy, allow, member, "es"), http.MethodGet, "/es/only")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMethodNotServedSkipsEngine(t *testing.T) {
	d := &stubDecider{}
	w := serve(newEngine(defaultPolicy, d, member), http.MethodHead, "/articles")
	assert.Equal(t, http.StatusNotFound, w.Code, "gin's own answer, not a permission denial")
	assert.Zero(t, d.calls)

	w = serve(newEngine(defaultPolicy, d, member), http.MethodDelete, "/articles")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, d.calls)
}

func TestEndToEndWithChecker(t *testing.T) {
	gdb := dbtest.New(t)
	norm := urlnorm.New([]string{"es"}, "")
	store := permission.NewStore(gdb, norm)
	editors := dbtest.Group(t, gdb, "Editors")
	auditors := dbtest.Group(t, gdb, "Auditors")

	ctx := context.Background()
	_, err := store.CreateGrant(ctx, permission.GrantInput{GroupID: editors.ID, URL: "/articles", Method: "POST", Active: true})
	require.NoError(t, err)
	_, err = store.CreateGrant(ctx, permission.GrantInput{GroupID: editors.ID, URL: "/articles", Method: "GET", Active: true})
	require.NoError(t, err)
	_, err = store.CreateGrant(ctx, permission.GrantInput{GroupID: auditors.ID, URL: "/reports", Method: "ALL", Active: true})
	require.NoError(t, err)

	checker := &rbac.Checker{Store: store, Normalizer: norm}
	editor := rbac.Principal{UserID: 1, Authenticated: true, GroupIDs: []int64{editors.ID}}
	auditor := rbac.Principal{UserID: 2, Authenticated: true, GroupIDs: []int64{auditors.ID}}

	build := func(p rbac.Principal) *gin.Engine {
		gin.SetMode(gin.TestMode)
		table := routes.NewTable()
		table.Guard("/articles", "/reports")
		r := gin.New()
		r.Use(func(c *gin.Context) { auth.SetPrincipal(c, p); c.Next() })
		r.Use(New(defaultPolicy, checker, table, norm).Handler())
		ok := func(c *gin.Context) { c.Status(http.StatusOK) }
		for _, prefix := range []string{"", "/es"} {
			r.GET(prefix+"/articles", ok)
			r.POST(prefix+"/articles", ok)
			r.DELETE(prefix+"/articles", ok)
			r.GET(prefix+"/reports", ok)
			r.DELETE(prefix+"/reports", ok)
		}
		table.Load(r.Routes())
		return r
	}

	ed := build(editor)
	assert.Equal(t, http.StatusOK, serve(ed, http.MethodPost, "/articles").Code)
	assert.Equal(t, http.StatusOK, serve(ed, http.MethodGet, "/es/articles").Code)
	assert.Equal(t, http.StatusForbidden, serve(ed, http.MethodDelete, "/articles").Code)
	assert.Equal(t, http.StatusForbidden, serve(ed, http.MethodGet, "/reports").Code)

	au := build(auditor)
	assert.Equal(t, http.StatusOK, serve(au, http.MethodGet, "/reports").Code)
	assert.Equal(t, http.StatusOK, serve(au, http.MethodDelete, "/reports").Code)
	assert.Equal(t, http.StatusForbidden, serve(au, http.MethodGet, "/articles").Code)
}
