package routes

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable() *Table {
	t := NewTable()
	t.Add(http.MethodGet, "/articles")
	t.Add(http.MethodPost, "/articles")
	t.Add(http.MethodGet, "/articles/:id")
	t.Add(http.MethodGet, "/articles/featured")
	t.Add(http.MethodGet, "/reports")
	t.Add(http.MethodGet, "/static/*filepath")
	t.Add(http.MethodGet, "/")
	return t
}

func TestResolve(t *testing.T) {
	table := newTestTable()

	tests := []struct {
		path string
		want string
	}{
		{"/articles", "/articles"},
		{"articles", "/articles"},
		{"/articles/12", "/articles/:id"},
		{"/articles/featured", "/articles/featured"},
		{"/static/css/site.css", "/static/*filepath"},
		{"/", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, err := table.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Path)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	table := newTestTable()
	for _, p := range []string{"/missing", "/articles/12/edit", "/es/articles", "/articles/"} {
		_, err := table.Resolve(p)
		assert.ErrorIs(t, err, ErrRouteNotResolved, p)
	}
}

func TestResolve_BacktracksFromStaticToParam(t *testing.T) {
	table := NewTable()
	table.Add(http.MethodGet, "/a/b/c")
	table.Add(http.MethodGet, "/a/:x/d")

	r, err := table.Resolve("/a/b/d")
	require.NoError(t, err)
	assert.Equal(t, "/a/:x/d", r.Path)
}

func TestAdd_MergesMethods(t *testing.T) {
	table := newTestTable()
	table.Add(http.MethodGet, "/articles")

	r, err := table.Resolve("/articles")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "POST"}, r.Methods)
}

func TestGuard(t *testing.T) {
	table := NewTable()
	table.Guard("/reports")
	table.Add(http.MethodGet, "/articles")
	table.Add(http.MethodGet, "/reports")
	table.Guard("articles")

	a, err := table.Resolve("/articles")
	require.NoError(t, err)
	assert.True(t, a.Guarded)

	r, err := table.Resolve("/reports")
	require.NoError(t, err)
	assert.True(t, r.Guarded, "guard before add")
}

func TestListKnownRoutes(t *testing.T) {
	table := newTestTable()
	var paths []string
	for _, r := range table.ListKnownRoutes() {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{
		"/", "/articles", "/articles/:id", "/articles/featured", "/reports", "/static/*filepath",
	}, paths)
}

func TestLoad_FromGinEngine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	noop := func(*gin.Context) {}
	r.GET("/articles", noop)
	r.DELETE("/articles/:id", noop)
	api := r.Group("/api/v1")
	api.GET("/me", noop)

	table := NewTable()
	table.Load(r.Routes())

	route, err := table.Resolve("/articles/9")
	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE"}, route.Methods)

	_, err = table.Resolve("/api/v1/me")
	assert.NoError(t, err)
}

func TestRouteServes(t *testing.T) {
	table := newTestTable()
	r, err := table.Resolve("/articles")
	require.NoError(t, err)
	assert.True(t, r.Serves("GET"))
	assert.True(t, r.Serves("post"))
	assert.False(t, r.Serves(http.MethodHead))
	assert.False(t, r.Serves(http.MethodDelete))
}
