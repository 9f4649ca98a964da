package routes

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlguard/internal/models"
	"urlguard/internal/urlnorm"
)

func TestParsePairID(t *testing.T) {
	url, method, err := ParsePairID("articles/:id|DELETE")
	require.NoError(t, err)
	assert.Equal(t, "articles/:id", url)
	assert.Equal(t, "DELETE", method)

	for _, bad := range []string{"", "articles", "|GET", "articles|"} {
		_, _, err := ParsePairID(bad)
		assert.ErrorIs(t, err, ErrInvalidPairID, bad)
	}
}

func TestAvailablePairs(t *testing.T) {
	table := NewTable()
	table.Add(http.MethodGet, "/articles")
	table.Add(http.MethodPost, "/articles")
	table.Add(http.MethodGet, "/es/reports")
	table.Add(http.MethodGet, "/")
	table.Add(http.MethodDelete, "/articles/:id")
	table.Add(http.MethodGet, "/files/*path")

	norm := urlnorm.New([]string{"es"}, "es")
	chosen := []models.PermissionGrant{
		{ID: 5, URL: "articles", Method: models.MethodPost, IsActive: true},
	}

	available, selected := table.AvailablePairs(norm, chosen)

	var ids []string
	for _, p := range available {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{
		"articles|GET", "articles|ALL",
		"reports|GET", "reports|ALL",
	}, ids)

	require.Len(t, selected, 1)
	assert.Equal(t, "articles|POST", selected[0].ID)
	assert.Equal(t, int64(5), selected[0].GrantID)
	require.NotNil(t, selected[0].IsActive)
	assert.True(t, *selected[0].IsActive)
}

func TestHasParams(t *testing.T) {
	assert.True(t, HasParams("articles/:id"))
	assert.True(t, HasParams("/files/*path"))
	assert.False(t, HasParams("articles"))
	assert.False(t, HasParams("api/v1/audit"))
	assert.False(t, HasParams("notes/a:b"))
}
