package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := New([]string{"en", "es"}, "en")

	tests := []struct {
		name   string
		path   string
		locale string
		want   string
	}{
		{"locale prefix stripped", "/es/articles", "es", "articles"},
		{"nested path keeps rest", "/es/articles/12/edit/", "es", "articles/12/edit/"},
		{"leading slash only", "/articles", "es", "articles"},
		{"other locale untouched", "/en/articles", "es", "en/articles"},
		{"no locale given", "/es/articles", "", "es/articles"},
		{"already normalized", "articles", "es", "articles"},
		{"locale without trailing slash is not a prefix", "/es", "es", "es"},
		{"locale root", "/es/", "es", ""},
		{"multiple leading slashes", "//reports", "", "reports"},
		{"empty", "", "es", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.path, tt.locale))
		})
	}
}

func TestNormalize_NoLanguagesConfigured(t *testing.T) {
	n := New(nil, "")
	assert.Equal(t, "es/articles", n.Normalize("/es/articles", "es"))
	assert.Equal(t, "articles", n.Normalize("/articles", ""))
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New([]string{"en", "es"}, "en")
	paths := []string{
		"", "/", "//", "/es/", "/es//es/x", "/es/es/articles", "es/articles",
		"/articles", "articles/", "/en/reports/1", "///a//b", "/es",
	}
	for _, locale := range []string{"", "en", "es"} {
		for _, p := range paths {
			once := n.Normalize(p, locale)
			assert.Equal(t, once, n.Normalize(once, locale), "path %q locale %q", p, locale)
		}
	}
}

// A path whose locale prefix does not match is used raw rather than
// rejected. This pins the fail-open fallback on purpose.
func TestNormalize_FallbackToRawPath(t *testing.T) {
	n := New([]string{"es"}, "es")
	assert.Equal(t, "fr/articles", n.Normalize("/fr/articles", "es"))
}

func TestStripLanguage(t *testing.T) {
	n := New([]string{"en", "es"}, "")
	assert.Equal(t, "articles/", n.StripLanguage("es/articles/"))
	assert.Equal(t, "articles/", n.StripLanguage("articles/"))
	assert.Equal(t, "english/", n.StripLanguage("english/"))
}

func TestLocale(t *testing.T) {
	n := New([]string{"en", "es"}, "en")
	assert.Equal(t, "es", n.Locale("/es/articles"))
	assert.Equal(t, "en", n.Locale("/articles"))
	assert.Equal(t, "", New(nil, "").Locale("/es/articles"))
}

func TestForStorage_MatchesLookup(t *testing.T) {
	n := New([]string{"en", "es"}, "en")
	stored := n.ForStorage("/es/articles")
	assert.Equal(t, "articles", stored)
	assert.Equal(t, stored, n.Normalize("/es/articles", n.Locale("/es/articles")))
	assert.Equal(t, stored, n.Normalize("/articles", n.Locale("/articles")))
}

func TestNew_CleansLanguages(t *testing.T) {
	n := New([]string{" es ", "/en/", ""}, "en")
	assert.Equal(t, []string{"es", "en"}, n.Languages())
}
