// Package urlnorm canonicalizes request paths for permission storage and
// lookup. Grants are written and queried through the same Normalizer, so a
// stored url always compares equal to a normalized request path.
package urlnorm

import "strings"

// Normalizer strips locale prefixes and leading slashes.
type Normalizer struct {
	languages       []string
	defaultLanguage string
}

// New returns a Normalizer for the configured language codes. With no
// languages, locale handling is disabled and only slashes are trimmed.
func New(languages []string, defaultLanguage string) Normalizer {
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.Trim(strings.TrimSpace(l), "/"); l != "" {
			langs = append(langs, l)
		}
	}
	return Normalizer{languages: langs, defaultLanguage: defaultLanguage}
}

// Languages returns the configured language codes.
func (n Normalizer) Languages() []string {
	return append([]string(nil), n.languages...)
}

// Normalize returns the canonical form of path for the current locale.
//
// When path starts with "/{locale}/" that prefix is removed, keeping the
// trailing slash, and then every leading slash is trimmed. A path without
// the prefix is returned as-is minus leading slashes; lookups fall back to
// the raw path instead of failing.
func (n Normalizer) Normalize(path, locale string) string {
	if locale != "" && len(n.languages) > 0 {
		prefix := "/" + locale + "/"
		if strings.HasPrefix(path, prefix) {
			path = path[len(prefix)-1:]
		}
	}
	return strings.TrimLeft(path, "/")
}

// StripLanguage removes a "{lang}/" prefix, for any configured language,
// from a route pattern that has no leading slash.
func (n Normalizer) StripLanguage(pattern string) string {
	for _, lang := range n.languages {
		if prefix := lang + "/"; strings.HasPrefix(pattern, prefix) {
			return pattern[len(prefix):]
		}
	}
	return pattern
}

// Locale returns the configured language whose "/{lang}/" prefix starts
// path, or the default language when none matches.
func (n Normalizer) Locale(path string) string {
	for _, lang := range n.languages {
		if strings.HasPrefix(path, "/"+lang+"/") {
			return lang
		}
	}
	return n.defaultLanguage
}

// ForStorage normalizes an admin supplied url before it is persisted:
// leading slashes and any configured language prefix are removed.
func (n Normalizer) ForStorage(url string) string {
	return n.StripLanguage(n.Normalize(url, ""))
}
