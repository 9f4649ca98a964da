package routes

import (
	"errors"
	"sort"
	"strings"

	"urlguard/internal/models"
	"urlguard/internal/urlnorm"
)

// ErrInvalidPairID is returned for ids that are not "{url}|{method}".
var ErrInvalidPairID = errors.New("routes: pair id must be url|method")

// Pair is a selectable (url, method) combination in the admin API.
type Pair struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Method   string `json:"http_method"`
	GrantID  int64  `json:"grant_id,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// PairID joins url and method as "{url}|{method}".
func PairID(url, method string) string {
	return url + "|" + method
}

// ParsePairID splits a "{url}|{method}" id.
func ParsePairID(id string) (url, method string, err error) {
	i := strings.LastIndex(id, "|")
	if i <= 0 || i == len(id)-1 {
		return "", "", ErrInvalidPairID
	}
	return id[:i], id[i+1:], nil
}

var methodRank = func() map[string]int {
	m := map[string]int{}
	for i, hm := range models.HTTPMethods {
		m[string(hm)] = i
	}
	return m
}()

func sortPairs(ps []Pair) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].URL != ps[j].URL {
			return ps[i].URL < ps[j].URL
		}
		return methodRank[ps[i].Method] < methodRank[ps[j].Method]
	})
}

// HasParams reports whether path contains a :param or *wildcard segment.
// Such routes never equal a concrete request path under exact matching.
func HasParams(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			return true
		}
	}
	return false
}

// AvailablePairs lists the (url, method) pairs a group could be granted,
// minus those in chosen. Each known route without path parameters
// contributes its own methods plus ALL; urls are stored form: no leading
// slash, no language prefix.
func (t *Table) AvailablePairs(norm urlnorm.Normalizer, chosen []models.PermissionGrant) (available, selected []Pair) {
	selected = make([]Pair, 0, len(chosen))
	taken := make(map[string]bool, len(chosen))
	for _, g := range chosen {
		url := norm.StripLanguage(g.URL)
		active := g.IsActive
		p := Pair{ID: PairID(url, string(g.Method)), URL: url, Method: string(g.Method), GrantID: g.ID, IsActive: &active}
		taken[p.ID] = true
		selected = append(selected, p)
	}

	seen := map[string]bool{}
	available = []Pair{}
	for _, r := range t.ListKnownRoutes() {
		url := norm.StripLanguage(strings.TrimLeft(r.Path, "/"))
		if url == "" || HasParams(url) {
			continue
		}
		methods := append(append([]string(nil), r.Methods...), string(models.MethodAll))
		for _, m := range methods {
			if _, ok := models.ParseHTTPMethod(m); !ok {
				continue
			}
			id := PairID(url, m)
			if taken[id] || seen[id] {
				continue
			}
			seen[id] = true
			available = append(available, Pair{ID: id, URL: url, Method: m})
		}
	}
	sortPairs(available)
	sortPairs(selected)
	return available, selected
}
