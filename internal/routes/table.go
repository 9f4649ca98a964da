// Package routes keeps the inventory of routes served by the gin engine,
// resolves request paths against it, and tracks which routes opted in to
// URL permission checks.
package routes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// ErrRouteNotResolved is returned when no known route matches a path.
var ErrRouteNotResolved = errors.New("routes: no route matches path")

// Route is a registered path pattern, e.g. "/articles/:id".
type Route struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
	Guarded bool     `json:"requires_permission"`
}

// Serves reports whether the route is registered for method.
func (r Route) Serves(method string) bool {
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

type node struct {
	static   map[string]*node
	param    *node
	wildcard *node
	route    *Route
}

func newNode() *node {
	return &node{static: map[string]*node{}}
}

// Table is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	root    *node
	byPath  map[string]*Route
	guarded map[string]bool
}

func NewTable() *Table {
	return &Table{
		root:    newNode(),
		byPath:  map[string]*Route{},
		guarded: map[string]bool{},
	}
}

// Load adds every route of a gin engine, see (*gin.Engine).Routes.
func (t *Table) Load(infos gin.RoutesInfo) {
	for _, info := range infos {
		t.Add(info.Method, info.Path)
	}
}

func segments(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// Add registers method on the route pattern path.
func (t *Table) Add(method, path string) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.byPath[path]; ok {
		for _, m := range r.Methods {
			if m == method {
				return
			}
		}
		r.Methods = append(r.Methods, method)
		return
	}

	n := t.root
	for _, seg := range segments(path) {
		switch {
		case strings.HasPrefix(seg, ":"):
			if n.param == nil {
				n.param = newNode()
			}
			n = n.param
		case strings.HasPrefix(seg, "*"):
			if n.wildcard == nil {
				n.wildcard = newNode()
			}
			n = n.wildcard
		default:
			child, ok := n.static[seg]
			if !ok {
				child = newNode()
				n.static[seg] = child
			}
			n = child
		}
	}
	r := &Route{Path: path, Methods: []string{method}, Guarded: t.guarded[path]}
	n.route = r
	t.byPath[path] = r
}

// Guard marks route patterns as requiring a permission check. Patterns may
// be guarded before they are added.
func (t *Table) Guard(paths ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		t.guarded[p] = true
		if r, ok := t.byPath[p]; ok {
			r.Guarded = true
		}
	}
}

type frame struct {
	n   *node
	idx int
}

// Resolve returns the route whose pattern matches path. Static segments
// win over parameters, parameters over wildcards.
func (t *Table) Resolve(path string) (Route, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	segs := segments(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	stack := []frame{{n: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.idx == len(segs) {
			if f.n.route != nil {
				return copyRoute(f.n.route), nil
			}
			continue
		}
		seg := segs[f.idx]
		// pushed in reverse priority
		if w := f.n.wildcard; w != nil {
			stack = append(stack, frame{n: w, idx: len(segs)})
		}
		if p := f.n.param; p != nil && seg != "" {
			stack = append(stack, frame{n: p, idx: f.idx + 1})
		}
		if s, ok := f.n.static[seg]; ok {
			stack = append(stack, frame{n: s, idx: f.idx + 1})
		}
	}
	return Route{}, fmt.Errorf("%w: %s", ErrRouteNotResolved, path)
}

// ListKnownRoutes walks the route tree breadth first and returns every
// route sorted by path.
func (t *Table) ListKnownRoutes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Route
	queue := []*node{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.route != nil {
			out = append(out, copyRoute(n.route))
		}
		for _, child := range n.static {
			queue = append(queue, child)
		}
		if n.param != nil {
			queue = append(queue, n.param)
		}
		if n.wildcard != nil {
			queue = append(queue, n.wildcard)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func copyRoute(r *Route) Route {
	c := *r
	c.Methods = append([]string(nil), r.Methods...)
	sort.Strings(c.Methods)
	return c
}
