package pages

import (
	"sort"
	"strings"

	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/jsvalue"
)

// HookExtend is fired with the compiled route list before it is serialized.
var HookExtend = hooks.Hook[*[]*RouteNode]{Name: "pages:extend"}

// PageFile is a discovered page source. Identity is AbsolutePath.
type PageFile struct {
	AbsolutePath string `json:"absolutePath"`
	// RelativePath is relative to the pages directory, with forward slashes.
	RelativePath string `json:"relativePath"`
}

// RouteNode is one entry of the route tree.
type RouteNode struct {
	Name string
	// Path holds the segments of this node. For nested nodes it is relative
	// to the parent.
	Path     []Segment
	Nested   bool
	File     PageFile
	Meta     *jsvalue.Object
	Children []*RouteNode
}

// Pattern returns the router path pattern, e.g. /users/:id. Nested nodes
// produce a relative pattern without the leading slash.
func (n *RouteNode) Pattern() string {
	parts := make([]string, len(n.Path))
	for i, s := range n.Path {
		parts[i] = s.String()
	}
	joined := strings.Join(parts, "/")
	if n.Nested {
		return joined
	}
	return "/" + joined
}

// Walk visits n and its descendants depth first.
func (n *RouteNode) Walk(fn func(*RouteNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// endsWithCatchAll reports whether the last segment is a catch-all.
func (n *RouteNode) endsWithCatchAll() bool {
	return len(n.Path) > 0 && n.Path[len(n.Path)-1].Kind == SegmentCatchAll
}

func (n *RouteNode) key() string {
	keys := make([]string, len(n.Path))
	for i, s := range n.Path {
		keys[i] = s.key()
	}
	return strings.Join(keys, "/")
}

var kindRank = map[SegmentKind]int{
	SegmentStatic:   0,
	SegmentDynamic:  1,
	SegmentCatchAll: 2,
}

// compareSegments orders two paths for first-match-wins lookup. At the first
// differing position static sorts before dynamic before catch-all, and
// static literals compare lexicographically. A path that is a prefix of the
// other sorts first.
func compareSegments(a, b []Segment) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if ra, rb := kindRank[a[i].Kind], kindRank[b[i].Kind]; ra != rb {
			return ra - rb
		}
		if a[i].Kind == SegmentStatic {
			if c := strings.Compare(a[i].Value, b[i].Value); c != 0 {
				return c
			}
		}
	}
	return len(a) - len(b)
}

func compareNodes(a, b *RouteNode) int {
	if c := compareSegments(a.Path, b.Path); c != 0 {
		return c
	}
	// Equal shapes only survive compilation for distinct parameter names in
	// hand-extended lists; keep the order stable regardless.
	for i := range a.Path {
		if c := strings.Compare(a.Path[i].Value, b.Path[i].Value); c != 0 {
			return c
		}
	}
	return strings.Compare(a.File.RelativePath, b.File.RelativePath)
}

// SortRoutes orders siblings by specificity, recursively.
func SortRoutes(nodes []*RouteNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return compareNodes(nodes[i], nodes[j]) < 0
	})
	for _, n := range nodes {
		SortRoutes(n.Children)
	}
}

// routeName joins the segment values of a full path with dashes. The root
// path is named index.
func routeName(path []Segment) string {
	if len(path) == 0 {
		return "index"
	}
	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.Value
	}
	return strings.Join(parts, "-")
}

// assignNames names every node after its full path. A parent with an index
// child loses its name to that child, since navigating by the parent's name
// would otherwise skip the child.
func assignNames(nodes []*RouteNode, prefix []Segment) {
	for _, n := range nodes {
		full := append(append([]Segment(nil), prefix...), n.Path...)
		n.Name = routeName(full)
		assignNames(n.Children, full)
		for _, c := range n.Children {
			if len(c.Path) == 0 {
				n.Name = ""
				break
			}
		}
	}
}
