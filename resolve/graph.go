package resolve

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
)

// Edge records where a dependency was referenced.
type Edge struct {
	From    string `yaml:"from"`
	Line    int    `yaml:"line"`
	Column  int    `yaml:"column"`
	Sourced bool   `yaml:"sourced,omitempty"`
}

// Node is one dependency of the converted program: a file, an external
// program, or a network resource.
type Node struct {
	Path  string `yaml:"path"`
	Kind  Kind   `yaml:"kind"`
	Class Class  `yaml:"class"`
	// Rule names the classification rule that decided Class.
	Rule string `yaml:"rule,omitempty"`
	// Choice is Embed or Runtime once rules, decisions and defaults are
	// applied. External binaries use Runtime unless bundled.
	Choice Class `yaml:"choice"`
	// Expr preserves the source text of a path that could not be computed.
	Expr   string `yaml:"expr,omitempty"`
	Paths  []string `yaml:"paths,omitempty"`
	Exists bool     `yaml:"exists,omitempty"`
	Size   int64    `yaml:"size,omitempty"`
	// Bundle is set for external binaries shipped with the program.
	Bundle     bool   `yaml:"bundle,omitempty"`
	BundlePath string `yaml:"bundle_path,omitempty"`
	Usage      Usage  `yaml:"usage"`
	Edges      []Edge `yaml:"edges"`
}

// Unit reports whether n is a script that was parsed and followed.
func (n *Node) Unit() bool { return n.Kind == LocalFile && n.Usage.Sourced }

// Graph is the set of dependencies discovered by resolution, keyed by
// canonical path, command name or URL. It is safe for concurrent use until
// frozen and read-only afterwards.
type Graph struct {
	mu     sync.Mutex
	nodes  map[string]*Node
	frozen bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

func (g *Graph) key(kind Kind, p string) string {
	return kind.String() + "\x00" + p
}

// Add merges a reference to (kind, p) into the graph and returns its node.
func (g *Graph) Add(kind Kind, p string, u Usage, e Edge) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return nil, ErrFrozen.With(slog.String("path", p))
	}

	k := g.key(kind, p)

	n, ok := g.nodes[k]
	if !ok {
		n = &Node{Path: p, Kind: kind}
		g.nodes[k] = n
	}

	n.Usage.Merge(u)

	if e.From != "" && !slices.Contains(n.Edges, e) {
		n.Edges = append(n.Edges, e)
	}

	return n, nil
}

// Node returns the node for (kind, p).
func (g *Graph) Node(kind Kind, p string) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[g.key(kind, p)]

	return n, ok
}

// Nodes returns every node ordered by kind, then path.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}

	slices.SortFunc(out, func(a, b *Node) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Path, b.Path))
	})

	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.nodes)
}

// Freeze sorts every edge list and rejects further mutation.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.nodes {
		slices.SortFunc(n.Edges, func(a, b Edge) int {
			return cmp.Or(
				cmp.Compare(a.From, b.From),
				cmp.Compare(a.Line, b.Line),
				cmp.Compare(a.Column, b.Column),
			)
		})
	}

	g.frozen = true
}

// Frozen reports whether the graph rejects mutation.
func (g *Graph) Frozen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.frozen
}

// color marks traversal state. White is the zero value.
type color uint8

const (
	white color = iota
	gray
	black
)

// colors is the shared visit table. A unit moves white -> gray when a
// traversal claims it and gray -> black when finished.
type colors struct {
	mu sync.Mutex
	m  map[string]color
}

// claim marks p gray if it is white and returns the color it had.
func (c *colors) claim(p string) color {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m == nil {
		c.m = make(map[string]color)
	}

	prev := c.m[p]
	if prev == white {
		c.m[p] = gray
	}

	return prev
}

func (c *colors) finish(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m[p] = black
}
