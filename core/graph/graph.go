// Package graph provides the annotation graph the PAULA codec reads and
// writes.
//
// A Graph holds one document: text nodes carrying primary data, tokens
// anchored into texts by textual edges, spans covering tokens, structures
// dominating other nodes, media nodes, and pointing relations between any
// two nodes. Annotations attach to nodes, edges, or the document itself,
// and nodes and edges may belong to any number of named layers.
//
// A Graph is not safe for concurrent use; each document owns its own.
package graph

import (
	"sort"
	"strconv"

	perrors "github.com/FocuswithJustin/paula/core/errors"
)

// NodeKind classifies nodes.
type NodeKind string

// Node kinds.
const (
	NodeText      NodeKind = "text"
	NodeToken     NodeKind = "token"
	NodeSpan      NodeKind = "span"
	NodeStructure NodeKind = "structure"
	NodeMedia     NodeKind = "media"
)

// EdgeKind classifies edges.
type EdgeKind string

// Edge kinds.
const (
	// EdgeTextual anchors a token (source) in a text (target) at [Start, End).
	EdgeTextual EdgeKind = "textual"
	// EdgeSpanning links a span (source) to one covered token (target).
	EdgeSpanning EdgeKind = "spanning"
	// EdgeDominance links a structure (source) to a child node (target).
	EdgeDominance EdgeKind = "dominance"
	// EdgePointing links any two nodes.
	EdgePointing EdgeKind = "pointing"
	// EdgeMedia links a token (source) to a media node (target).
	EdgeMedia EdgeKind = "media"
)

// Annotation is a namespaced name/value pair. Resource is set instead of
// Value when the annotation references an external file.
type Annotation struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Value     string `json:"value,omitempty"`
	Resource  string `json:"resource,omitempty"`
}

// QName returns "namespace::name", or just the name without a namespace.
func (a *Annotation) QName() string {
	if a.Namespace == "" {
		return a.Name
	}
	return a.Namespace + "::" + a.Name
}

// Node is a vertex of the graph.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Name is the element's local identifier in its source file.
	Name string `json:"name,omitempty"`

	// Type is the list type the node was declared in (spans, structures).
	Type string `json:"type,omitempty"`

	// Text is the primary data of a text node.
	Text string `json:"text,omitempty"`

	// URI locates the resource of a media node.
	URI string `json:"uri,omitempty"`

	Layers      []string      `json:"layers,omitempty"`
	Annotations []*Annotation `json:"annotations,omitempty"`
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	ID     string   `json:"id"`
	Kind   EdgeKind `json:"kind"`
	Source string   `json:"source"`
	Target string   `json:"target"`

	// Name is the element's local identifier in its source file.
	Name string `json:"name,omitempty"`

	// Type is the relation type (dominance and pointing edges).
	Type string `json:"type,omitempty"`

	// Start and End are rune offsets of a textual edge.
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`

	Layers      []string      `json:"layers,omitempty"`
	Annotations []*Annotation `json:"annotations,omitempty"`
}

// Graph is the annotation graph of one document.
type Graph struct {
	name string
	meta []*Annotation

	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string

	out map[string][]string
	in  map[string][]string
}

// New returns an empty graph for the named document.
func New(name string) *Graph {
	return &Graph{
		name:  name,
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
}

// Name returns the document name.
func (g *Graph) Name() string { return g.name }

// ID returns the identifier of the document itself. Annotating it adds
// document-level metadata.
func (g *Graph) ID() string { return g.name }

// Meta returns the document-level annotations.
func (g *Graph) Meta() []*Annotation { return g.meta }

// AddMeta attaches a document-level annotation.
func (g *Graph) AddMeta(a *Annotation) { g.meta = append(g.meta, a) }

// uniqueID derives an identifier from name that is not yet used by any
// node, edge, or the document itself.
func (g *Graph) uniqueID(prefix, name string) string {
	base := g.name + "#" + name
	if name == "" {
		base = g.name + "#" + prefix
	}
	id := base
	for n := 2; g.taken(id); n++ {
		id = base + "_" + strconv.Itoa(n)
	}
	return id
}

func (g *Graph) taken(id string) bool {
	if id == g.name {
		return true
	}
	if _, ok := g.nodes[id]; ok {
		return true
	}
	_, ok := g.edges[id]
	return ok
}

// AddNode creates a node of the given kind. name is the node's local
// identifier and seeds its graph ID.
func (g *Graph) AddNode(kind NodeKind, name string) *Node {
	n := &Node{
		ID:   g.uniqueID(string(kind), name),
		Kind: kind,
		Name: name,
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return n
}

// AddEdge creates an edge between two existing nodes.
func (g *Graph) AddEdge(kind EdgeKind, source, target, name string) (*Edge, error) {
	if _, ok := g.nodes[source]; !ok {
		return nil, perrors.NewNotFound("node", source)
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, perrors.NewNotFound("node", target)
	}
	e := &Edge{
		ID:     g.uniqueID(string(kind), name),
		Kind:   kind,
		Source: source,
		Target: target,
		Name:   name,
	}
	g.edges[e.ID] = e
	g.edgeOrder = append(g.edgeOrder, e.ID)
	g.out[source] = append(g.out[source], e.ID)
	g.in[target] = append(g.in[target], e.ID)
	return e, nil
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// Edge returns the edge with the given ID, or nil.
func (g *Graph) Edge(id string) *Edge { return g.edges[id] }

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodesOfKind returns the nodes of one kind in creation order.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var nodes []*Node
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Edges returns all edges in creation order.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		edges = append(edges, g.edges[id])
	}
	return edges
}

// EdgesOfKind returns the edges of one kind in creation order.
func (g *Graph) EdgesOfKind(kind EdgeKind) []*Edge {
	var edges []*Edge
	for _, id := range g.edgeOrder {
		if e := g.edges[id]; e.Kind == kind {
			edges = append(edges, e)
		}
	}
	return edges
}

// OutEdges returns the edges leaving a node, optionally filtered by kind.
func (g *Graph) OutEdges(id string, kinds ...EdgeKind) []*Edge {
	return g.filter(g.out[id], kinds)
}

// InEdges returns the edges entering a node, optionally filtered by kind.
func (g *Graph) InEdges(id string, kinds ...EdgeKind) []*Edge {
	return g.filter(g.in[id], kinds)
}

func (g *Graph) filter(ids []string, kinds []EdgeKind) []*Edge {
	var edges []*Edge
	for _, id := range ids {
		e := g.edges[id]
		if len(kinds) == 0 {
			edges = append(edges, e)
			continue
		}
		for _, k := range kinds {
			if e.Kind == k {
				edges = append(edges, e)
				break
			}
		}
	}
	return edges
}

// Annotate attaches an annotation to the node, edge, or document with the
// given ID.
func (g *Graph) Annotate(id string, a *Annotation) error {
	if id == g.name {
		g.AddMeta(a)
		return nil
	}
	if n, ok := g.nodes[id]; ok {
		n.Annotations = append(n.Annotations, a)
		return nil
	}
	if e, ok := g.edges[id]; ok {
		e.Annotations = append(e.Annotations, a)
		return nil
	}
	return perrors.NewNotFound("graph element", id)
}

// AddToLayers adds the node or edge with the given ID to each named layer.
func (g *Graph) AddToLayers(id string, layers ...string) error {
	var target *[]string
	if n, ok := g.nodes[id]; ok {
		target = &n.Layers
	} else if e, ok := g.edges[id]; ok {
		target = &e.Layers
	} else {
		return perrors.NewNotFound("graph element", id)
	}
	for _, l := range layers {
		if l == "" || contains(*target, l) {
			continue
		}
		*target = append(*target, l)
	}
	sort.Strings(*target)
	return nil
}

// Layers returns the names of all layers in use, sorted.
func (g *Graph) Layers() []string {
	seen := make(map[string]bool)
	for _, n := range g.nodes {
		for _, l := range n.Layers {
			seen[l] = true
		}
	}
	for _, e := range g.edges {
		for _, l := range e.Layers {
			seen[l] = true
		}
	}
	names := make([]string, 0, len(seen))
	for l := range seen {
		names = append(names, l)
	}
	sort.Strings(names)
	return names
}

// Layer returns the nodes and edges of one layer in creation order.
func (g *Graph) Layer(name string) ([]*Node, []*Edge) {
	var nodes []*Node
	var edges []*Edge
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; contains(n.Layers, name) {
			nodes = append(nodes, n)
		}
	}
	for _, id := range g.edgeOrder {
		if e := g.edges[id]; contains(e.Layers, name) {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}

// TextualEdge returns the edge anchoring a token in its text, or nil.
func (g *Graph) TextualEdge(tokenID string) *Edge {
	edges := g.OutEdges(tokenID, EdgeTextual)
	if len(edges) == 0 {
		return nil
	}
	return edges[0]
}

// TokenText returns the primary data a token covers.
func (g *Graph) TokenText(tokenID string) string {
	e := g.TextualEdge(tokenID)
	if e == nil {
		return ""
	}
	text := g.nodes[e.Target]
	runes := []rune(text.Text)
	if e.Start < 0 || e.End > len(runes) || e.Start > e.End {
		return ""
	}
	return string(runes[e.Start:e.End])
}

// CoveredTokens returns the tokens a span covers, in spanning-edge order.
// A token returns itself.
func (g *Graph) CoveredTokens(id string) []*Node {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	if n.Kind == NodeToken {
		return []*Node{n}
	}
	var tokens []*Node
	for _, e := range g.OutEdges(id, EdgeSpanning) {
		tokens = append(tokens, g.nodes[e.Target])
	}
	return tokens
}

// Stats counts nodes and edges per kind.
type Stats struct {
	Nodes map[NodeKind]int `json:"nodes"`
	Edges map[EdgeKind]int `json:"edges"`
	Meta  int              `json:"meta"`
}

// Stats summarizes the graph.
func (g *Graph) Stats() Stats {
	s := Stats{Nodes: make(map[NodeKind]int), Edges: make(map[EdgeKind]int), Meta: len(g.meta)}
	for _, n := range g.nodes {
		s.Nodes[n.Kind]++
	}
	for _, e := range g.edges {
		s.Edges[e.Kind]++
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
