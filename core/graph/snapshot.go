package graph

import (
	"encoding/json"

	perrors "github.com/FocuswithJustin/paula/core/errors"
)

// Snapshot is the serializable form of a Graph. Nodes and edges keep their
// creation order.
type Snapshot struct {
	Name  string        `json:"name"`
	Meta  []*Annotation `json:"meta,omitempty"`
	Nodes []*Node       `json:"nodes"`
	Edges []*Edge       `json:"edges"`
}

// Snapshot returns the serializable form of g. The returned value shares
// nodes and edges with g.
func (g *Graph) Snapshot() *Snapshot {
	return &Snapshot{
		Name:  g.name,
		Meta:  g.meta,
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

// FromSnapshot rebuilds a graph. IDs are taken as given; duplicates and
// edges with missing endpoints are rejected.
func FromSnapshot(s *Snapshot) (*Graph, error) {
	if s.Name == "" {
		return nil, perrors.NewValidation("name", "graph snapshot has no document name")
	}
	g := New(s.Name)
	g.meta = s.Meta
	for _, n := range s.Nodes {
		if n.ID == "" || g.taken(n.ID) {
			return nil, perrors.NewValidation("nodes", "duplicate or empty node id "+n.ID)
		}
		g.nodes[n.ID] = n
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}
	for _, e := range s.Edges {
		if e.ID == "" || g.taken(e.ID) {
			return nil, perrors.NewValidation("edges", "duplicate or empty edge id "+e.ID)
		}
		if g.nodes[e.Source] == nil {
			return nil, perrors.NewNotFound("node", e.Source)
		}
		if g.nodes[e.Target] == nil {
			return nil, perrors.NewNotFound("node", e.Target)
		}
		g.edges[e.ID] = e
		g.edgeOrder = append(g.edgeOrder, e.ID)
		g.out[e.Source] = append(g.out[e.Source], e.ID)
		g.in[e.Target] = append(g.in[e.Target], e.ID)
	}
	return g, nil
}

// MarshalJSON implements json.Marshaler.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Snapshot())
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	restored, err := FromSnapshot(&s)
	if err != nil {
		return err
	}
	*g = *restored
	return nil
}
