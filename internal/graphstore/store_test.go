package graphstore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FocuswithJustin/paula/core/cas"
	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
	"github.com/FocuswithJustin/paula/core/paula"
)

func sampleGraph(t *testing.T, name string) *graph.Graph {
	t.Helper()
	g := graph.New(name)
	text := g.AddNode(graph.NodeText, name+".text")
	text.Text = "Hello world"
	tok := g.AddNode(graph.NodeToken, "tok_1")
	e, err := g.AddEdge(graph.EdgeTextual, tok.ID, text.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	e.Start, e.End = 0, 5
	if err := g.Annotate(tok.ID, &graph.Annotation{Namespace: "paula", Name: "pos", Value: "UH"}); err != nil {
		t.Fatal(err)
	}
	return g
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "graphs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSaveLoad verifies a stored graph is restored unchanged.
func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	g := sampleGraph(t, "doc1")
	if err := s.Save(ctx, "a/doc1", g); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "a/doc1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Snapshot(), g.Snapshot()) {
		t.Error("loaded graph differs from saved graph")
	}
	if text := got.TokenText("doc1#tok_1"); text != "Hello" {
		t.Errorf("TokenText() = %q", text)
	}

	if _, err := s.Load(ctx, "doc1"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Save(ctx, "", g); err == nil {
		t.Error("Save() with an empty path succeeded")
	}
}

// TestSameNameDifferentPaths verifies documents that share a graph name
// but live in different corpus directories are stored separately.
func TestSameNameDifferentPaths(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	first := sampleGraph(t, "doc1")
	second := sampleGraph(t, "doc1")
	second.AddNode(graph.NodeToken, "tok_2")

	if err := s.Save(ctx, "a/doc1", first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "b/doc1", second); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() = %+v, want 2 entries", entries)
	}
	tests := []struct {
		path  string
		nodes int
	}{
		{"a/doc1", 2},
		{"b/doc1", 3},
	}
	for i, tt := range tests {
		if entries[i].Path != tt.path || entries[i].Name != "doc1" || entries[i].Nodes != tt.nodes {
			t.Errorf("entries[%d] = %+v, want path %s with %d nodes", i, entries[i], tt.path, tt.nodes)
		}
		g, err := s.Load(ctx, tt.path)
		if err != nil {
			t.Fatal(err)
		}
		if n := len(g.Nodes()); n != tt.nodes {
			t.Errorf("Load(%s) has %d nodes, want %d", tt.path, n, tt.nodes)
		}
	}
}

// TestListDelete verifies listing order and deletion.
func TestListDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, name := range []string{"doc2", "doc1", "doc2"} {
		if err := s.Save(ctx, name, sampleGraph(t, name)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Path != "doc1" || entries[1].Path != "doc2" {
		t.Fatalf("List() = %+v", entries)
	}
	if entries[0].Nodes != 2 || entries[0].Edges != 1 || entries[0].UpdatedAt.IsZero() {
		t.Errorf("entry = %+v", entries[0])
	}

	if err := s.Delete(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "doc1"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
	if entries, _ := s.List(ctx); len(entries) != 1 {
		t.Errorf("List() after delete = %+v", entries)
	}
}

// TestRecordFiles verifies exported file digests are kept per document
// and dropped when the document is saved again.
func TestRecordFiles(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	g := sampleGraph(t, "doc1")
	if err := s.Save(ctx, "x/doc1", g); err != nil {
		t.Fatal(err)
	}
	res, err := paula.ExportDocument(g, t.TempDir(), paula.ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFiles(ctx, "x/doc1", res); err != nil {
		t.Fatal(err)
	}
	files, err := s.Files(ctx, "x/doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != len(res.Files) {
		t.Fatalf("Files() = %d files, want %d", len(files), len(res.Files))
	}
	for _, f := range files {
		if f.Hash.SHA256 == "" || f.Size == 0 {
			t.Errorf("file %+v has no digest", f)
		}
	}
	if want := cas.Sum([]byte("x")); len(want.BLAKE3) != len(files[0].Hash.BLAKE3) {
		t.Errorf("BLAKE3 = %q", files[0].Hash.BLAKE3)
	}

	if err := s.Save(ctx, "x/doc1", g); err != nil {
		t.Fatal(err)
	}
	if files, _ := s.Files(ctx, "x/doc1"); len(files) != 0 {
		t.Errorf("Files() after re-save = %+v", files)
	}

	if err := s.RecordFiles(ctx, "y/doc1", res); err == nil {
		t.Error("RecordFiles() for an unsaved document succeeded")
	}
}
