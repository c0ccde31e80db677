package paula

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
)

const (
	textFile = "d.text.xml"
	tokFile  = "d.tok.xml"
)

// newTokenBuilder returns a builder holding the text "Hello big world" and
// its three tokens tok_1, tok_2 and tok_3.
func newTokenBuilder(t *testing.T, logs *bytes.Buffer) *Builder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(logs, nil))
	b := NewBuilder(graph.New("d"), nil, BuilderOptions{AnnotationNamespace: "paula", Logger: logger})

	text := &ScanContext{File: textFile, Base: textFile, Category: CategoryText}
	mustHandle(t, b, text, TextEvent{Body: "Hello big world"})
	mustHandle(t, b, text, EndOfFileEvent{})

	toks := &ScanContext{File: tokFile, Base: textFile, Category: CategoryMark, ListType: "tok"}
	for _, ev := range []TokenEvent{
		{ID: "tok_1", Href: "#xpointer(string-range(//body,'',1,5))"},
		{ID: "tok_2", Href: "#xpointer(string-range(//body,'',7,3))"},
		{ID: "tok_3", Href: "#xpointer(string-range(//body,'',11,5))"},
	} {
		mustHandle(t, b, toks, ev)
	}
	mustHandle(t, b, toks, EndOfFileEvent{})
	return b
}

func mustHandle(t *testing.T, b *Builder, ctx *ScanContext, ev Event) {
	t.Helper()
	if err := b.Handle(ctx, ev); err != nil {
		t.Fatalf("Handle(%T) failed: %v", ev, err)
	}
}

func markContext(listType string) *ScanContext {
	return &ScanContext{File: "d.mark.xml", Base: tokFile, Category: CategoryMark, ListType: listType}
}

// TestBuilderTokens verifies tokens are anchored in the text.
func TestBuilderTokens(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	g := b.Graph()

	tokens := g.NodesOfKind(graph.NodeToken)
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	for i, want := range []string{"Hello", "big", "world"} {
		if got := g.TokenText(tokens[i].ID); got != want {
			t.Errorf("token %d text = %q, want %q", i, got, want)
		}
	}
	if _, ok := b.Names().Lookup(Key{File: tokFile, ID: "tok_2"}); !ok {
		t.Error("tok_2 not bound")
	}
	if keys := b.Order().Keys(tokFile); len(keys) != 3 || keys[2].ID != "tok_3" {
		t.Errorf("order = %v", keys)
	}
}

// TestBuilderIdempotent verifies handling an element twice creates it once.
func TestBuilderIdempotent(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	toks := &ScanContext{File: tokFile, Base: textFile, Category: CategoryMark}
	mustHandle(t, b, toks, TokenEvent{ID: "tok_1", Href: "#xpointer(string-range(//body,'',1,5))"})

	ctx := markContext("np")
	mark := MarkEvent{ID: "np_1", Href: "(#tok_1,#tok_2)"}
	mustHandle(t, b, ctx, mark)
	mustHandle(t, b, ctx, mark)

	feats := &ScanContext{File: "d.mark_pos.xml", Base: "d.mark.xml", Category: CategoryFeat, ListType: "cat"}
	feat := FeatEvent{ID: "feat.1", Href: "#np_1", Value: "NP"}
	mustHandle(t, b, feats, feat)
	mustHandle(t, b, feats, feat)

	g := b.Graph()
	if n := len(g.NodesOfKind(graph.NodeToken)); n != 3 {
		t.Errorf("tokens = %d, want 3", n)
	}
	spans := g.NodesOfKind(graph.NodeSpan)
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if n := len(g.OutEdges(spans[0].ID, graph.EdgeSpanning)); n != 2 {
		t.Errorf("spanning edges = %d, want 2", n)
	}
	if len(spans[0].Annotations) != 1 || spans[0].Annotations[0].QName() != "paula::cat" {
		t.Errorf("annotations = %+v", spans[0].Annotations)
	}
}

// TestBuilderTokenBounds verifies a character range outside the text fails.
func TestBuilderTokenBounds(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	toks := &ScanContext{File: tokFile, Base: textFile, Category: CategoryMark}

	tests := []struct {
		name string
		href string
		want error
	}{
		{"past end", "#xpointer(string-range(//body,'',14,5))", perrors.ErrBounds},
		{"zero start", "#xpointer(string-range(//body,'',0,2))", perrors.ErrBounds},
		{"unknown text", "other.xml#xpointer(string-range(//body,'',1,2))", perrors.ErrReferential},
		{"malformed", "#xpointer(string-range(//body,'',a,2))", perrors.ErrParse},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Handle(toks, TokenEvent{ID: "bad_" + string(rune('a'+i)), Href: tt.href})
			if !errors.Is(err, tt.want) {
				t.Errorf("Handle() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestBuilderMarkableDrop verifies a markable with a missing target is
// dropped with a warning, along with the features that point at it.
func TestBuilderMarkableDrop(t *testing.T) {
	var logs bytes.Buffer
	b := newTokenBuilder(t, &logs)

	ctx := markContext("np")
	mustHandle(t, b, ctx, MarkEvent{ID: "np_1", Href: "(#tok_1,#tok_9)"})
	mustHandle(t, b, ctx, MarkEvent{ID: "np_2", Href: "#tok_3"})
	mustHandle(t, b, ctx, EndOfFileEvent{})

	feats := &ScanContext{File: "d.mark_cat.xml", Base: "d.mark.xml", Category: CategoryFeat, ListType: "cat"}
	mustHandle(t, b, feats, FeatEvent{ID: "f1", Href: "#np_1", Value: "NP"})
	mustHandle(t, b, feats, FeatEvent{ID: "f2", Href: "#np_2", Value: "NP"})

	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
	spans := b.Graph().NodesOfKind(graph.NodeSpan)
	if len(spans) != 1 || spans[0].Name != "np_2" || len(spans[0].Annotations) != 1 {
		t.Errorf("spans = %+v", spans)
	}
	if !strings.Contains(logs.String(), "np_1") {
		t.Errorf("no warning for the dropped markable: %s", logs.String())
	}

	err := b.Handle(feats, FeatEvent{ID: "f3", Href: "#np_7", Value: "NP"})
	if !errors.Is(err, perrors.ErrReferential) {
		t.Errorf("feature on an unknown element error = %v", err)
	}
}

// TestBuilderMarkableRange verifies element ranges expand in document order
// and a range whose end is missing is fatal.
func TestBuilderMarkableRange(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	ctx := markContext("np")
	mustHandle(t, b, ctx, MarkEvent{ID: "np_1", Href: "#xpointer(id('tok_1')/range-to(id('tok_3')))"})

	span := b.Graph().NodesOfKind(graph.NodeSpan)[0]
	if n := len(b.Graph().CoveredTokens(span.ID)); n != 3 {
		t.Errorf("covered tokens = %d, want 3", n)
	}

	err := b.Handle(ctx, MarkEvent{ID: "np_2", Href: "#xpointer(id('tok_2')/range-to(id('tok_9')))"})
	var re *perrors.ReferentialError
	if !errors.As(err, &re) || !strings.Contains(re.Message, ErrRangeEnd.Error()) {
		t.Errorf("open range error = %v", err)
	}
}

// TestBuilderDeferredDominance verifies dominance edges may point forward
// within their file and are committed at the end of the file.
func TestBuilderDeferredDominance(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	ctx := &ScanContext{File: "d.struct.xml", Base: "d.struct.xml", Category: CategoryStruct, ListType: "cat"}

	mustHandle(t, b, ctx, StructEvent{ID: "s1"})
	mustHandle(t, b, ctx, DomRelEvent{ID: "r1", Struct: "s1", Href: "#s2", Type: "edge"})
	mustHandle(t, b, ctx, StructEvent{ID: "s2"})
	mustHandle(t, b, ctx, DomRelEvent{ID: "r2", Struct: "s2", Href: "(d.tok.xml#tok_1,d.tok.xml#tok_2)"})
	if b.PendingEdges() != 2 {
		t.Errorf("PendingEdges() = %d before end of file, want 2", b.PendingEdges())
	}
	mustHandle(t, b, ctx, EndOfFileEvent{})

	g := b.Graph()
	if b.PendingEdges() != 0 {
		t.Errorf("PendingEdges() = %d after end of file", b.PendingEdges())
	}
	dom := g.EdgesOfKind(graph.EdgeDominance)
	if len(dom) != 3 {
		t.Fatalf("dominance edges = %d, want 3", len(dom))
	}
	if dom[0].Type != "edge" || g.Node(dom[0].Target).Name != "s2" {
		t.Errorf("first edge = %+v", dom[0])
	}
	if id, _ := b.Names().Lookup(Key{File: "d.struct.xml", ID: "r2"}); id != dom[1].ID {
		t.Errorf("r2 bound to %q, want its first edge %q", id, dom[1].ID)
	}
}

// TestBuilderStructRange verifies a range over structures of the same
// file expands to the structures only, skipping the rels between them.
func TestBuilderStructRange(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	ctx := &ScanContext{File: "d.struct.xml", Base: "d.struct.xml", Category: CategoryStruct, ListType: "cat"}

	mustHandle(t, b, ctx, StructEvent{ID: "s1"})
	mustHandle(t, b, ctx, DomRelEvent{ID: "r1", Struct: "s1", Href: "d.tok.xml#tok_1"})
	mustHandle(t, b, ctx, StructEvent{ID: "s2"})
	mustHandle(t, b, ctx, DomRelEvent{ID: "r2", Struct: "s2", Href: "d.tok.xml#tok_2"})
	mustHandle(t, b, ctx, StructEvent{ID: "s3"})
	mustHandle(t, b, ctx, DomRelEvent{ID: "r3", Struct: "s3", Href: "#xpointer(id('s1')/range-to(id('s2')))"})
	mustHandle(t, b, ctx, EndOfFileEvent{})

	g := b.Graph()
	s3, _ := b.Names().Lookup(Key{File: "d.struct.xml", ID: "s3"})
	var children []string
	for _, e := range g.OutEdges(s3, graph.EdgeDominance) {
		children = append(children, g.Node(e.Target).Name)
	}
	if want := []string{"s1", "s2"}; !reflect.DeepEqual(children, want) {
		t.Errorf("s3 dominates %v, want %v", children, want)
	}
	if n := len(g.EdgesOfKind(graph.EdgeDominance)); n != 4 {
		t.Errorf("dominance edges = %d, want 4", n)
	}
	if keys := b.Order().Keys("d.struct.xml"); len(keys) != 3 {
		t.Errorf("order of d.struct.xml = %v, want the three structures", keys)
	}
}

// TestBuilderMissingChild verifies a dominance target that never appears
// is fatal at the end of the file.
func TestBuilderMissingChild(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	ctx := &ScanContext{File: "d.struct.xml", Base: "d.struct.xml", Category: CategoryStruct, ListType: "cat"}
	mustHandle(t, b, ctx, StructEvent{ID: "s1"})
	mustHandle(t, b, ctx, DomRelEvent{ID: "r1", Struct: "s1", Href: "#s9"})

	err := b.Handle(ctx, EndOfFileEvent{})
	var re *perrors.ReferentialError
	if !errors.As(err, &re) || re.File != "d.struct.xml" || re.Expr != "#s9" {
		t.Errorf("Handle(EndOfFile) error = %v", err)
	}
}

// TestBuilderRelationsAndMedia verifies pointing relations, document
// features and media links.
func TestBuilderRelationsAndMedia(t *testing.T) {
	b := newTokenBuilder(t, &bytes.Buffer{})
	g := b.Graph()

	rels := &ScanContext{File: "d.rel.xml", Base: tokFile, Category: CategoryRel, ListType: "dep"}
	mustHandle(t, b, rels, RelEvent{ID: "r1", Href: "#tok_1", Target: "#tok_3"})
	err := b.Handle(rels, RelEvent{ID: "r2", Href: "(#tok_1,#tok_2)", Target: "#tok_3"})
	if !errors.Is(err, perrors.ErrReferential) {
		t.Errorf("relation with two sources error = %v", err)
	}

	anno := &ScanContext{File: "d.anno.xml", Base: "d.anno.xml", Category: CategoryStruct, ListType: AnnoSetType}
	mustHandle(t, b, anno, StructEvent{ID: "anno_1"})
	mustHandle(t, b, anno, DomRelEvent{ID: "x", Struct: "anno_1", Href: "d.text.xml"})
	mustHandle(t, b, anno, EndOfFileEvent{})

	meta := &ScanContext{File: "d.anno_lang.xml", Base: "d.anno.xml", Category: CategoryFeat, ListType: "meta::lang"}
	mustHandle(t, b, meta, FeatEvent{ID: "m1", Href: "#anno_1", Value: "en"})

	media := &ScanContext{File: "d.media.xml", Base: tokFile, Category: CategoryFeat, ListType: MediaFeature}
	mustHandle(t, b, media, FeatEvent{ID: "a1", Href: "(#tok_1,#tok_2)", Value: "file:/data/d.wav"})
	mustHandle(t, b, media, FeatEvent{ID: "a2", Href: "#tok_3", Value: "file:/data/d.wav"})

	pointing := g.EdgesOfKind(graph.EdgePointing)
	if len(pointing) != 1 || pointing[0].Type != "dep" {
		t.Errorf("pointing edges = %+v", pointing)
	}
	if len(g.Meta()) != 1 || g.Meta()[0].QName() != "meta::lang" || g.Meta()[0].Value != "en" {
		t.Errorf("meta = %+v", g.Meta())
	}
	if n := len(g.NodesOfKind(graph.NodeStructure)); n != 0 {
		t.Errorf("annoSet created %d structure nodes", n)
	}
	m := g.NodesOfKind(graph.NodeMedia)
	if len(m) != 1 || m[0].URI != "/data/d.wav" {
		t.Fatalf("media nodes = %+v", m)
	}
	if n := len(g.InEdges(m[0].ID, graph.EdgeMedia)); n != 3 {
		t.Errorf("media edges = %d, want 3", n)
	}
}

type strayEvent struct{}

func (strayEvent) event() {}

// TestBuilderUnknownEvent verifies an event outside the closed set fails.
func TestBuilderUnknownEvent(t *testing.T) {
	b := NewBuilder(graph.New("d"), nil, BuilderOptions{})
	if err := b.Handle(&ScanContext{}, strayEvent{}); !errors.Is(err, perrors.ErrUnsupported) {
		t.Errorf("Handle(stray) error = %v", err)
	}
}
