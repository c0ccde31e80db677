package paula

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
	"github.com/FocuswithJustin/paula/core/pointer"
	"github.com/FocuswithJustin/paula/internal/logging"
)

// EnsureLoader makes a referenced file available before its elements are
// resolved. *Scheduler implements it.
type EnsureLoader interface {
	EnsureLoaded(file string) error
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// AnnotationNamespace is used for features whose list type carries no
	// "ns::" prefix.
	AnnotationNamespace string
	// Parser resolves pointer expressions. Nil uses an uncached parser.
	Parser *pointer.Parser
	// Logger receives warnings about dropped markables. Nil uses the
	// global logger.
	Logger *slog.Logger
}

type deferredEdge struct {
	key    Key
	source string
	expr   string
	refs   []pointer.Reference
	typ    string
	layers []string
}

// Builder turns scan events into an annotation graph. It owns the naming,
// order and deferred-edge tables of one document and is not safe for
// concurrent use.
type Builder struct {
	g      *graph.Graph
	loader EnsureLoader
	parser *pointer.Parser
	log    *slog.Logger
	ns     string

	names    *NamingTable
	order    *OrderTable
	deferred map[string][]deferredEdge
	dropped  map[Key]bool
	applied  map[Key]bool
	media    map[string]string
}

// NewBuilder returns a builder populating g. loader may be nil when every
// referenced file is known to be loaded already.
func NewBuilder(g *graph.Graph, loader EnsureLoader, opts BuilderOptions) *Builder {
	p := opts.Parser
	if p == nil {
		p = pointer.NewParser(0)
	}
	l := opts.Logger
	if l == nil {
		l = logging.GetLogger()
	}
	return &Builder{
		g:        g,
		loader:   loader,
		parser:   p,
		log:      l,
		ns:       opts.AnnotationNamespace,
		names:    newNamingTable(),
		order:    newOrderTable(),
		deferred: make(map[string][]deferredEdge),
		dropped:  make(map[Key]bool),
		applied:  make(map[Key]bool),
		media:    make(map[string]string),
	}
}

// Graph returns the graph being built.
func (b *Builder) Graph() *graph.Graph { return b.g }

// Names returns the naming table.
func (b *Builder) Names() *NamingTable { return b.names }

// Order returns the order table.
func (b *Builder) Order() *OrderTable { return b.order }

// Dropped returns the number of markables dropped for missing targets.
func (b *Builder) Dropped() int { return len(b.dropped) }

// PendingEdges returns the number of dominance edges not yet committed.
func (b *Builder) PendingEdges() int {
	n := 0
	for _, d := range b.deferred {
		n += len(d)
	}
	return n
}

// Handle applies one scan event.
func (b *Builder) Handle(ctx *ScanContext, ev Event) error {
	switch e := ev.(type) {
	case TextEvent:
		return b.text(ctx, e)
	case TokenEvent:
		return b.token(ctx, e)
	case MarkEvent:
		return b.mark(ctx, e)
	case StructEvent:
		return b.structure(ctx, e)
	case DomRelEvent:
		return b.domRel(ctx, e)
	case RelEvent:
		return b.relation(ctx, e)
	case FeatEvent:
		return b.feature(ctx, e)
	case EndOfFileEvent:
		return b.endOfFile(ctx)
	}
	return perrors.NewUnsupported("event", fmt.Sprintf("%T", ev))
}

// bind records a new graph element for k.
func (b *Builder) bind(k Key, id string, layers []string) error {
	if err := b.names.Set(k, id); err != nil {
		return err
	}
	b.order.Append(k)
	if len(layers) > 0 && id != b.g.ID() {
		return b.g.AddToLayers(id, layers...)
	}
	return nil
}

// known reports whether k is already bound, recording its position again
// for a revisited file.
func (b *Builder) known(k Key) bool {
	if _, ok := b.names.Lookup(k); ok {
		b.order.Append(k)
		return true
	}
	return false
}

// resolve parses expr in ctx and loads every foreign document it names.
func (b *Builder) resolve(ctx *ScanContext, expr string) ([]pointer.Reference, error) {
	refs, err := b.parser.Resolve(expr, ctx.Base)
	if err != nil {
		return nil, perrors.InFile(err, ctx.File)
	}
	if b.loader != nil {
		for _, r := range refs {
			if r.Document == ctx.File {
				continue
			}
			if err := b.loader.EnsureLoaded(r.Document); err != nil {
				return nil, err
			}
		}
	}
	return refs, nil
}

// expand turns element and range references into keys in document order.
func (b *Builder) expand(file, expr string, refs []pointer.Reference) ([]Key, error) {
	var keys []Key
	for _, r := range refs {
		switch r.Kind {
		case pointer.KindElement:
			keys = append(keys, Key{File: r.Document, ID: r.ID})
		case pointer.KindRange:
			ks, err := b.order.Expand(r.Document, r.From, r.To)
			if err != nil {
				return nil, perrors.NewReferential(file, expr, r.String(), err.Error())
			}
			keys = append(keys, ks...)
		default:
			return nil, perrors.NewReferential(file, expr, r.String(),
				"a "+r.Kind.String()+" reference cannot address elements")
		}
	}
	return keys, nil
}

func (b *Builder) text(ctx *ScanContext, e TextEvent) error {
	k := Key{File: ctx.File, ID: pointer.BodyPath}
	if b.known(k) {
		return nil
	}
	n := b.g.AddNode(graph.NodeText, strings.TrimSuffix(ctx.File, pointer.Suffix))
	n.Text = e.Body
	return b.bind(k, n.ID, ctx.Layers)
}

func (b *Builder) token(ctx *ScanContext, e TokenEvent) error {
	k := Key{File: ctx.File, ID: e.ID}
	if b.known(k) {
		return nil
	}
	refs, err := b.resolve(ctx, e.Href)
	if err != nil {
		return err
	}
	if len(refs) != 1 || refs[0].Kind != pointer.KindTextRange {
		return perrors.NewReferential(ctx.File, e.Href, "", "a token needs exactly one character range")
	}
	r := refs[0]
	textID, ok := b.names.Lookup(Key{File: r.Document, ID: r.Path})
	if !ok {
		return perrors.NewReferential(ctx.File, e.Href, r.Document+r.Path, "text does not exist")
	}
	text := b.g.Node(textID)
	length := utf8.RuneCountInString(text.Text)
	begin, end := r.Begin(), r.End()
	if begin < 0 || begin > end || end > length {
		return perrors.NewBounds(ctx.File, e.Href, begin, end, length)
	}

	tok := b.g.AddNode(graph.NodeToken, e.ID)
	edge, err := b.g.AddEdge(graph.EdgeTextual, tok.ID, textID, "")
	if err != nil {
		return err
	}
	edge.Start, edge.End = begin, end
	if len(ctx.Layers) > 0 {
		if err := b.g.AddToLayers(edge.ID, ctx.Layers...); err != nil {
			return err
		}
	}
	return b.bind(k, tok.ID, ctx.Layers)
}

// mark creates a span over the tokens covered by the markable's targets.
// A markable with a missing target is dropped with a warning.
func (b *Builder) mark(ctx *ScanContext, e MarkEvent) error {
	k := Key{File: ctx.File, ID: e.ID}
	if b.known(k) || b.dropped[k] {
		return nil
	}
	refs, err := b.resolve(ctx, e.Href)
	if err != nil {
		return err
	}
	targets, err := b.expand(ctx.File, e.Href, refs)
	if err != nil {
		return err
	}

	var tokens []string
	seen := make(map[string]bool)
	for _, t := range targets {
		id, ok := b.names.Lookup(t)
		if !ok {
			b.drop(ctx, k, e.Href, perrors.NewReferential(ctx.File, e.Href, t.String(), ""))
			return nil
		}
		n := b.g.Node(id)
		if n == nil || (n.Kind != graph.NodeToken && n.Kind != graph.NodeSpan) {
			b.drop(ctx, k, e.Href, perrors.NewReferential(ctx.File, e.Href, t.String(), "target is not a token or markable"))
			return nil
		}
		for _, tok := range b.g.CoveredTokens(id) {
			if !seen[tok.ID] {
				seen[tok.ID] = true
				tokens = append(tokens, tok.ID)
			}
		}
	}
	if len(tokens) == 0 {
		b.drop(ctx, k, e.Href, perrors.NewReferential(ctx.File, e.Href, "", "markable covers no tokens"))
		return nil
	}

	span := b.g.AddNode(graph.NodeSpan, e.ID)
	span.Type = ctx.ListType
	for _, tok := range tokens {
		edge, err := b.g.AddEdge(graph.EdgeSpanning, span.ID, tok, "")
		if err != nil {
			return err
		}
		if len(ctx.Layers) > 0 {
			if err := b.g.AddToLayers(edge.ID, ctx.Layers...); err != nil {
				return err
			}
		}
	}
	return b.bind(k, span.ID, ctx.Layers)
}

func (b *Builder) drop(ctx *ScanContext, k Key, expr string, err error) {
	b.dropped[k] = true
	logging.DroppedMarkable(b.log, ctx.File, k.ID, expr, err)
}

func (b *Builder) structure(ctx *ScanContext, e StructEvent) error {
	k := Key{File: ctx.File, ID: e.ID}
	if b.known(k) {
		return nil
	}
	if ctx.ListType == AnnoSetType {
		return b.bind(k, b.g.ID(), nil)
	}
	n := b.g.AddNode(graph.NodeStructure, e.ID)
	n.Type = ctx.ListType
	return b.bind(k, n.ID, ctx.Layers)
}

// domRel records a dominance edge. Its targets are resolved when the
// owning file ends, so children defined later in the same file are legal.
func (b *Builder) domRel(ctx *ScanContext, e DomRelEvent) error {
	refs, err := b.resolve(ctx, e.Href)
	if err != nil {
		return err
	}
	if ctx.ListType == AnnoSetType {
		return nil
	}

	// Rel keys stay out of the order table: ranges in struct files span
	// structures, and a rel between two of them is not a range member.
	k := Key{File: ctx.File, ID: e.ID}
	if _, ok := b.names.Lookup(k); ok {
		return nil
	}
	source, ok := b.names.Lookup(Key{File: ctx.File, ID: e.Struct})
	if !ok {
		return perrors.NewReferential(ctx.File, e.Href, e.Struct, "dominating structure does not exist")
	}
	b.deferred[ctx.File] = append(b.deferred[ctx.File], deferredEdge{
		key:    k,
		source: source,
		expr:   e.Href,
		refs:   refs,
		typ:    e.Type,
		layers: ctx.Layers,
	})
	return nil
}

// endOfFile commits the dominance edges deferred for the file. Any target
// still missing is fatal.
func (b *Builder) endOfFile(ctx *ScanContext) error {
	edges := b.deferred[ctx.File]
	delete(b.deferred, ctx.File)

	for _, d := range edges {
		targets, err := b.expand(d.key.File, d.expr, d.refs)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return perrors.NewReferential(d.key.File, d.expr, "", "dominance edge has no target")
		}
		first := ""
		for _, t := range targets {
			id, ok := b.names.Lookup(t)
			if !ok {
				return perrors.NewReferential(d.key.File, d.expr, t.String(), "dominated element does not exist")
			}
			if b.g.Node(id) == nil {
				return perrors.NewReferential(d.key.File, d.expr, t.String(), "dominated element is not a node")
			}
			edge, err := b.g.AddEdge(graph.EdgeDominance, d.source, id, d.key.ID)
			if err != nil {
				return err
			}
			edge.Type = d.typ
			if len(d.layers) > 0 {
				if err := b.g.AddToLayers(edge.ID, d.layers...); err != nil {
					return err
				}
			}
			if first == "" {
				first = edge.ID
			}
		}
		if err := b.names.Set(d.key, first); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) relation(ctx *ScanContext, e RelEvent) error {
	k := Key{File: ctx.File, ID: e.ID}
	if b.known(k) {
		return nil
	}
	src, err := b.singleNode(ctx, e.Href)
	if err != nil {
		return err
	}
	tgt, err := b.singleNode(ctx, e.Target)
	if err != nil {
		return err
	}
	edge, err := b.g.AddEdge(graph.EdgePointing, src, tgt, e.ID)
	if err != nil {
		return err
	}
	edge.Type = ctx.ListType
	return b.bind(k, edge.ID, ctx.Layers)
}

// singleNode resolves expr to exactly one existing node.
func (b *Builder) singleNode(ctx *ScanContext, expr string) (string, error) {
	refs, err := b.resolve(ctx, expr)
	if err != nil {
		return "", err
	}
	keys, err := b.expand(ctx.File, expr, refs)
	if err != nil {
		return "", err
	}
	if len(keys) != 1 {
		return "", perrors.NewReferential(ctx.File, expr, "",
			fmt.Sprintf("relation end must be exactly one element, got %d", len(keys)))
	}
	id, ok := b.names.Lookup(keys[0])
	if !ok {
		return "", perrors.NewReferential(ctx.File, expr, keys[0].String(), "")
	}
	if b.g.Node(id) == nil {
		return "", perrors.NewReferential(ctx.File, expr, keys[0].String(), "relation end is not a node")
	}
	return id, nil
}

// feature annotates every element the feat points at. The feature name
// comes from the list type.
func (b *Builder) feature(ctx *ScanContext, e FeatEvent) error {
	k := Key{File: ctx.File, ID: e.ID}
	if b.applied[k] {
		return nil
	}
	b.applied[k] = true

	ns, name := SplitQName(ctx.ListType)
	if ns == "" {
		ns = b.ns
	}
	value, resource := e.Value, ""
	if strings.HasPrefix(value, ResourcePrefix) {
		value, resource = "", strings.TrimPrefix(value, ResourcePrefix)
	}

	refs, err := b.resolve(ctx, e.Href)
	if err != nil {
		return err
	}
	targets, err := b.expand(ctx.File, e.Href, refs)
	if err != nil {
		return err
	}

	var ids []string
	for _, t := range targets {
		id, ok := b.names.Lookup(t)
		if !ok {
			if b.dropped[t] {
				b.log.Warn("feature of dropped markable skipped", "file", ctx.File, "href", e.Href, "target", t.String())
				continue
			}
			return perrors.NewReferential(ctx.File, e.Href, t.String(), "annotated element does not exist")
		}
		ids = append(ids, id)
	}

	if name == MediaFeature && resource != "" {
		return b.linkMedia(ctx, ids, resource)
	}
	for _, id := range ids {
		a := &graph.Annotation{Namespace: ns, Name: name, Value: value, Resource: resource}
		if err := b.g.Annotate(id, a); err != nil {
			return err
		}
	}
	return nil
}

// linkMedia connects the tokens covered by ids to the media node for uri.
func (b *Builder) linkMedia(ctx *ScanContext, ids []string, uri string) error {
	media, ok := b.media[uri]
	if !ok {
		n := b.g.AddNode(graph.NodeMedia, "")
		n.URI = uri
		media = n.ID
		b.media[uri] = media
		if len(ctx.Layers) > 0 {
			if err := b.g.AddToLayers(media, ctx.Layers...); err != nil {
				return err
			}
		}
	}
	for _, id := range ids {
		for _, tok := range b.g.CoveredTokens(id) {
			if _, err := b.g.AddEdge(graph.EdgeMedia, tok.ID, media, ""); err != nil {
				return err
			}
		}
	}
	return nil
}
