package paula

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/paula/core/cas"
	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
	"github.com/FocuswithJustin/paula/core/pointer"
	"github.com/FocuswithJustin/paula/internal/logging"
	"github.com/FocuswithJustin/paula/internal/validation"
)

// ExportOptions configures the serializer.
type ExportOptions struct {
	// HumanReadable indents nested elements.
	HumanReadable bool
	// OmitDoctype leaves out the DOCTYPE declarations.
	OmitDoctype bool
	// Store, when set, also receives every written file.
	Store  *cas.Store
	Logger *slog.Logger
}

// File is one serialized output file.
type File struct {
	Name string
	Data []byte
}

// ExportedFile describes a file written by ExportDocument.
type ExportedFile struct {
	Name string         `json:"name"`
	Size int            `json:"size"`
	Hash cas.HashResult `json:"hash"`
}

// ExportResult lists the files of an exported document.
type ExportResult struct {
	Document string         `json:"document"`
	Dir      string         `json:"dir"`
	Files    []ExportedFile `json:"files"`
}

// ExportDocument serializes g into dir, creating it if needed.
func ExportDocument(g *graph.Graph, dir string, opts ExportOptions) (*ExportResult, error) {
	files, err := Serialize(g, opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, perrors.NewIO("create", dir, err)
	}

	res := &ExportResult{Document: g.Name(), Dir: dir}
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return nil, perrors.NewIO("write", path, err)
		}
		sum := cas.Sum(f.Data)
		if opts.Store != nil {
			if sum, err = opts.Store.Put(f.Data); err != nil {
				return nil, perrors.NewIO("store", f.Name, err)
			}
		}
		res.Files = append(res.Files, ExportedFile{Name: f.Name, Size: len(f.Data), Hash: sum})
	}
	return res, nil
}

// placement is where an element is written: its file and local id.
type placement struct {
	file string
	id   string
}

type member struct {
	element string
	name    string
	prefix  string
}

type exporter struct {
	g    *graph.Graph
	doc  string
	log  *slog.Logger
	out  *streamSet

	place     map[string]placement
	textFile  map[string]string
	textQual  map[string]string
	members   map[string][]member
	fileOrder []string
	finalized map[string]bool
	markBase  map[string]string
	mediaBase map[string]string
}

// Serialize renders g as PAULA files without touching the file system.
// Files are returned in the order they were first written: text, tokens,
// media, markables, structures, relations, features, document metadata.
func Serialize(g *graph.Graph, opts ExportOptions) ([]File, error) {
	l := opts.Logger
	if l == nil {
		l = logging.GetLogger()
	}
	x := &exporter{
		g:         g,
		doc:       g.Name(),
		log:       l,
		out:       newStreamSet(opts.HumanReadable, !opts.OmitDoctype),
		place:     make(map[string]placement),
		textFile:  make(map[string]string),
		textQual:  make(map[string]string),
		members:   make(map[string][]member),
		finalized: make(map[string]bool),
		markBase:  make(map[string]string),
		mediaBase: make(map[string]string),
	}
	x.plan()
	x.writeTexts()
	x.writeTokens()
	x.writeMedia()
	x.writeSpans()
	x.writeStructures()
	x.writeRelations()
	x.writeFeatures()
	x.writeMeta()

	var files []File
	for _, s := range x.out.closeAll() {
		if err := validation.ValidateFilename(s.name); err != nil {
			return nil, perrors.NewIO("name", s.name, err)
		}
		files = append(files, File{Name: s.name, Data: s.buf.Bytes()})
	}
	return files, nil
}

func (x *exporter) assign(file, element, name, prefix string) {
	if _, ok := x.members[file]; !ok {
		x.fileOrder = append(x.fileOrder, file)
	}
	x.members[file] = append(x.members[file], member{element: element, name: name, prefix: prefix})
}

// finalize picks local ids: an element keeps its name when the name is a
// valid id used once in its file; the others are numbered per prefix.
func (x *exporter) finalize() {
	for _, file := range x.fileOrder {
		if x.finalized[file] {
			continue
		}
		x.finalized[file] = true
		ms := x.members[file]
		count := make(map[string]int)
		for _, m := range ms {
			count[m.name]++
		}
		used := make(map[string]bool)
		for _, m := range ms {
			if validID(m.name) && count[m.name] == 1 {
				used[m.name] = true
				x.place[m.element] = placement{file: file, id: m.name}
			}
		}
		next := make(map[string]int)
		for _, m := range ms {
			if _, ok := x.place[m.element]; ok {
				continue
			}
			var id string
			for {
				next[m.prefix]++
				id = m.prefix + "_" + strconv.Itoa(next[m.prefix])
				if !used[id] {
					break
				}
			}
			used[id] = true
			x.place[m.element] = placement{file: file, id: id}
		}
	}
}

// plan assigns every exportable node and edge to a file and a local id.
func (x *exporter) plan() {
	texts := x.g.NodesOfKind(graph.NodeText)
	for i, t := range texts {
		qual := ""
		if len(texts) > 1 {
			qual = strconv.Itoa(i + 1)
		}
		x.textFile[t.ID] = FileName(InfixText, t.Layers, x.doc, qual)
		x.textQual[t.ID] = qual
	}

	for _, tok := range x.sortedTokens() {
		e := x.g.TextualEdge(tok.ID)
		x.assign(FileName(InfixTok, tok.Layers, x.doc, x.textQual[e.Target]), tok.ID, tok.Name, "tok")
	}
	x.finalize()

	for _, span := range x.g.NodesOfKind(graph.NodeSpan) {
		tokens := x.placedTokens(span.ID)
		if len(tokens) == 0 {
			x.log.Warn("span without exported tokens skipped", "span", span.ID)
			continue
		}
		file := FileName(InfixMark, span.Layers, x.doc, span.Type)
		if _, ok := x.markBase[file]; !ok {
			x.markBase[file] = x.place[tokens[0]].file
		}
		x.assign(file, span.ID, span.Name, "mark")
	}
	for _, n := range x.g.NodesOfKind(graph.NodeStructure) {
		file := FileName(InfixStruct, n.Layers, x.doc, n.Type)
		x.assign(file, n.ID, n.Name, "struct")
		for _, e := range x.g.OutEdges(n.ID, graph.EdgeDominance) {
			x.assign(file, e.ID, e.Name, "rel")
		}
	}
	for _, e := range x.g.EdgesOfKind(graph.EdgePointing) {
		x.assign(FileName(InfixRel, e.Layers, x.doc, e.Type), e.ID, e.Name, "rel")
	}
	x.finalize()
}

// sortedTokens returns the anchored tokens ordered by text and offset.
func (x *exporter) sortedTokens() []*graph.Node {
	var tokens []*graph.Node
	for _, tok := range x.g.NodesOfKind(graph.NodeToken) {
		if x.g.TextualEdge(tok.ID) == nil {
			x.log.Warn("token without text skipped", "token", tok.ID)
			continue
		}
		tokens = append(tokens, tok)
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		a, b := x.g.TextualEdge(tokens[i].ID), x.g.TextualEdge(tokens[j].ID)
		if a.Target != b.Target {
			return x.textFile[a.Target] < x.textFile[b.Target]
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
	return tokens
}

// placedTokens returns the exported tokens a node covers.
func (x *exporter) placedTokens(id string) []string {
	var out []string
	for _, tok := range x.g.CoveredTokens(id) {
		if _, ok := x.place[tok.ID]; ok {
			out = append(out, tok.ID)
		}
	}
	return out
}

// ref returns the pointer reference of a placed element.
func (x *exporter) ref(id string) (pointer.Reference, bool) {
	p, ok := x.place[id]
	if !ok {
		return pointer.Reference{}, false
	}
	return pointer.Element(p.file, p.id), true
}

func (x *exporter) refs(ids []string) []pointer.Reference {
	out := make([]pointer.Reference, 0, len(ids))
	for _, id := range ids {
		if r, ok := x.ref(id); ok {
			out = append(out, r)
		}
	}
	return out
}

func (x *exporter) writeTexts() {
	for _, t := range x.g.NodesOfKind(graph.NodeText) {
		x.out.get(x.textFile[t.ID], CategoryText, "", "").body(t.Text)
	}
}

func (x *exporter) writeTokens() {
	for _, tok := range x.sortedTokens() {
		p := x.place[tok.ID]
		e := x.g.TextualEdge(tok.ID)
		text := x.textFile[e.Target]
		href := pointer.Format([]pointer.Reference{pointer.TextRange(text, e.Start, e.End)}, text)
		x.out.get(p.file, CategoryMark, InfixTok, text).item(
			attr{"id", p.id},
			attr{"xlink:href", href},
		)
	}
}

// writeMedia writes one audio feature per media node over the tokens
// linked to it.
func (x *exporter) writeMedia() {
	for _, m := range x.g.NodesOfKind(graph.NodeMedia) {
		var tokens []string
		for _, e := range x.g.InEdges(m.ID, graph.EdgeMedia) {
			if _, ok := x.place[e.Source]; ok {
				tokens = append(tokens, e.Source)
			}
		}
		if len(tokens) == 0 {
			x.log.Debug("media node without exported tokens skipped", "media", m.ID)
			continue
		}
		refs := x.refs(tokens)
		file := FileName(InfixMedia, m.Layers, x.doc, "")
		base, ok := x.mediaBase[file]
		if !ok {
			base = refs[0].Document
			x.mediaBase[file] = base
		}
		x.out.get(file, CategoryFeat, MediaFeature, base).item(
			attr{"xlink:href", pointer.Format(refs, base)},
			attr{"value", ResourcePrefix + m.URI},
		)
	}
}

func (x *exporter) writeSpans() {
	for _, span := range x.g.NodesOfKind(graph.NodeSpan) {
		p, ok := x.place[span.ID]
		if !ok {
			continue
		}
		base := x.markBase[p.file]
		listType := span.Type
		if listType == "" {
			listType = "span"
		}
		x.out.get(p.file, CategoryMark, listType, base).item(
			attr{"id", p.id},
			attr{"xlink:href", pointer.Format(x.refs(x.placedTokens(span.ID)), base)},
		)
	}
}

func (x *exporter) writeStructures() {
	for _, n := range x.g.NodesOfKind(graph.NodeStructure) {
		p := x.place[n.ID]
		var rels [][]attr
		for _, e := range x.g.OutEdges(n.ID, graph.EdgeDominance) {
			target, ok := x.ref(e.Target)
			if !ok {
				x.log.Warn("dominance edge to unexported node skipped", "edge", e.ID, "target", e.Target)
				continue
			}
			rel := []attr{{"id", x.place[e.ID].id}}
			if e.Type != "" {
				rel = append(rel, attr{"type", e.Type})
			}
			rel = append(rel, attr{"xlink:href", pointer.Format([]pointer.Reference{target}, p.file)})
			rels = append(rels, rel)
		}
		listType := n.Type
		if listType == "" {
			listType = "struct"
		}
		x.out.get(p.file, CategoryStruct, listType, "").group([]attr{{"id", p.id}}, rels)
	}
}

func (x *exporter) writeRelations() {
	for _, e := range x.g.EdgesOfKind(graph.EdgePointing) {
		p := x.place[e.ID]
		src, ok1 := x.ref(e.Source)
		tgt, ok2 := x.ref(e.Target)
		if !ok1 || !ok2 {
			x.log.Warn("relation between unexported nodes skipped", "edge", e.ID)
			continue
		}
		listType := e.Type
		if listType == "" {
			listType = "rel"
		}
		x.out.get(p.file, CategoryRel, listType, "").item(
			attr{"id", p.id},
			attr{"xlink:href", pointer.Format([]pointer.Reference{src}, p.file)},
			attr{"target", pointer.Format([]pointer.Reference{tgt}, p.file)},
		)
	}
}

// featureStream returns the stream for feature qname of the elements of
// base, renaming the file when two names map to the same file name.
func (x *exporter) featureStream(base, ns, name, qname string) *stream {
	file := FeatureFileName(base, ns, name)
	for n := 2; ; n++ {
		s, ok := x.out.lookup(file)
		if !ok || (s.category == CategoryFeat && s.listType == qname && s.base == base) {
			break
		}
		file = strings.TrimSuffix(FeatureFileName(base, ns, name), pointer.Suffix) + "_" + strconv.Itoa(n) + pointer.Suffix
	}
	return x.out.get(file, CategoryFeat, qname, base)
}

func featValue(a *graph.Annotation) string {
	if a.Resource != "" {
		return ResourcePrefix + a.Resource
	}
	return a.Value
}

func (x *exporter) annotate(element string, anns []*graph.Annotation) {
	p, ok := x.place[element]
	if !ok {
		if len(anns) > 0 {
			x.log.Debug("annotations of unexported element skipped", "element", element)
		}
		return
	}
	for _, a := range anns {
		x.featureStream(p.file, a.Namespace, a.Name, a.QName()).item(
			attr{"xlink:href", "#" + p.id},
			attr{"value", featValue(a)},
		)
	}
}

func (x *exporter) writeFeatures() {
	for _, n := range x.g.Nodes() {
		switch n.Kind {
		case graph.NodeToken, graph.NodeSpan, graph.NodeStructure:
			x.annotate(n.ID, n.Annotations)
		default:
			if len(n.Annotations) > 0 {
				x.log.Debug("annotations skipped", "node", n.ID, "kind", n.Kind)
			}
		}
	}
	for _, e := range x.g.Edges() {
		switch e.Kind {
		case graph.EdgeDominance, graph.EdgePointing:
			x.annotate(e.ID, e.Annotations)
		default:
			if len(e.Annotations) > 0 {
				x.log.Debug("annotations skipped", "edge", e.ID, "kind", e.Kind)
			}
		}
	}
}

// writeMeta writes the annoSet file listing every other file, and the
// document-level features that point at it.
func (x *exporter) writeMeta() {
	anno := FileName(InfixAnno, nil, x.doc, "")
	const setID = "anno_1"

	meta := x.g.Meta()
	streams := make([]*stream, len(meta))
	for i, a := range meta {
		streams[i] = x.featureStream(anno, a.Namespace, a.Name, a.QName())
	}

	var names []string
	for _, s := range x.out.order {
		if s.name != anno {
			names = append(names, s.name)
		}
	}
	sort.Strings(names)
	rels := make([][]attr, len(names))
	for i, name := range names {
		rels[i] = []attr{{"id", "rel_" + strconv.Itoa(i+1)}, {"xlink:href", name}}
	}
	x.out.get(anno, CategoryStruct, AnnoSetType, "").group([]attr{{"id", setID}}, rels)

	for i, a := range meta {
		streams[i].item(
			attr{"xlink:href", "#" + setID},
			attr{"value", featValue(a)},
		)
	}
}
