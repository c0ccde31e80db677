package paula

import (
	"bytes"
	"strings"

	"github.com/FocuswithJustin/paula/core/encoding"
	"github.com/FocuswithJustin/paula/core/pointer"
)

type attr struct {
	name  string
	value string
}

// stream is one output file. Its prolog is written on the first element
// and its epilog when the stream set is closed.
type stream struct {
	name     string
	category Category
	listType string
	base     string
	indent   bool
	doctype  bool

	buf    bytes.Buffer
	opened bool
	closed bool
}

func (s *stream) line(depth int, text string) {
	if s.indent {
		s.buf.WriteString(strings.Repeat("  ", depth))
	}
	s.buf.WriteString(text)
	s.buf.WriteByte('\n')
}

func tag(name string, attrs []attr, selfClose bool) string {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(name)
	for _, a := range attrs {
		sb.WriteString(" ")
		sb.WriteString(a.name)
		sb.WriteString(`="`)
		sb.WriteString(encoding.EscapeXMLAttr(a.value))
		sb.WriteString(`"`)
	}
	if selfClose {
		sb.WriteString("/>")
	} else {
		sb.WriteString(">")
	}
	return sb.String()
}

func (s *stream) open() {
	if s.opened {
		return
	}
	s.opened = true
	s.line(0, `<?xml version="1.0" standalone="no"?>`)
	if s.doctype {
		s.line(0, `<!DOCTYPE paula SYSTEM "`+s.category.DTD()+`">`)
	}
	s.line(0, tag("paula", []attr{{"version", Version}}, false))

	header := []attr{{"paula_id", strings.TrimSuffix(s.name, pointer.Suffix)}}
	if s.category == CategoryText {
		header = append(header, attr{"type", "text"})
	}
	s.line(1, tag("header", header, true))
	if s.category == CategoryText {
		return
	}

	list := []attr{{"xmlns:xlink", XLinkNS}, {"type", s.listType}}
	if s.base != "" {
		list = append(list, attr{"xml:base", s.base})
	}
	s.line(1, tag(s.category.ListElement(), list, false))
}

// body writes the primary text verbatim.
func (s *stream) body(text string) {
	s.open()
	var sb strings.Builder
	sb.WriteString("<body>")
	sb.WriteString(encoding.EscapeXMLText(text))
	sb.WriteString("</body>")
	s.line(1, sb.String())
}

// item writes one list entry.
func (s *stream) item(attrs ...attr) {
	s.open()
	s.line(2, tag(s.category.ItemElement(), attrs, true))
}

// group writes a list entry with rel children.
func (s *stream) group(attrs []attr, children [][]attr) {
	s.open()
	if len(children) == 0 {
		s.line(2, tag(s.category.ItemElement(), attrs, true))
		return
	}
	s.line(2, tag(s.category.ItemElement(), attrs, false))
	for _, c := range children {
		s.line(3, tag("rel", c, true))
	}
	s.line(2, "</"+s.category.ItemElement()+">")
}

func (s *stream) close() {
	if s.closed || !s.opened {
		return
	}
	s.closed = true
	if s.category != CategoryText {
		s.line(1, "</"+s.category.ListElement()+">")
	}
	s.line(0, "</paula>")
}

// streamSet holds the output files of one export, keyed by name, in the
// order they were first written.
type streamSet struct {
	indent  bool
	doctype bool
	byName  map[string]*stream
	order   []*stream
}

func newStreamSet(indent, doctype bool) *streamSet {
	return &streamSet{indent: indent, doctype: doctype, byName: make(map[string]*stream)}
}

// get returns the stream called name, creating it with the given list
// parameters on first use.
func (w *streamSet) get(name string, c Category, listType, base string) *stream {
	if s, ok := w.byName[name]; ok {
		return s
	}
	s := &stream{
		name:     name,
		category: c,
		listType: listType,
		base:     base,
		indent:   w.indent,
		doctype:  w.doctype,
	}
	w.byName[name] = s
	w.order = append(w.order, s)
	return s
}

// lookup returns the stream called name without creating it.
func (w *streamSet) lookup(name string) (*stream, bool) {
	s, ok := w.byName[name]
	return s, ok
}

// closeAll closes every stream once and returns the opened ones in order.
func (w *streamSet) closeAll() []*stream {
	var out []*stream
	for _, s := range w.order {
		if !s.opened {
			continue
		}
		s.close()
		out = append(out, s)
	}
	return out
}
