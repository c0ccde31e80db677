package paula

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/pointer"
	"github.com/FocuswithJustin/paula/core/xml"
	"github.com/FocuswithJustin/paula/internal/validation"
)

// unit is a file read and parsed but not yet scanned.
type unit struct {
	name     string
	doc      *xml.Document
	category Category
	content  *xml.Node
}

// scanner reads the files of one document directory and reports their
// elements to a Builder. It implements Loader.
type scanner struct {
	dir      string
	document string
	parser   *pointer.Parser
	builder  *Builder
	units    map[string]*unit
	skipped  []string
}

func newScanner(dir, document string, parser *pointer.Parser) *scanner {
	return &scanner{
		dir:      dir,
		document: document,
		parser:   parser,
		units:    make(map[string]*unit),
	}
}

// Prepare reads and parses name and returns the files its lists and
// pointers reference.
func (s *scanner) Prepare(name string) ([]string, error) {
	clean, err := validation.SanitizePath(s.dir, name)
	if err != nil {
		return nil, perrors.NewIO("open", name, err)
	}
	path := filepath.Join(s.dir, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.NewIO("read", path, err)
	}
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, perrors.NewIO("parse", path, err)
	}

	u := &unit{name: name, doc: doc}
	root := doc.Root()
	for _, c := range root.Children() {
		if c.Name() != "header" {
			u.content = c
			break
		}
	}
	u.category = CategoryFromDTD(doc.Doctype())
	if u.category == CategoryUnknown && u.content != nil {
		u.category = CategoryFromElement(u.content.Name())
	}
	s.units[name] = u

	if u.category == CategoryUnknown || u.category == CategoryText {
		return nil, nil
	}
	return s.dependencies(u), nil
}

// dependencies lists the files named by the list's xml:base and by every
// href and target attribute, without duplicates and without the file
// itself.
func (s *scanner) dependencies(u *unit) []string {
	seen := map[string]bool{u.name: true}
	var deps []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			deps = append(deps, f)
		}
	}
	for _, list := range s.lists(u) {
		add(list.Attr("base"))
		// The files an annoSet lists are loaded while it is scanned, after
		// its structure is bound, so their features can point back at it.
		annoSet := list.Attr("type") == AnnoSetType
		for _, item := range list.Children() {
			for _, expr := range []string{item.Attr("href"), item.Attr("target")} {
				for _, f := range s.parser.Documents(expr) {
					add(f)
				}
			}
			if annoSet {
				continue
			}
			for _, rel := range item.Children() {
				for _, f := range s.parser.Documents(rel.Attr("href")) {
					add(f)
				}
			}
		}
	}
	return deps
}

// lists returns the list elements of a prepared file.
func (s *scanner) lists(u *unit) []*xml.Node {
	want := u.category.ListElement()
	var out []*xml.Node
	for _, c := range u.doc.Root().Children() {
		if c.Name() == want {
			out = append(out, c)
		}
	}
	return out
}

// Scan reports the elements of a prepared file to the builder, followed by
// an EndOfFileEvent.
func (s *scanner) Scan(name string) error {
	u, ok := s.units[name]
	if !ok {
		return perrors.NewNotFound("prepared file", name)
	}
	delete(s.units, name)

	ctx := &ScanContext{
		File:     name,
		Base:     name,
		Category: u.category,
		Layers:   LayersOf(name, s.document),
	}

	switch u.category {
	case CategoryText:
		body, err := u.doc.XPathFirst(pointer.BodyPath)
		if err != nil {
			return perrors.NewIO("parse", name, err)
		}
		if body == nil {
			return perrors.NewIO("parse", name, fmt.Errorf("text file has no body"))
		}
		if err := s.builder.Handle(ctx, TextEvent{Body: body.Text()}); err != nil {
			return err
		}
	case CategoryMark, CategoryStruct, CategoryRel, CategoryFeat:
		for _, list := range s.lists(u) {
			lctx := *ctx
			if base := list.Attr("base"); base != "" {
				lctx.Base = base
			}
			lctx.ListType = list.Attr("type")
			if err := s.scanList(&lctx, list); err != nil {
				return err
			}
		}
	default:
		s.skipped = append(s.skipped, name)
		return nil
	}
	return s.builder.Handle(ctx, EndOfFileEvent{})
}

func (s *scanner) scanList(ctx *ScanContext, list *xml.Node) error {
	for i, item := range list.Children() {
		if item.Name() != ctx.Category.ItemElement() {
			continue
		}
		id := item.Attr("id")
		if id == "" {
			// Generated ids contain a dot, which the pointer grammar never
			// produces, so they cannot collide with a referenced id.
			id = item.Name() + "." + strconv.Itoa(i+1)
		}
		href := item.Attr("href")

		var err error
		switch ctx.Category {
		case CategoryMark:
			if s.parser.Classify(href) == pointer.TypeTextRange {
				err = s.builder.Handle(ctx, TokenEvent{ID: id, Href: href})
			} else {
				err = s.builder.Handle(ctx, MarkEvent{ID: id, Href: href})
			}
		case CategoryStruct:
			err = s.scanStruct(ctx, id, item)
		case CategoryRel:
			err = s.builder.Handle(ctx, RelEvent{ID: id, Href: href, Target: item.Attr("target")})
		case CategoryFeat:
			err = s.builder.Handle(ctx, FeatEvent{ID: id, Href: href, Value: item.Attr("value")})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) scanStruct(ctx *ScanContext, id string, item *xml.Node) error {
	if err := s.builder.Handle(ctx, StructEvent{ID: id}); err != nil {
		return err
	}
	for i, rel := range item.Children() {
		if rel.Name() != "rel" {
			continue
		}
		relID := rel.Attr("id")
		if relID == "" {
			relID = id + ".rel." + strconv.Itoa(i+1)
		}
		ev := DomRelEvent{ID: relID, Struct: id, Href: rel.Attr("href"), Type: rel.Attr("type")}
		if err := s.builder.Handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
