// Package paula imports PAULA stand-off corpora into annotation graphs and
// exports annotation graphs back into the PAULA multi-file layout.
//
// A document is one directory of XML files. Each file declares one of five
// categories through its DOCTYPE: the primary text, marks (tokens and
// markables), structures, pointing relations, and features. Files reference
// each other through pointer expressions (see package pointer); importing a
// document loads every file exactly once, in an order that makes referenced
// elements available before the elements that point at them.
package paula

import (
	"strings"
)

// Version is the PAULA version written into every exported file.
const Version = "1.1"

// XLinkNS is the namespace of the href attribute.
const XLinkNS = "http://www.w3.org/1999/xlink"

// AnnoSetType is the structList type of the file that lists every file of
// a document and carries document-level features.
const AnnoSetType = "annoSet"

// ResourcePrefix marks a feature value that references an external file.
const ResourcePrefix = "file:"

// MediaFeature is the feature name that links tokens to a media file.
const MediaFeature = "audio"

// Category is the element category a file declares.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryText
	CategoryMark
	CategoryStruct
	CategoryRel
	CategoryFeat
)

var categoryNames = [...]string{"unknown", "text", "mark", "struct", "rel", "feat"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// DTD returns the system identifier of the category's DOCTYPE.
func (c Category) DTD() string {
	if c == CategoryUnknown {
		return ""
	}
	return "paula_" + c.String() + ".dtd"
}

// ListElement returns the name of the element that holds the category's
// entries, and ItemElement the name of one entry.
func (c Category) ListElement() string {
	switch c {
	case CategoryMark:
		return "markList"
	case CategoryStruct:
		return "structList"
	case CategoryRel:
		return "relList"
	case CategoryFeat:
		return "featList"
	}
	return ""
}

// ItemElement returns the element name of one list entry.
func (c Category) ItemElement() string {
	switch c {
	case CategoryMark:
		return "mark"
	case CategoryStruct:
		return "struct"
	case CategoryRel:
		return "rel"
	case CategoryFeat:
		return "feat"
	}
	return ""
}

// CategoryFromDTD maps a DOCTYPE system identifier to a category.
func CategoryFromDTD(dtd string) Category {
	name := strings.TrimPrefix(strings.TrimSuffix(strings.ToLower(dtd), ".dtd"), "paula_")
	for i, n := range categoryNames {
		if i > 0 && n == name {
			return Category(i)
		}
	}
	return CategoryUnknown
}

// CategoryFromElement maps the first content element of a file (the one
// following the header) to a category. It is used for files without a
// DOCTYPE.
func CategoryFromElement(name string) Category {
	switch name {
	case "body":
		return CategoryText
	case "markList":
		return CategoryMark
	case "structList":
		return CategoryStruct
	case "relList":
		return CategoryRel
	case "featList":
		return CategoryFeat
	}
	return CategoryUnknown
}

// SplitQName splits a featList type "ns::name" into namespace and name.
func SplitQName(qname string) (ns, name string) {
	if i := strings.Index(qname, "::"); i >= 0 {
		return qname[:i], qname[i+2:]
	}
	return "", qname
}

// LayersOf returns the annotation layers encoded in a file name: the part
// before "<doc>." split on "+". "morph+syntax.doc1.mark.xml" belongs to the
// layers morph and syntax of document doc1.
func LayersOf(file, doc string) []string {
	if doc == "" || strings.HasPrefix(file, doc+".") {
		return nil
	}
	i := strings.Index(file, "."+doc+".")
	if i <= 0 {
		return nil
	}
	var layers []string
	for _, l := range strings.Split(file[:i], "+") {
		if l != "" {
			layers = append(layers, l)
		}
	}
	return layers
}
