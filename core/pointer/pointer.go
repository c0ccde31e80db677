// Package pointer parses and generates the pointer expressions that link
// PAULA stand-off files to each other.
//
// The supported grammar is the small XPointer subset found in legacy
// corpora:
//
//	#id                                          shorthand
//	file.xml#id                                  full shorthand
//	file.xml                                     whole-file reference
//	#xpointer(id('A')/range-to(id('B')))         element range
//	(T1,T2,...)                                  sequence of the above
//	#xpointer(string-range(//body,'',START,LEN)) character range
//
// Keywords are case-insensitive and whitespace is insignificant. Resolving
// an expression yields an ordered list of References; ranges are returned
// unexpanded because expansion depends on the document order of the
// referenced file, which only the importer knows.
package pointer

import (
	"errors"
	"strconv"
	"strings"

	perrors "github.com/FocuswithJustin/paula/core/errors"
)

// Suffix is the file suffix every base document must carry.
const Suffix = ".xml"

// BodyPath is the only text path written by the exporter.
const BodyPath = "//body"

// Failure kinds carried by *errors.ParseError.
var (
	ErrEmpty          = errors.New("empty pointer expression")
	ErrInvalid        = errors.New("expression matches no pointer grammar")
	ErrBadRangeBounds = errors.New("malformed string-range bounds")
	ErrRangeEndpoints = errors.New("element range needs exactly two endpoints")
	ErrNoBase         = errors.New("no base document")
	ErrBadBase        = errors.New("base document lacks the .xml suffix")
)

// TokenType is the classification of a whole expression.
type TokenType int

// Classifications, listed in the order the grammars are tried (Single is the
// shorthand grammar, which also covers full shorthands).
const (
	TypeInvalid TokenType = iota
	TypeRange
	TypeSequence
	TypeSingle
	TypeTextRange
	TypeFile
)

func (t TokenType) String() string {
	switch t {
	case TypeRange:
		return "range"
	case TypeSequence:
		return "sequence"
	case TypeSingle:
		return "single"
	case TypeTextRange:
		return "character-range"
	case TypeFile:
		return "whole-file"
	default:
		return "invalid"
	}
}

// Kind says what a single Reference points at.
type Kind int

const (
	// KindElement is one element addressed by id.
	KindElement Kind = iota
	// KindRange is every element from From to To in document order.
	KindRange
	// KindTextRange is a run of characters in a text body.
	KindTextRange
	// KindFile is a whole file.
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindRange:
		return "range"
	case KindTextRange:
		return "text-range"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Reference is one target of a pointer expression.
type Reference struct {
	// Document is the file the target lives in, always set after Resolve.
	Document string `json:"document"`
	Kind     Kind   `json:"kind"`

	// ID is set for KindElement.
	ID string `json:"id,omitempty"`

	// From and To are set for KindRange.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Path, Start (1-based) and Length are set for KindTextRange.
	Path   string `json:"path,omitempty"`
	Start  int    `json:"start,omitempty"`
	Length int    `json:"length,omitempty"`
}

// Element returns a single-element reference.
func Element(doc, id string) Reference {
	return Reference{Document: doc, Kind: KindElement, ID: id}
}

// Range returns an element range reference.
func Range(doc, from, to string) Reference {
	return Reference{Document: doc, Kind: KindRange, From: from, To: to}
}

// File returns a whole-file reference.
func File(doc string) Reference {
	return Reference{Document: doc, Kind: KindFile}
}

// TextRange returns the character range covering the zero-based interval
// [begin, end) of the body of doc.
func TextRange(doc string, begin, end int) Reference {
	return Reference{
		Document: doc,
		Kind:     KindTextRange,
		Path:     BodyPath,
		Start:    begin + 1,
		Length:   end - begin,
	}
}

// Begin is the zero-based start of a character range.
func (r Reference) Begin() int { return r.Start - 1 }

// End is the zero-based exclusive end of a character range.
func (r Reference) End() int { return r.Start - 1 + r.Length }

func (r Reference) String() string {
	return Format([]Reference{r}, "")
}

// Classify returns the classification of expr without resolving it.
func Classify(expr string) TokenType {
	return std.Classify(expr)
}

// Resolve parses expr relative to the context base document and returns its
// references in expression order. base may be empty when the expression
// names its document explicitly.
func Resolve(expr, base string) ([]Reference, error) {
	return std.Resolve(expr, base)
}

// Documents returns the files named explicitly in expr, in order of first
// appearance. Malformed expressions name no files.
func Documents(expr string) []string {
	return std.Documents(expr)
}

// std is the uncached parser behind the package-level helpers.
var std = &Parser{}

func resolveParsed(expr string, p parsed, base string) ([]Reference, error) {
	switch p.typ {
	case TypeRange:
		ref, err := resolveRange(expr, p.rng, base)
		if err != nil {
			return nil, err
		}
		return []Reference{ref}, nil

	case TypeSequence:
		refs := make([]Reference, 0, len(p.seq.Items))
		for _, item := range p.seq.Items {
			var (
				ref Reference
				err error
			)
			if item.Range != nil {
				ref, err = resolveRange(expr, item.Range, base)
			} else {
				ref, err = resolveShorthand(expr, item.Short, base)
			}
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		return refs, nil

	case TypeSingle:
		ref, err := resolveShorthand(expr, p.sh, base)
		if err != nil {
			return nil, err
		}
		return []Reference{ref}, nil

	case TypeTextRange:
		ref, err := resolveTextRange(expr, p.txt, base)
		if err != nil {
			return nil, err
		}
		return []Reference{ref}, nil

	case TypeFile:
		doc, err := baseOf(expr, p.fil.File, "")
		if err != nil {
			return nil, err
		}
		return []Reference{File(doc)}, nil
	}
	return nil, perrors.NewParse(expr, ErrInvalid, ErrInvalid.Error())
}

// baseOf picks the explicit document when present, else the context base.
func baseOf(expr, explicit, base string) (string, error) {
	doc := explicit
	if doc == "" {
		doc = strings.TrimSpace(base)
	}
	if doc == "" {
		return "", perrors.NewParse(expr, ErrNoBase, ErrNoBase.Error())
	}
	if !strings.HasSuffix(strings.ToLower(doc), Suffix) {
		return "", perrors.NewParse(expr, ErrBadBase, "base document "+strconv.Quote(doc)+" lacks the "+Suffix+" suffix")
	}
	return doc, nil
}

func resolveShorthand(expr string, sh *shorthandExpr, base string) (Reference, error) {
	doc, err := baseOf(expr, sh.File, base)
	if err != nil {
		return Reference{}, err
	}
	return Element(doc, sh.ID), nil
}

func resolveRange(expr string, r *rangeExpr, base string) (Reference, error) {
	if len(r.Endpoints) != 2 {
		return Reference{}, perrors.NewParse(expr, ErrRangeEndpoints,
			"element range has "+strconv.Itoa(len(r.Endpoints))+" endpoints, want 2")
	}
	doc, err := baseOf(expr, r.File, base)
	if err != nil {
		return Reference{}, err
	}
	return Range(doc, r.Endpoints[0].ID, r.Endpoints[1].ID), nil
}

func resolveTextRange(expr string, t *textRangeExpr, base string) (Reference, error) {
	if len(t.Bounds) != 2 {
		return Reference{}, perrors.NewParse(expr, ErrBadRangeBounds,
			"string-range has "+strconv.Itoa(len(t.Bounds))+" numbers, want 2")
	}
	var nums [2]int
	for i, b := range t.Bounds {
		n, ok := digits(b)
		if !ok {
			return Reference{}, perrors.NewParse(expr, ErrBadRangeBounds,
				"string-range bound "+strconv.Quote(b)+" is not a number")
		}
		nums[i] = n
	}
	doc, err := baseOf(expr, t.File, base)
	if err != nil {
		return Reference{}, err
	}
	return Reference{
		Document: doc,
		Kind:     KindTextRange,
		Path:     "//" + t.Path,
		Start:    nums[0],
		Length:   nums[1],
	}, nil
}

// digits parses an unsigned decimal number.
func digits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func documentsParsed(p parsed) []string {
	var docs []string
	add := func(f string) {
		if f == "" {
			return
		}
		for _, d := range docs {
			if d == f {
				return
			}
		}
		docs = append(docs, f)
	}
	switch p.typ {
	case TypeRange:
		add(p.rng.File)
	case TypeSequence:
		for _, item := range p.seq.Items {
			if item.Range != nil {
				add(item.Range.File)
			} else {
				add(item.Short.File)
			}
		}
	case TypeSingle:
		add(p.sh.File)
	case TypeTextRange:
		add(p.txt.File)
	case TypeFile:
		add(p.fil.File)
	}
	return docs
}
