package pointer

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// pointerLexer tokenizes the XPointer subset used by PAULA files.
// File must precede Ident so that "doc.tok.xml" is not split at the dots.
// Keywords (xpointer, id, range-to, string-range) lex as Ident.
var pointerLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "File", Pattern: `[^\s#(),'/]+\.[xX][mM][lL]`},
	{Name: "Ident", Pattern: `[A-Za-z0-9_\-]+`},
	{Name: "Punct", Pattern: `[#(),/']`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// idFn matches id('A').
//
//nolint:govet // participle grammar tags are not standard struct tags
type idFn struct {
	ID string `"id" "(" "'" @Ident "'" ")"`
}

// rangeExpr matches #xpointer(id('A')/range-to(id('B'))). Any number of
// endpoints is accepted here; the count is checked during resolution.
//
//nolint:govet // participle grammar tags are not standard struct tags
type rangeExpr struct {
	File      string  `@File?`
	Endpoints []*idFn `"#" "xpointer" "(" @@ ( "/" "range-to" "(" @@ ")" )* ")"`
}

// shorthandExpr matches #id and file.xml#id.
//
//nolint:govet // participle grammar tags are not standard struct tags
type shorthandExpr struct {
	File string `@File?`
	ID   string `"#" @Ident`
}

//nolint:govet // participle grammar tags are not standard struct tags
type seqItem struct {
	Range *rangeExpr     `  @@`
	Short *shorthandExpr `| @@`
}

// sequenceExpr matches (T1,T2,...).
//
//nolint:govet // participle grammar tags are not standard struct tags
type sequenceExpr struct {
	Items []*seqItem `"(" @@ ( "," @@ )* ")"`
}

// textRangeExpr matches #xpointer(string-range(//body,'',START,LEN)).
// Bounds are lexed as identifiers so non-numeric values reach resolution
// and fail with ErrBadRangeBounds instead of a generic syntax error.
//
//nolint:govet // participle grammar tags are not standard struct tags
type textRangeExpr struct {
	File   string   `@File?`
	Path   string   `"#" "xpointer" "(" "string-range" "(" "/" "/" @Ident`
	Bounds []string `"," "'" "'" ( "," @Ident )* ")" ")"`
}

// fileExpr matches a bare file.xml.
//
//nolint:govet // participle grammar tags are not standard struct tags
type fileExpr struct {
	File string `@File`
}

func buildParser[G any]() *participle.Parser[G] {
	return participle.MustBuild[G](
		participle.Lexer(pointerLexer),
		participle.Elide("Whitespace"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(8),
	)
}

// One parser per grammar, tried in the fixed priority order
// range -> sequence -> shorthand -> character range -> whole file.
var (
	rangeParser     = buildParser[rangeExpr]()
	sequenceParser  = buildParser[sequenceExpr]()
	shorthandParser = buildParser[shorthandExpr]()
	textRangeParser = buildParser[textRangeExpr]()
	fileParser      = buildParser[fileExpr]()
)

// parsed is the grammar match of one expression, independent of any base.
type parsed struct {
	typ TokenType
	rng *rangeExpr
	seq *sequenceExpr
	sh  *shorthandExpr
	txt *textRangeExpr
	fil *fileExpr
}

// match classifies expr by trying each grammar in priority order. The first
// grammar that consumes the whole expression wins.
func match(expr string) parsed {
	if r, err := rangeParser.ParseString("", expr); err == nil {
		return parsed{typ: TypeRange, rng: r}
	}
	if s, err := sequenceParser.ParseString("", expr); err == nil {
		return parsed{typ: TypeSequence, seq: s}
	}
	if s, err := shorthandParser.ParseString("", expr); err == nil {
		return parsed{typ: TypeSingle, sh: s}
	}
	if t, err := textRangeParser.ParseString("", expr); err == nil {
		return parsed{typ: TypeTextRange, txt: t}
	}
	if f, err := fileParser.ParseString("", expr); err == nil {
		return parsed{typ: TypeFile, fil: f}
	}
	return parsed{typ: TypeInvalid}
}
