package pointer

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	perrors "github.com/FocuswithJustin/paula/core/errors"
)

// DefaultCacheSize is the number of distinct expressions a cached Parser keeps.
const DefaultCacheSize = 4096

// Parser classifies and resolves pointer expressions. A Parser built with
// NewParser memoizes grammar matches, which pays off because PAULA files
// repeat the same shorthand targets many times (every feat file addresses
// every token of its base). Parsers are safe for concurrent use.
type Parser struct {
	cache *lru.Cache[string, parsed]
}

// NewParser returns a Parser caching up to size grammar matches. A size of
// zero or less disables the cache.
func NewParser(size int) *Parser {
	if size <= 0 {
		return &Parser{}
	}
	cache, err := lru.New[string, parsed](size)
	if err != nil {
		return &Parser{}
	}
	return &Parser{cache: cache}
}

func (p *Parser) match(expr string) parsed {
	if p.cache != nil {
		if m, ok := p.cache.Get(expr); ok {
			return m
		}
	}
	m := match(expr)
	if p.cache != nil {
		p.cache.Add(expr, m)
	}
	return m
}

// Classify returns the classification of expr.
func (p *Parser) Classify(expr string) TokenType {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return TypeInvalid
	}
	return p.match(expr).typ
}

// Resolve parses expr relative to base. See the package-level Resolve.
func (p *Parser) Resolve(expr, base string) ([]Reference, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, perrors.NewParse(expr, ErrEmpty, ErrEmpty.Error())
	}
	m := p.match(trimmed)
	if m.typ == TypeInvalid {
		return nil, perrors.NewParse(expr, ErrInvalid, ErrInvalid.Error())
	}
	return resolveParsed(expr, m, base)
}

// Documents returns the files named explicitly in expr.
func (p *Parser) Documents(expr string) []string {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil
	}
	return documentsParsed(p.match(trimmed))
}
