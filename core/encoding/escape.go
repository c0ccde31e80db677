// Package encoding provides the XML escaping used when writing PAULA files.
package encoding

import (
	"strings"
)

// textReplacer escapes character data. Carriage returns are written as
// character references because XML parsers normalize a literal CR to LF,
// which would shift every character offset after it.
var textReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#xD;",
)

// attrReplacer escapes attribute values, including the whitespace that
// attribute-value normalization would otherwise turn into spaces.
var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\r", "&#xD;",
	"\n", "&#xA;",
	"\t", "&#x9;",
)

// EscapeXMLText escapes text for use as element content.
func EscapeXMLText(s string) string {
	return textReplacer.Replace(s)
}

// EscapeXMLAttr escapes text for use in double-quoted XML attributes.
func EscapeXMLAttr(s string) string {
	return attrReplacer.Replace(s)
}
