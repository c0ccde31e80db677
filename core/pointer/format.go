package pointer

import (
	"strconv"
	"strings"
)

// Format generates the expression for refs as seen from a list whose base
// document is base. It is the inverse of Resolve: a single reference becomes
// a shorthand (or a full shorthand when it lives outside base), several
// references become a parenthesized sequence.
func Format(refs []Reference, base string) string {
	switch len(refs) {
	case 0:
		return ""
	case 1:
		return formatOne(refs[0], base)
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = formatOne(r, base)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func formatOne(r Reference, base string) string {
	if r.Kind == KindFile {
		return r.Document
	}

	var sb strings.Builder
	if r.Document != "" && r.Document != base {
		sb.WriteString(r.Document)
	}
	sb.WriteString("#")

	switch r.Kind {
	case KindRange:
		sb.WriteString("xpointer(id('")
		sb.WriteString(r.From)
		sb.WriteString("')/range-to(id('")
		sb.WriteString(r.To)
		sb.WriteString("')))")
	case KindTextRange:
		path := r.Path
		if path == "" {
			path = BodyPath
		}
		sb.WriteString("xpointer(string-range(")
		sb.WriteString(path)
		sb.WriteString(",'',")
		sb.WriteString(strconv.Itoa(r.Start))
		sb.WriteString(",")
		sb.WriteString(strconv.Itoa(r.Length))
		sb.WriteString("))")
	default:
		sb.WriteString(r.ID)
	}
	return sb.String()
}
