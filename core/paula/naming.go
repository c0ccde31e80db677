package paula

import (
	"regexp"
	"sort"
	"strings"

	"github.com/FocuswithJustin/paula/core/pointer"
)

// File infixes, one per exported category.
const (
	InfixText   = "text"
	InfixTok    = "tok"
	InfixMark   = "mark"
	InfixStruct = "struct"
	InfixRel    = "rel"
	InfixMedia  = "media"
	InfixAnno   = "anno"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// FileName returns the name of an exported file:
// "[layers joined by + .]<doc>.<infix>[_<qualifier>].xml" with the layers
// sorted.
func FileName(infix string, layers []string, doc, qualifier string) string {
	var sb strings.Builder
	if len(layers) > 0 {
		sorted := append([]string(nil), layers...)
		sort.Strings(sorted)
		sb.WriteString(strings.Join(sorted, "+"))
		sb.WriteString(".")
	}
	sb.WriteString(doc)
	sb.WriteString(".")
	sb.WriteString(infix)
	if q := safeName(qualifier); q != "" {
		sb.WriteString("_")
		sb.WriteString(q)
	}
	sb.WriteString(pointer.Suffix)
	return sb.String()
}

// FeatureFileName returns the name of the file holding the feature ns::name
// of the elements of base: "<base stem>_<ns>_<name>.xml", without the
// namespace part when ns is empty.
func FeatureFileName(base, ns, name string) string {
	stem := strings.TrimSuffix(base, pointer.Suffix)
	parts := []string{stem}
	if n := safeName(ns); n != "" {
		parts = append(parts, n)
	}
	parts = append(parts, safeName(name))
	return strings.Join(parts, "_") + pointer.Suffix
}

// safeName replaces characters that are not safe in file names.
func safeName(s string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(s, "-"), "-")
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// validID reports whether id can be addressed by a shorthand pointer.
func validID(id string) bool {
	return idPattern.MatchString(id)
}
