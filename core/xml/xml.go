// Package xml wraps xmlquery for reading PAULA files.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities. The DOCTYPE pre-scan disables
//     entity expansion entirely and never resolves the DTD it names.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document represents a parsed XML document.
type Document struct {
	root    *xmlquery.Node
	doctype string
}

// Node represents an XML element.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	doctype, err := scanDoctype(data)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root, doctype: doctype}, nil
}

// scanDoctype reads tokens up to the root element and returns the file
// name of the system identifier of the DOCTYPE declaration, if any.
func scanDoctype(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}
	decoder.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.Directive:
			if id := systemID(string(t)); id != "" {
				return id, nil
			}
		case xml.StartElement:
			return "", nil
		}
	}
}

// systemID extracts the quoted system identifier of a DOCTYPE directive,
// e.g. "paula_mark.dtd" from `DOCTYPE paula SYSTEM "paula_mark.dtd"`.
func systemID(directive string) string {
	fields := strings.Fields(directive)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "DOCTYPE") {
		return ""
	}
	for i, f := range fields {
		if (f == "SYSTEM" || f == "PUBLIC") && i+1 < len(fields) {
			id := strings.Trim(fields[len(fields)-1], `"'>`)
			if f == "SYSTEM" {
				id = strings.Trim(fields[i+1], `"'>`)
			}
			return path.Base(id)
		}
	}
	return ""
}

// Doctype returns the DTD file named by the DOCTYPE declaration, or "".
func (d *Document) Doctype() string { return d.doctype }

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// XPathFirst executes an XPath query and returns the first matching node,
// or nil when nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Name returns the local element name.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns all text content of the node and its descendants, unmodified.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Child returns the first child element with the given local name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Attr returns the value of the attribute with the given local name,
// ignoring its prefix, so Attr("href") finds xlink:href and Attr("base")
// finds xml:base. Namespace declarations are never matched.
func (n *Node) Attr(local string) string {
	v, _ := n.LookupAttr(local)
	return v
}

// LookupAttr is like Attr but reports whether the attribute is present.
func (n *Node) LookupAttr(local string) (string, bool) {
	if n == nil || n.node == nil {
		return "", false
	}
	for _, attr := range n.node.Attr {
		if attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns") {
			continue
		}
		if attr.Name.Local == local {
			return attr.Value, true
		}
	}
	return "", false
}

// Attributes returns all non-namespace attributes keyed by local name.
func (n *Node) Attributes() map[string]string {
	if n == nil || n.node == nil {
		return nil
	}
	attrs := make(map[string]string)
	for _, attr := range n.node.Attr {
		if attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns") {
			continue
		}
		attrs[attr.Name.Local] = attr.Value
	}
	return attrs
}
