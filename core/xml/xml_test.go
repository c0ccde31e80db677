package xml

import (
	"testing"
)

const markFile = `<?xml version="1.0" standalone="no"?>
<!DOCTYPE paula SYSTEM "paula_mark.dtd">
<paula version="1.1">
<header paula_id="doc1.mark"/>
<markList xmlns:xlink="http://www.w3.org/1999/xlink" type="chunk" xml:base="doc1.tok.xml">
<mark id="m1" xlink:href="#tok_1"/>
<mark id="m2" xlink:href="(#tok_2,#tok_3)"/>
</markList>
</paula>`

// TestParseDoctype verifies the DTD file name is extracted from the DOCTYPE.
func TestParseDoctype(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{"system", markFile, "paula_mark.dtd"},
		{"path in system id", `<!DOCTYPE paula SYSTEM "../dtd/paula_text.dtd"><paula/>`, "paula_text.dtd"},
		{"public", `<!DOCTYPE paula PUBLIC "-//PAULA//feat" "paula_feat.dtd"><paula/>`, "paula_feat.dtd"},
		{"none", `<paula/>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.xml))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := doc.Doctype(); got != tt.want {
				t.Errorf("Doctype() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParseInvalidXML verifies error handling for malformed XML.
func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.xml)); err == nil {
				t.Error("Parse should fail for invalid XML")
			}
		})
	}
}

// TestAttrByLocalName verifies prefixed attributes are found by local name.
func TestAttrByLocalName(t *testing.T) {
	doc, err := Parse([]byte(markFile))
	if err != nil {
		t.Fatal(err)
	}
	root := doc.Root()
	if root.Name() != "paula" || root.Attr("version") != "1.1" {
		t.Fatalf("root = %s version %q", root.Name(), root.Attr("version"))
	}
	if got := root.Child("header").Attr("paula_id"); got != "doc1.mark" {
		t.Errorf("paula_id = %q", got)
	}

	list := root.Child("markList")
	if got := list.Attr("base"); got != "doc1.tok.xml" {
		t.Errorf("xml:base = %q", got)
	}
	if got := list.Attr("type"); got != "chunk" {
		t.Errorf("type = %q", got)
	}
	if _, ok := list.LookupAttr("xlink"); ok {
		t.Error("namespace declarations must not be visible as attributes")
	}
	if _, ok := list.Attributes()["xlink"]; ok {
		t.Error("Attributes() exposes a namespace declaration")
	}

	marks := list.Children()
	if len(marks) != 2 {
		t.Fatalf("got %d marks, want 2", len(marks))
	}
	if got := marks[1].Attr("href"); got != "(#tok_2,#tok_3)" {
		t.Errorf("xlink:href = %q", got)
	}
	if _, ok := marks[0].LookupAttr("missing"); ok {
		t.Error("LookupAttr reported a missing attribute")
	}
}

// TestXPathBody verifies the body text is found and kept verbatim.
func TestXPathBody(t *testing.T) {
	doc, err := Parse([]byte(`<!DOCTYPE paula SYSTEM "paula_text.dtd"><paula version="1.1"><header paula_id="t"/><body>  Hello &amp; world </body></paula>`))
	if err != nil {
		t.Fatal(err)
	}
	body, err := doc.XPathFirst("//body")
	if err != nil {
		t.Fatal(err)
	}
	if body == nil {
		t.Fatal("no body")
	}
	if got := body.Text(); got != "  Hello & world " {
		t.Errorf("body = %q", got)
	}

	missing, err := doc.XPathFirst("//nothing")
	if err != nil || missing != nil {
		t.Errorf("XPathFirst(//nothing) = %v, %v", missing, err)
	}
	if _, err := doc.XPath("//["); err == nil {
		t.Error("invalid xpath should fail")
	}
	all, err := doc.XPath("//header")
	if err != nil || len(all) != 1 {
		t.Errorf("XPath(//header) = %d nodes, %v", len(all), err)
	}
}

// TestNilNode verifies accessors on a nil node do not panic.
func TestNilNode(t *testing.T) {
	var n *Node
	if n.Name() != "" || n.Text() != "" || n.Children() != nil || n.Attr("x") != "" || n.Child("x") != nil {
		t.Error("nil node should be empty")
	}
}
