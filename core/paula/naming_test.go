package paula

import (
	"reflect"
	"testing"
)

// TestCategoryFromDTD verifies DOCTYPE system identifiers map to categories.
func TestCategoryFromDTD(t *testing.T) {
	tests := []struct {
		dtd  string
		want Category
	}{
		{"paula_text.dtd", CategoryText},
		{"paula_mark.dtd", CategoryMark},
		{"PAULA_STRUCT.DTD", CategoryStruct},
		{"paula_rel.dtd", CategoryRel},
		{"paula_feat.dtd", CategoryFeat},
		{"paula_multiFeat.dtd", CategoryUnknown},
		{"", CategoryUnknown},
	}
	for _, tt := range tests {
		if got := CategoryFromDTD(tt.dtd); got != tt.want {
			t.Errorf("CategoryFromDTD(%q) = %v, want %v", tt.dtd, got, tt.want)
		}
	}
	if CategoryFeat.DTD() != "paula_feat.dtd" || CategoryUnknown.DTD() != "" {
		t.Error("DTD() does not invert CategoryFromDTD")
	}
	if CategoryFromElement("structList") != CategoryStruct || CategoryFromElement("body") != CategoryText {
		t.Error("CategoryFromElement() mismatch")
	}
}

func TestSplitQName(t *testing.T) {
	if ns, name := SplitQName("tiger::pos"); ns != "tiger" || name != "pos" {
		t.Errorf("SplitQName(tiger::pos) = %q, %q", ns, name)
	}
	if ns, name := SplitQName("pos"); ns != "" || name != "pos" {
		t.Errorf("SplitQName(pos) = %q, %q", ns, name)
	}
}

// TestLayersOf verifies layer names are read from the file name prefix.
func TestLayersOf(t *testing.T) {
	tests := []struct {
		file string
		want []string
	}{
		{"doc1.tok.xml", nil},
		{"syntax.doc1.struct_cat.xml", []string{"syntax"}},
		{"morph+syntax.doc1.mark.xml", []string{"morph", "syntax"}},
		{"other.tok.xml", nil},
	}
	for _, tt := range tests {
		if got := LayersOf(tt.file, "doc1"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("LayersOf(%q) = %v, want %v", tt.file, got, tt.want)
		}
	}
}

// TestFileName verifies exported file names.
func TestFileName(t *testing.T) {
	tests := []struct {
		name      string
		infix     string
		layers    []string
		qualifier string
		want      string
	}{
		{"plain", InfixTok, nil, "", "doc1.tok.xml"},
		{"qualified", InfixText, nil, "2", "doc1.text_2.xml"},
		{"layers sorted", InfixMark, []string{"syntax", "morph"}, "np", "morph+syntax.doc1.mark_np.xml"},
		{"unsafe qualifier", InfixStruct, nil, "cat/x y", "doc1.struct_cat-x-y.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.infix, tt.layers, "doc1", tt.qualifier); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := FeatureFileName("doc1.tok.xml", "tiger", "pos"); got != "doc1.tok_tiger_pos.xml" {
		t.Errorf("FeatureFileName() = %q", got)
	}
	if got := FeatureFileName("doc1.tok.xml", "", "lemma"); got != "doc1.tok_lemma.xml" {
		t.Errorf("FeatureFileName() without namespace = %q", got)
	}
}

func TestValidID(t *testing.T) {
	for id, want := range map[string]bool{
		"tok_1":  true,
		"s-12":   true,
		"":       false,
		"a b":    false,
		"mark.3": false,
	} {
		if got := validID(id); got != want {
			t.Errorf("validID(%q) = %v, want %v", id, got, want)
		}
	}
}
