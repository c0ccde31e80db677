package paula

import (
	"errors"
	"reflect"
	"testing"
)

// TestNamingTableBindOnce verifies a key is bound once and only rebinding
// to the same id is accepted.
func TestNamingTableBindOnce(t *testing.T) {
	nt := newNamingTable()
	k := Key{File: "d.tok.xml", ID: "tok_1"}

	if err := nt.Set(k, "d#tok_1"); err != nil {
		t.Fatal(err)
	}
	if err := nt.Set(k, "d#tok_1"); err != nil {
		t.Errorf("rebinding to the same id failed: %v", err)
	}
	if err := nt.Set(k, "d#tok_2"); err == nil {
		t.Error("rebinding to another id should fail")
	}
	if id, ok := nt.Lookup(k); !ok || id != "d#tok_1" {
		t.Errorf("Lookup() = %q, %v", id, ok)
	}
	if _, ok := nt.Lookup(Key{File: "d.tok.xml", ID: "tok_9"}); ok {
		t.Error("Lookup() found an unbound key")
	}
	if nt.Len() != 1 {
		t.Errorf("Len() = %d, want 1", nt.Len())
	}
}

// TestOrderTableExpand verifies range expansion over document order.
func TestOrderTableExpand(t *testing.T) {
	ot := newOrderTable()
	for _, id := range []string{"a", "b", "c", "d"} {
		ot.Append(Key{File: "f.xml", ID: id})
	}
	if ot.Append(Key{File: "f.xml", ID: "b"}) {
		t.Error("Append() reported a repeated key as new")
	}

	ids := func(keys []Key) []string {
		var out []string
		for _, k := range keys {
			out = append(out, k.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		from, to string
		want     []string
		err      error
	}{
		{"middle", "b", "c", []string{"b", "c"}, nil},
		{"whole", "a", "d", []string{"a", "b", "c", "d"}, nil},
		{"single", "c", "c", []string{"c"}, nil},
		{"reversed", "c", "a", nil, ErrRangeStart},
		{"missing start", "x", "c", nil, ErrRangeStart},
		{"missing end", "b", "x", nil, ErrRangeEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ot.Expand("f.xml", tt.from, tt.to)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Expand() error = %v, want %v", err, tt.err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Expand() = %v, want %v", ids(got), tt.want)
			}
		})
	}

	if _, err := ot.Expand("other.xml", "a", "b"); !errors.Is(err, ErrRangeStart) {
		t.Errorf("Expand() on unknown file error = %v", err)
	}
}
