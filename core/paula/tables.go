package paula

import (
	"errors"
	"fmt"
)

// Range expansion failures.
var (
	ErrRangeStart = errors.New("range start not found before range end")
	ErrRangeEnd   = errors.New("range end not found")
)

// Key identifies an element of a document before it is mapped into the
// graph: the file that defines it and its local id.
type Key struct {
	File string
	ID   string
}

func (k Key) String() string { return k.File + "#" + k.ID }

// NamingTable maps element keys to the graph element they became.
type NamingTable struct {
	ids map[Key]string
}

func newNamingTable() *NamingTable {
	return &NamingTable{ids: make(map[Key]string)}
}

// Lookup returns the graph id of k.
func (t *NamingTable) Lookup(k Key) (string, bool) {
	id, ok := t.ids[k]
	return id, ok
}

// Set records the graph id of k. A key is bound once; rebinding it to the
// same id is a no-op and rebinding it to another id is an error.
func (t *NamingTable) Set(k Key, id string) error {
	if old, ok := t.ids[k]; ok {
		if old == id {
			return nil
		}
		return fmt.Errorf("element %s already bound to %s, not %s", k, old, id)
	}
	t.ids[k] = id
	return nil
}

// Len returns the number of bound keys.
func (t *NamingTable) Len() int { return len(t.ids) }

// OrderTable records the document order of the elements of every file.
type OrderTable struct {
	keys map[string][]Key
	seen map[Key]bool
}

func newOrderTable() *OrderTable {
	return &OrderTable{keys: make(map[string][]Key), seen: make(map[Key]bool)}
}

// Append adds k to the end of its file's sequence and reports whether it
// was new. Keys already recorded keep their first position.
func (t *OrderTable) Append(k Key) bool {
	if t.seen[k] {
		return false
	}
	t.seen[k] = true
	t.keys[k.File] = append(t.keys[k.File], k)
	return true
}

// Keys returns the keys of file in document order.
func (t *OrderTable) Keys(file string) []Key {
	return t.keys[file]
}

// Expand returns every key of file from the element from to the element
// to, both inclusive, in document order.
func (t *OrderTable) Expand(file, from, to string) ([]Key, error) {
	var out []Key
	started := false
	for _, k := range t.keys[file] {
		if !started {
			if k.ID == from {
				started = true
			} else if k.ID == to {
				return nil, ErrRangeStart
			} else {
				continue
			}
		}
		out = append(out, k)
		if k.ID == to {
			return out, nil
		}
	}
	if !started {
		return nil, ErrRangeStart
	}
	return nil, ErrRangeEnd
}
