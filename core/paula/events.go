package paula

// Event is one element reported by the scanner. The concrete types below
// form a closed set; Builder.Handle dispatches on them.
type Event interface {
	event()
}

// TextEvent carries the body of a text file.
type TextEvent struct {
	Body string
}

// TokenEvent is a mark anchored in a text by a character range.
type TokenEvent struct {
	ID   string
	Href string
}

// MarkEvent is a markable over tokens or other markables.
type MarkEvent struct {
	ID   string
	Href string
}

// StructEvent is a structure node. Its rel children follow as DomRelEvents.
type StructEvent struct {
	ID string
}

// DomRelEvent is a dominance edge from the structure Struct to the
// elements Href points at.
type DomRelEvent struct {
	ID     string
	Struct string
	Href   string
	Type   string
}

// RelEvent is a pointing relation from Href to Target.
type RelEvent struct {
	ID     string
	Href   string
	Target string
}

// FeatEvent annotates the elements Href points at with Value.
type FeatEvent struct {
	ID    string
	Href  string
	Value string
}

// EndOfFileEvent closes the scan of one file.
type EndOfFileEvent struct{}

func (TextEvent) event()      {}
func (TokenEvent) event()     {}
func (MarkEvent) event()      {}
func (StructEvent) event()    {}
func (DomRelEvent) event()    {}
func (RelEvent) event()       {}
func (FeatEvent) event()      {}
func (EndOfFileEvent) event() {}

// ScanContext describes the list currently being scanned. Every file scan
// owns its own value, so a scan started while another is in progress
// cannot disturb it.
type ScanContext struct {
	// File is the name of the file being scanned.
	File string
	// Base is the context document of pointers: the list's xml:base, or
	// File when the list has none.
	Base     string
	Category Category
	// ListType is the type attribute of the enclosing list.
	ListType string
	// Layers are the annotation layers encoded in File's name.
	Layers []string
}
