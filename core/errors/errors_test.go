package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "node", ID: "doc1#tok_1"},
			wantMsg:  "node not found: doc1#tok_1",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "document"},
			wantMsg:  "document not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidation("workers", "must not be negative")
	if got, want := err.Error(), "validation failed for workers: must not be negative"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := NewIO("read", "doc1/doc1.text.xml", underlying)

	if got, want := err.Error(), "failed to read doc1/doc1.text.xml: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, underlying) {
		t.Error("IOError should unwrap to the underlying error")
	}
	if !errors.Is(err, ErrIO) {
		t.Error("IOError should match ErrIO")
	}

	noPath := &IOError{Operation: "list", Err: underlying}
	if got, want := noPath.Error(), "failed to list: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	kind := errors.New("no base document")
	err := NewParse("#tok_1", kind, "no base document")

	if got, want := err.Error(), `invalid pointer "#tok_1": no base document`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, kind) {
		t.Error("ParseError should unwrap to its kind")
	}
	if !errors.Is(err, ErrParse) {
		t.Error("ParseError should match ErrParse")
	}

	withFile := InFile(err, "doc1.tok.xml")
	if !strings.Contains(withFile.Error(), "doc1.tok.xml") {
		t.Errorf("InFile() message %q does not name the file", withFile.Error())
	}
	if err.File != "" {
		t.Error("InFile() must not mutate the original error")
	}

	t.Run("kindless parse error", func(t *testing.T) {
		pe := &ParseError{Expr: "", Message: "empty"}
		if !errors.Is(pe, ErrParse) {
			t.Error("ParseError without kind should unwrap to ErrParse")
		}
	})

	t.Run("InFile leaves other errors alone", func(t *testing.T) {
		other := fmt.Errorf("boom")
		if got := InFile(other, "x.xml"); got != other {
			t.Errorf("InFile() = %v, want original error", got)
		}
	})
}

func TestReferentialError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ReferentialError
		wantMsg string
	}{
		{
			name:    "with target",
			err:     NewReferential("doc1.struct.xml", "#struct_9", "doc1.struct.xml#struct_9", "dominance target never defined"),
			wantMsg: `unresolved pointer "#struct_9" in doc1.struct.xml: dominance target never defined: doc1.struct.xml#struct_9`,
		},
		{
			name:    "default message",
			err:     &ReferentialError{File: "a.xml", Expr: "#x"},
			wantMsg: `unresolved pointer "#x" in a.xml: target does not exist`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrReferential) {
				t.Error("ReferentialError should unwrap to ErrReferential")
			}
		})
	}
}

func TestBoundsError(t *testing.T) {
	err := NewBounds("doc1.tok.xml", "#xpointer(string-range(//body,'',10,5))", 9, 14, 11)
	msg := err.Error()
	for _, want := range []string{"doc1.tok.xml", "[9,14)", "length 11"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrBounds) {
		t.Error("BoundsError should unwrap to ErrBounds")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("category", "multiFeat lists")
	if got, want := err.Error(), "unsupported category: multiFeat lists"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should unwrap to ErrUnsupported")
	}
	if got, want := (&UnsupportedError{Feature: "doctype"}).Error(), "unsupported doctype"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap(t *testing.T) {
	t.Run("wraps error with message", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		wrapped := Wrap(baseErr, "context message")
		if wrapped == nil {
			t.Fatal("Wrap() returned nil")
		}
		if !errors.Is(wrapped, baseErr) {
			t.Errorf("Wrap() error does not unwrap to base error")
		}
		wantMsg := "context message: base error"
		if wrapped.Error() != wantMsg {
			t.Errorf("Wrap() = %q, want %q", wrapped.Error(), wantMsg)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})
}

func TestWrapf(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	wrapped := Wrapf(baseErr, "failed to import %s", "doc1")
	if !errors.Is(wrapped, baseErr) {
		t.Errorf("Wrapf() error does not unwrap to base error")
	}
	if got, want := wrapped.Error(), "failed to import doc1: base error"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if got := Wrapf(nil, "context %s", "test"); got != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", got)
	}
}

func TestIs(t *testing.T) {
	err := Wrap(NewReferential("f.xml", "#a", "a", ""), "import")
	if !Is(err, ErrReferential) {
		t.Error("Is() failed to match wrapped ReferentialError")
	}
	if Is(err, ErrBounds) {
		t.Error("Is() matched an unrelated sentinel")
	}
}
