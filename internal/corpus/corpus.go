// Package corpus runs the PAULA codec over every document of a corpus.
//
// A corpus is a directory tree, or a tar.xz / tar.gz archive of one, in
// which every directory holding PAULA files is a document. Documents are
// independent: each is processed by one worker with its own builder and
// tables, and a failure is reported for that document alone.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
	"github.com/FocuswithJustin/paula/core/paula"
	"github.com/FocuswithJustin/paula/internal/archive"
	"github.com/FocuswithJustin/paula/internal/logging"
	"github.com/FocuswithJustin/paula/internal/validation"
)

// Document is one document directory of a corpus.
type Document struct {
	// Name is the directory name, which is also the graph name.
	Name string `json:"name"`
	// Dir is the path of the directory.
	Dir string `json:"dir"`
	// Rel is Dir relative to the corpus root.
	Rel string `json:"rel"`
}

// Discover returns every directory under root holding at least one file
// with one of exts, sorted by relative path.
func Discover(root string, exts []string) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, perrors.Wrap(err, "open corpus")
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus %s is not a directory", root)
	}

	found := make(map[string]bool)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExtension(d.Name(), exts) {
			return nil
		}
		found[filepath.Dir(path)] = true
		return nil
	})
	if err != nil {
		return nil, perrors.Wrap(err, "walk corpus")
	}

	docs := make([]Document, 0, len(found))
	for dir := range found {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(dir)
		if rel == "." {
			rel = name
		}
		docs = append(docs, Document{Name: name, Dir: dir, Rel: filepath.ToSlash(rel)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Rel < docs[j].Rel })
	return docs, nil
}

func hasExtension(name string, exts []string) bool {
	if len(exts) == 0 {
		exts = []string{".xml"}
	}
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Open makes the corpus at path available as a directory. An archive is
// unpacked into a temporary directory that cleanup removes; for a
// directory cleanup does nothing.
func Open(path string) (root string, cleanup func(), err error) {
	if !archive.IsSupportedFormat(path) {
		return path, func() {}, nil
	}
	if err := checkArchive(path); err != nil {
		return "", nil, err
	}
	tmp, err := os.MkdirTemp("", "paula-corpus-")
	if err != nil {
		return "", nil, perrors.Wrap(err, "create temporary directory")
	}
	cleanup = func() { os.RemoveAll(tmp) }
	n, err := archive.Extract(path, tmp)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	logging.Debug("corpus archive extracted", "archive", path, "files", n, "dir", tmp)
	return tmp, cleanup, nil
}

// checkArchive rejects an archive whose content does not match its
// extension before anything is unpacked.
func checkArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return perrors.Wrap(err, "open corpus")
	}
	defer f.Close()
	_, err = validation.ValidateFileType(f, path)
	return perrors.Wrapf(err, "corpus archive %s", path)
}

// Outcome is the result of processing one document.
type Outcome[T any] struct {
	Document  Document      `json:"document"`
	SessionID string        `json:"session_id"`
	Value     T             `json:"value,omitempty"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// Failed reports whether the document failed.
func (o Outcome[T]) Failed() bool { return o.Err != nil }

// Run applies fn to every document with up to workers documents in flight
// and returns the outcomes in the order of docs. Every call gets a context
// carrying a fresh session id, under which the document's start, end and
// failure are logged as operation op. A panic in fn fails only its
// document, and documents not yet started when ctx is done fail with
// ctx.Err().
func Run[T any](ctx context.Context, op string, docs []Document, workers int, fn func(context.Context, Document) (T, error)) []Outcome[T] {
	type job struct {
		index int
		doc   Document
	}
	type result struct {
		index   int
		outcome Outcome[T]
	}

	pool := NewWorkerPool[job, result](workers, len(docs))
	pool.Start(ctx, func(ctx context.Context, j job) result {
		return result{index: j.index, outcome: runOne(ctx, op, j.doc, fn)}
	}, func(j job, err error) result {
		return result{index: j.index, outcome: Outcome[T]{Document: j.doc, Err: err}}
	})
	for i, d := range docs {
		pool.Submit(job{index: i, doc: d})
	}
	pool.Close()

	outcomes := make([]Outcome[T], len(docs))
	for r := range pool.Results() {
		outcomes[r.index] = r.outcome
	}
	return outcomes
}

func runOne[T any](ctx context.Context, op string, doc Document, fn func(context.Context, Document) (T, error)) (out Outcome[T]) {
	out.Document = doc
	out.SessionID = uuid.New().String()
	dctx := logging.WithSessionID(ctx, out.SessionID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%s %s: panic: %v", op, doc.Name, r)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			logging.DocumentFailed(dctx, op, doc.Name, out.Err)
		} else {
			logging.DocumentDone(dctx, op, doc.Name, out.Duration)
		}
	}()

	logging.DocumentStart(dctx, op, doc.Name, "dir", doc.Dir)
	out.Value, out.Err = fn(dctx, doc)
	return out
}

// Summary counts the outcomes of a run.
type Summary struct {
	Documents int `json:"documents"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize counts outcomes.
func Summarize[T any](outcomes []Outcome[T]) Summary {
	s := Summary{Documents: len(outcomes)}
	for _, o := range outcomes {
		if o.Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}

// ImportAll imports every document. opts is shared by all workers; its
// Parser, when set, must be safe for concurrent use, which pointer.Parser
// is.
func ImportAll(ctx context.Context, docs []Document, workers int, opts paula.ImportOptions) []Outcome[*paula.ImportResult] {
	return Run(ctx, "import", docs, workers, func(ctx context.Context, d Document) (*paula.ImportResult, error) {
		o := opts
		if o.Logger == nil {
			o.Logger = logging.LoggerFromContext(ctx).With("document", d.Name)
		}
		return paula.ImportDocument(d.Dir, o)
	})
}

// Converted is the outcome of converting one document.
type Converted struct {
	Import *paula.ImportResult `json:"-"`
	Export *paula.ExportResult `json:"export"`
}

// ConvertAll imports every document and exports its graph under outDir,
// keeping the document's position in the corpus tree.
func ConvertAll(ctx context.Context, docs []Document, workers int, outDir string, in paula.ImportOptions, out paula.ExportOptions) []Outcome[*Converted] {
	return Run(ctx, "convert", docs, workers, func(ctx context.Context, d Document) (*Converted, error) {
		logger := logging.LoggerFromContext(ctx).With("document", d.Name)
		iopts, eopts := in, out
		if iopts.Logger == nil {
			iopts.Logger = logger
		}
		if eopts.Logger == nil {
			eopts.Logger = logger
		}
		res, err := paula.ImportDocument(d.Dir, iopts)
		if err != nil {
			return nil, err
		}
		exp, err := paula.ExportDocument(res.Graph, filepath.Join(outDir, filepath.FromSlash(d.Rel)), eopts)
		if err != nil {
			return nil, err
		}
		return &Converted{Import: res, Export: exp}, nil
	})
}

// Graphs collects the graphs of successful imports, keyed by document
// relative path.
func Graphs(outcomes []Outcome[*paula.ImportResult]) map[string]*graph.Graph {
	out := make(map[string]*graph.Graph)
	for _, o := range outcomes {
		if o.Err == nil && o.Value != nil {
			out[o.Document.Rel] = o.Value.Graph
		}
	}
	return out
}
