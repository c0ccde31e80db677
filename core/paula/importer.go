package paula

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
	"github.com/FocuswithJustin/paula/core/pointer"
)

// ImportOptions configures ImportDocument.
type ImportOptions struct {
	// Extensions selects the files of a document directory. Matching is
	// case-insensitive. Empty means ".xml".
	Extensions []string
	// AnnotationNamespace is the namespace of features without one.
	AnnotationNamespace string
	// Parser resolves pointers. Nil uses a cached parser private to the
	// import.
	Parser *pointer.Parser
	Logger *slog.Logger
}

// ImportResult summarizes one imported document.
type ImportResult struct {
	Graph *graph.Graph
	// Files are the scanned files, sorted.
	Files []string
	// Skipped are files of no known category.
	Skipped []string
	// Dropped counts markables dropped for missing targets.
	Dropped int
}

// ImportDocument imports the document stored in dir. The document is named
// after the directory.
func ImportDocument(dir string, opts ImportOptions) (*ImportResult, error) {
	files, err := DocumentFiles(dir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	parser := opts.Parser
	if parser == nil {
		parser = pointer.NewParser(pointer.DefaultCacheSize)
	}
	name := filepath.Base(filepath.Clean(dir))
	g := graph.New(name)

	sc := newScanner(dir, name, parser)
	sched := NewScheduler(sc)
	sc.builder = NewBuilder(g, sched, BuilderOptions{
		AnnotationNamespace: opts.AnnotationNamespace,
		Parser:              parser,
		Logger:              opts.Logger,
	})

	if err := sched.Schedule(files); err != nil {
		return nil, err
	}
	if n := sc.builder.PendingEdges(); n > 0 {
		return nil, perrors.NewReferential(name, "", "", "dominance edges left unresolved")
	}
	return &ImportResult{
		Graph:   g,
		Files:   sched.Loaded(),
		Skipped: sc.skipped,
		Dropped: sc.builder.Dropped(),
	}, nil
}

// DocumentFiles lists the files of dir whose names end in one of exts,
// sorted by name.
func DocumentFiles(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = []string{pointer.Suffix}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, perrors.NewIO("read", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		for _, ext := range exts {
			if strings.HasSuffix(lower, strings.ToLower(ext)) {
				files = append(files, e.Name())
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
