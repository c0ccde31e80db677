// Command paula converts corpora between PAULA stand-off XML and
// annotation graphs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/paula/core/cas"
	"github.com/FocuswithJustin/paula/core/paula"
	"github.com/FocuswithJustin/paula/core/pointer"
	"github.com/FocuswithJustin/paula/core/sqlite"
	"github.com/FocuswithJustin/paula/internal/archive"
	"github.com/FocuswithJustin/paula/internal/config"
	"github.com/FocuswithJustin/paula/internal/corpus"
	"github.com/FocuswithJustin/paula/internal/graphstore"
	"github.com/FocuswithJustin/paula/internal/logging"
	"github.com/FocuswithJustin/paula/internal/validation"
)

const version = "0.1.0"

// stdout receives command output.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface for paula.
var CLI struct {
	Config    string `name:"config" short:"c" help:"YAML configuration file" type:"path"`
	LogLevel  string `name:"log-level" help:"Override log.level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Override log.format (text, json)"`
	Workers   int    `name:"workers" short:"w" help:"Override corpus.workers"`

	Import  ImportCmd  `cmd:"" help:"Import a corpus and store its graphs"`
	Export  ExportCmd  `cmd:"" help:"Export stored graphs as PAULA files"`
	Convert ConvertCmd `cmd:"" help:"Import a corpus and export it again"`
	Check   CheckCmd   `cmd:"" help:"Import a corpus and report every failing document"`
	List    ListCmd    `cmd:"" help:"List stored graphs"`
	Pointer PointerCmd `cmd:"" help:"Resolve a pointer expression"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// loadConfig reads the configuration, applies the global flags and
// initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Log.Format = CLI.LogFormat
	}
	if CLI.Workers != 0 {
		cfg.Corpus.Workers = CLI.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.InitLogging()
	return cfg, nil
}

func importOptions(cfg *config.Config) paula.ImportOptions {
	return paula.ImportOptions{
		Extensions:          cfg.Import.Extensions,
		AnnotationNamespace: cfg.Import.AnnotationNamespace,
		Parser:              pointer.NewParser(cfg.Import.PointerCacheSize),
	}
}

func exportOptions(cfg *config.Config) (paula.ExportOptions, error) {
	opts := paula.ExportOptions{
		HumanReadable: cfg.Export.HumanReadable,
		OmitDoctype:   !cfg.Export.EmitDoctype,
	}
	if cfg.Storage.BlobDir != "" {
		store, err := cas.NewStore(cfg.Storage.BlobDir)
		if err != nil {
			return opts, fmt.Errorf("open blob store: %w", err)
		}
		opts.Store = store
	}
	return opts, nil
}

// openDocuments opens the corpus at path and discovers its documents.
func openDocuments(path string, cfg *config.Config) ([]corpus.Document, func(), error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, nil, fmt.Errorf("invalid corpus path: %w", err)
	}
	root, cleanup, err := corpus.Open(path)
	if err != nil {
		return nil, nil, err
	}
	docs, err := corpus.Discover(root, cfg.Import.Extensions)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if len(docs) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("no documents found in %s", path)
	}
	return docs, cleanup, nil
}

func openStore(path string) (*graphstore.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("no graph database configured (storage.database or --db)")
	}
	return graphstore.Open(path)
}

// report prints one line per outcome and returns an error naming the
// failed documents.
func report[T any](outcomes []corpus.Outcome[T], line func(corpus.Outcome[T]) string) error {
	var failed []string
	for _, o := range outcomes {
		if o.Failed() {
			fmt.Fprintf(stdout, "FAIL %s: %v\n", o.Document.Rel, o.Err)
			failed = append(failed, o.Document.Rel)
			continue
		}
		fmt.Fprintf(stdout, "ok   %s %s\n", o.Document.Rel, line(o))
	}
	s := corpus.Summarize(outcomes)
	fmt.Fprintf(stdout, "%d documents, %d succeeded, %d failed\n", s.Documents, s.Succeeded, s.Failed)
	if len(failed) > 0 {
		return fmt.Errorf("%d documents failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func importLine(o corpus.Outcome[*paula.ImportResult]) string {
	st := o.Value.Graph.Stats()
	nodes, edges := 0, 0
	for _, n := range st.Nodes {
		nodes += n
	}
	for _, n := range st.Edges {
		edges += n
	}
	line := fmt.Sprintf("(%d files, %d nodes, %d edges", len(o.Value.Files), nodes, edges)
	if o.Value.Dropped > 0 {
		line += fmt.Sprintf(", %d markables dropped", o.Value.Dropped)
	}
	return line + ")"
}

// ImportCmd imports a corpus into the graph database.
type ImportCmd struct {
	Corpus string `arg:"" help:"Corpus directory or tar.xz/tar.gz archive" type:"path"`
	DB     string `name:"db" help:"Override storage.database" type:"path"`
}

func (c *ImportCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docs, cleanup, err := openDocuments(c.Corpus, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	dbPath := cfg.Storage.Database
	if c.DB != "" {
		dbPath = c.DB
	}
	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	outcomes := corpus.ImportAll(ctx, docs, cfg.Corpus.Workers, importOptions(cfg))
	for i, o := range outcomes {
		if o.Failed() {
			continue
		}
		if err := store.Save(ctx, o.Document.Rel, o.Value.Graph); err != nil {
			outcomes[i].Err = err
		}
	}
	return report(outcomes, importLine)
}

// CheckCmd imports a corpus without storing anything.
type CheckCmd struct {
	Corpus string `arg:"" help:"Corpus directory or tar.xz/tar.gz archive" type:"path"`
	JSON   bool   `name:"json" help:"Print graph statistics as JSON"`
}

func (c *CheckCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docs, cleanup, err := openDocuments(c.Corpus, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	outcomes := corpus.ImportAll(context.Background(), docs, cfg.Corpus.Workers, importOptions(cfg))
	if !c.JSON {
		return report(outcomes, importLine)
	}

	type entry struct {
		Document  string  `json:"document"`
		SessionID string  `json:"session_id"`
		Error     string  `json:"error,omitempty"`
		Stats     any     `json:"stats,omitempty"`
		Dropped   int     `json:"dropped,omitempty"`
		Seconds   float64 `json:"seconds"`
	}
	entries := make([]entry, 0, len(outcomes))
	for _, o := range outcomes {
		e := entry{Document: o.Document.Rel, SessionID: o.SessionID, Seconds: o.Duration.Seconds()}
		if o.Failed() {
			e.Error = o.Err.Error()
		} else {
			e.Stats = o.Value.Graph.Stats()
			e.Dropped = o.Value.Dropped
		}
		entries = append(entries, e)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return err
	}
	if s := corpus.Summarize(outcomes); s.Failed > 0 {
		return fmt.Errorf("%d documents failed", s.Failed)
	}
	return nil
}

// ExportCmd writes stored graphs back to PAULA files.
type ExportCmd struct {
	Paths []string `arg:"" optional:"" help:"Document paths to export, as listed by list (default: all)"`
	Out   string   `required:"" help:"Output directory" type:"path"`
	DB    string   `name:"db" help:"Override storage.database" type:"path"`
}

func (c *ExportCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	dbPath := cfg.Storage.Database
	if c.DB != "" {
		dbPath = c.DB
	}
	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	opts, err := exportOptions(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	paths := c.Paths
	if len(paths) == 0 {
		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			paths = append(paths, e.Path)
		}
	}
	docs := make([]corpus.Document, len(paths))
	for i, p := range paths {
		rel, err := validation.SanitizePath(c.Out, filepath.FromSlash(p))
		if err != nil {
			return fmt.Errorf("document %q: %w", p, err)
		}
		docs[i] = corpus.Document{Name: filepath.Base(rel), Dir: filepath.Join(c.Out, rel), Rel: p}
	}

	outcomes := corpus.Run(ctx, "export", docs, cfg.Corpus.Workers, func(ctx context.Context, d corpus.Document) (*paula.ExportResult, error) {
		g, err := store.Load(ctx, d.Rel)
		if err != nil {
			return nil, err
		}
		o := opts
		o.Logger = logging.LoggerFromContext(ctx).With("document", d.Rel)
		res, err := paula.ExportDocument(g, d.Dir, o)
		if err != nil {
			return nil, err
		}
		return res, store.RecordFiles(ctx, d.Rel, res)
	})
	return report(outcomes, func(o corpus.Outcome[*paula.ExportResult]) string {
		return fmt.Sprintf("(%d files)", len(o.Value.Files))
	})
}

// ConvertCmd imports a corpus and exports every document again, into a
// directory or, when Out names a tar.xz or tar.gz file, into an archive.
// With Pack, a directory output is also packed next to itself in the
// configured archive format.
type ConvertCmd struct {
	Corpus string `arg:"" help:"Corpus directory or tar.xz/tar.gz archive" type:"path"`
	Out    string `required:"" help:"Output directory or archive" type:"path"`
	Pack   bool   `help:"Also pack an output directory as <out>.<export.archive_format>"`
}

func (c *ConvertCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	docs, cleanup, err := openDocuments(c.Corpus, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	opts, err := exportOptions(cfg)
	if err != nil {
		return err
	}

	outDir, archivePath := c.Out, ""
	switch {
	case archive.IsSupportedFormat(c.Out):
		archivePath = c.Out
		tmp, err := os.MkdirTemp("", "paula-convert-")
		if err != nil {
			return fmt.Errorf("create temporary directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		outDir = tmp
	case c.Pack:
		archivePath = strings.TrimRight(c.Out, `/\`) + "." + cfg.Export.ArchiveFormat
	}

	outcomes := corpus.ConvertAll(context.Background(), docs, cfg.Corpus.Workers, outDir, importOptions(cfg), opts)
	err = report(outcomes, func(o corpus.Outcome[*corpus.Converted]) string {
		return fmt.Sprintf("(%d files written)", len(o.Value.Export.Files))
	})
	if archivePath == "" {
		return err
	}

	name := archive.CorpusName(archivePath)
	manifest := &archive.Manifest{
		Version:   version,
		Corpus:    name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, o := range outcomes {
		if o.Failed() {
			continue
		}
		md := archive.ManifestDocument{Name: o.Document.Rel}
		for _, f := range o.Value.Export.Files {
			md.Files = append(md.Files, archive.ManifestFile{Name: f.Name, Size: f.Size, SHA256: f.Hash.SHA256, BLAKE3: f.Hash.BLAKE3})
		}
		manifest.Documents = append(manifest.Documents, md)
	}
	if perr := archive.Create(outDir, archivePath, name, manifest); perr != nil {
		return fmt.Errorf("pack %s: %w", archivePath, perr)
	}
	fmt.Fprintf(stdout, "packed %d documents into %s\n", len(manifest.Documents), archivePath)
	return err
}

// ListCmd lists the graphs in the database.
type ListCmd struct {
	DB string `name:"db" help:"Override storage.database" type:"path"`
}

func (c *ListCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.Storage.Database
	if c.DB != "" {
		dbPath = c.DB
	}
	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background())
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%-30s %6d nodes %6d edges  %s\n", e.Path, e.Nodes, e.Edges, e.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// PointerCmd classifies and resolves a pointer expression.
type PointerCmd struct {
	Expr string `arg:"" help:"Pointer expression, e.g. \"doc1.tok.xml#tok_1\""`
	Base string `help:"File the expression is relative to"`
}

func (c *PointerCmd) Run() error {
	p := pointer.NewParser(0)
	fmt.Fprintf(stdout, "type: %s\n", p.Classify(c.Expr))
	refs, err := p.Resolve(c.Expr, c.Base)
	if err != nil {
		return err
	}
	for _, r := range refs {
		fmt.Fprintf(stdout, "  %s\n", r)
	}
	fmt.Fprintf(stdout, "canonical: %s\n", pointer.Format(refs, c.Base))
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "paula version %s (sqlite: %s)\n", version, info.DriverType)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("paula"),
		kong.Description("PAULA stand-off XML import and export"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
