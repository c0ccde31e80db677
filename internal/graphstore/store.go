// Package graphstore keeps snapshots of imported annotation graphs in a
// SQLite database, together with the digests of the files each document
// was last exported to.
//
// Documents are stored under their path relative to the corpus root, so
// two documents with the same directory name in different parts of a
// corpus are kept apart.
package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	perrors "github.com/FocuswithJustin/paula/core/errors"
	"github.com/FocuswithJustin/paula/core/graph"
	"github.com/FocuswithJustin/paula/core/paula"
	"github.com/FocuswithJustin/paula/core/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		nodes INTEGER NOT NULL,
		edges INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS files (
		document TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		sha256 TEXT NOT NULL,
		blake3 TEXT NOT NULL,
		PRIMARY KEY (document, name),
		FOREIGN KEY (document) REFERENCES documents(path) ON DELETE CASCADE
	);
`

// Store is a graph snapshot database.
type Store struct {
	db *sql.DB
}

// Entry describes one stored document.
type Entry struct {
	// Path is the document's path relative to its corpus root.
	Path string `json:"path"`
	// Name is the graph name.
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, perrors.NewIO("open", path, err)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, perrors.Wrap(err, "create schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the snapshot of g under path, replacing an earlier one
// along with its recorded files.
func (s *Store) Save(ctx context.Context, path string, g *graph.Graph) error {
	if path == "" {
		return perrors.NewValidation("path", "document path must not be empty")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return perrors.Wrapf(err, "encode graph %s", path)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		return perrors.Wrapf(err, "save %s", path)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO documents (path, name, snapshot, nodes, edges, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		path, g.Name(), string(data), len(g.Nodes()), len(g.Edges()), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return perrors.Wrapf(err, "save %s", path)
	}
	return tx.Commit()
}

// Load restores the graph stored under path.
func (s *Store) Load(ctx context.Context, path string) (*graph.Graph, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM documents WHERE path = ?", path).Scan(&data)
	if perrors.Is(err, sql.ErrNoRows) {
		return nil, perrors.NewNotFound("document", path)
	}
	if err != nil {
		return nil, perrors.Wrapf(err, "load %s", path)
	}
	var g graph.Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, perrors.Wrapf(err, "decode graph %s", path)
	}
	return &g, nil
}

// List returns the stored documents sorted by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, name, nodes, edges, updated_at FROM documents ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated string
		if err := rows.Scan(&e.Path, &e.Name, &e.Nodes, &e.Edges, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a document and its recorded files.
func (s *Store) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perrors.NewNotFound("document", path)
	}
	return nil
}

// RecordFiles replaces the files recorded for the document stored under
// path. The document must have been saved first.
func (s *Store) RecordFiles(ctx context.Context, path string, res *paula.ExportResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE document = ?", path); err != nil {
		return err
	}
	for _, f := range res.Files {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO files (document, name, size, sha256, blake3) VALUES (?, ?, ?, ?, ?)",
			path, f.Name, f.Size, f.Hash.SHA256, f.Hash.BLAKE3)
		if err != nil {
			return perrors.Wrapf(err, "record %s/%s", path, f.Name)
		}
	}
	return tx.Commit()
}

// Files returns the files recorded for a document, sorted by name.
func (s *Store) Files(ctx context.Context, path string) ([]paula.ExportedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, size, sha256, blake3 FROM files WHERE document = ? ORDER BY name", path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []paula.ExportedFile
	for rows.Next() {
		var f paula.ExportedFile
		if err := rows.Scan(&f.Name, &f.Size, &f.Hash.SHA256, &f.Hash.BLAKE3); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
