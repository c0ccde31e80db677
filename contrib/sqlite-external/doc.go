// Package sqliteexternal registers the CGO SQLite driver
// (github.com/mattn/go-sqlite3) for graph snapshot stores.
//
// It is compiled only with the cgo_sqlite build tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/paula
//
// Without the tag, core/sqlite uses the pure Go modernc.org/sqlite driver.
package sqliteexternal
