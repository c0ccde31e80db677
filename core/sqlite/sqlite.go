// Package sqlite selects the SQLite driver used for graph snapshots.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite
//   - CGO (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3 via contrib/sqlite-external
//
// Use Open() instead of sql.Open() so the compiled-in driver is used.
package sqlite

import (
	"database/sql"
)

// DriverName returns the database/sql driver name.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3 and "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO implementation is compiled in.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database with the compiled-in driver and enables
// foreign key enforcement.
func Open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Info describes the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the compiled-in driver.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
