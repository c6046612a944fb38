//go:build sqlite_vec && cgo

package index

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	// Builds tagged sqlite_vec can then open snapshots with the "sqlite3"
	// driver and run vec0 KNN queries directly against the chunks table.
	vec.Auto()
}
