// Package tinydb is an embedded, single-file relational storage engine: a
// paged file format, a B+Tree primary-key index per table, secondary
// B+Tree indexes, and a write-ahead log for crash recovery. It has no SQL
// layer — callers build and tear down rows through typed Go calls.
package tinydb

import (
	"fmt"
	"os"
	"strings"

	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

// defaultTenant is the catalog namespace used for every table in a single
// database file. tinydb is not multi-tenant; the pager layer's tenant
// parameter exists only because it is shared with code that is.
const defaultTenant = ""

// Options configures Open.
type Options struct {
	// PageSize is the on-disk page size in bytes. Zero selects the
	// pager's default (8 KiB). Only takes effect when creating a new
	// database file; ignored when opening an existing one.
	PageSize int

	// MaxCachePages bounds the in-memory buffer pool. Zero selects the
	// pager's default.
	MaxCachePages int
}

// DB is an open database file.
type DB struct {
	backend  *pager.PageBackend
	lockFile *os.File
	lockPath string

	// txSem is a 1-slot semaphore enforcing tinydb's single-active-writer
	// rule for explicit transactions (see Begin in txn.go).
	txSem chan struct{}
}

// Open opens the database file at path, creating it if it does not exist.
// Open takes an exclusive advisory lock (a sibling "<path>.lock" file) for
// the lifetime of the DB; a second Open of the same path, whether in this
// process or another, fails with BusyError.
func Open(path string, opts Options) (*DB, error) {
	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, newError(KindBusy, "open", fmt.Errorf("database %s is already open (lock file %s exists)", path, lockPath))
		}
		return nil, newError(KindIO, "open", err)
	}

	backend, err := pager.NewPageBackend(pager.PageBackendConfig{
		Path:          path,
		PageSize:      opts.PageSize,
		MaxCachePages: opts.MaxCachePages,
	})
	if err != nil {
		lockFile.Close()
		os.Remove(lockPath)
		return nil, newError(classifyOpenErr(err), "open", err)
	}

	return &DB{backend: backend, lockFile: lockFile, lockPath: lockPath, txSem: make(chan struct{}, 1)}, nil
}

// classifyOpenErr inspects the pager's plain-text error to distinguish a
// corrupt file from an unsupported-version file; the pager layer has no
// typed errors of its own for these (they occur before the catalog, and
// thus before tinydb's own error wrapping, is reachable).
func classifyOpenErr(err error) ErrorKind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "CRC mismatch"), strings.Contains(msg, "bad magic"):
		return KindCorruption
	case strings.Contains(msg, "unsupported format version"), strings.Contains(msg, "unsupported feature flags"):
		return KindVersion
	default:
		return KindIO
	}
}

// Close flushes pending writes, closes the underlying file and WAL, and
// releases the advisory lock.
func (db *DB) Close() error {
	err := db.backend.Close()
	db.lockFile.Close()
	os.Remove(db.lockPath)
	if err != nil {
		return newError(KindIO, "close", err)
	}
	return nil
}

// Sync forces a checkpoint, flushing the WAL into the main file.
func (db *DB) Sync() error {
	if err := db.backend.Sync(); err != nil {
		return newError(KindIO, "sync", err)
	}
	return nil
}

// Path returns the database file's path.
func (db *DB) Path() string {
	return db.backend.DBPath()
}
