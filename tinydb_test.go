package tinydb

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesFile(t *testing.T) {
	db := openTemp(t)
	if db.Path() == "" {
		t.Fatal("expected non-empty path")
	}
}

func TestOpen_SecondOpenIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	defer db.Close()

	_, err = Open(path, Options{})
	if err == nil {
		t.Fatal("expected second open to fail")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindBusy {
		t.Fatalf("expected BusyError, got %v", err)
	}
}

func TestOpen_ReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
}

func TestErrorIs_MatchesKindOnly(t *testing.T) {
	err := newError(KindNotFound, "get", errors.New("boom"))
	if !errors.Is(err, NotFound) {
		t.Fatal("expected errors.Is to match NotFound sentinel")
	}
	if errors.Is(err, DuplicateKey) {
		t.Fatal("did not expect match against a different kind")
	}
}
