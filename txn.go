package tinydb

import (
	"fmt"

	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

func pagerEncodeKey(pk []Value) []byte { return pager.EncodeKey(pk) }

// Txn is an explicit, multi-statement transaction. tinydb allows at most
// one active writer at a time (there is no multi-writer concurrency
// control beyond this); Begin on a DB that already has an open Txn
// returns BusyError.
//
// Statements issued against a Txn are staged in memory and applied to the
// database, each as its own already-atomic backend call, when Commit
// runs. Reads issued through the Txn (Get/Scan) see the Txn's own staged
// writes layered over the last-committed state (read-your-writes); they
// do not see writes from any other Txn, since only one can be open at a
// time.
type Txn struct {
	db      *DB
	done    bool
	ops     []func() error
	overlay map[string]map[string]*overlayEntry
}

type overlayEntry struct {
	row     Row
	deleted bool
}

// Begin opens an explicit transaction. The returned Txn must be finished
// with Commit or Rollback.
func (db *DB) Begin() (*Txn, error) {
	select {
	case db.txSem <- struct{}{}:
	default:
		return nil, newError(KindBusy, "begin", fmt.Errorf("a transaction is already open on this database"))
	}
	return &Txn{db: db, overlay: make(map[string]map[string]*overlayEntry)}, nil
}

func (t *Txn) release() {
	if !t.done {
		t.done = true
		<-t.db.txSem
	}
}

// Commit applies every staged statement, in issue order. If any statement
// fails, the statements issued before it have already taken effect (there
// is no multi-statement rollback of partially-applied commits — each
// statement is its own atomic backend transaction); the caller should
// treat a failed Commit's database state as the prefix that succeeded.
func (t *Txn) Commit() error {
	defer t.release()
	if t.done {
		return newError(KindIO, "commit", fmt.Errorf("transaction already finished"))
	}
	for _, op := range t.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards every staged statement without applying any of them.
func (t *Txn) Rollback() error {
	defer t.release()
	if t.done {
		return newError(KindIO, "rollback", fmt.Errorf("transaction already finished"))
	}
	t.ops = nil
	t.overlay = nil
	return nil
}

func (t *Txn) stageTable(table string) map[string]*overlayEntry {
	m, ok := t.overlay[table]
	if !ok {
		m = make(map[string]*overlayEntry)
		t.overlay[table] = m
	}
	return m
}

// Insert stages an insert, applied at Commit. The row is visible to
// Get/Scan on this Txn immediately.
func (t *Txn) Insert(table string, values Row) error {
	schema, err := t.db.TableSchema(table)
	if err != nil {
		return err
	}
	row := make(Row, len(values))
	for k, v := range values {
		row[k] = v
	}
	pk := pkFromRow(schema, row)
	t.stageTable(table)[overlayKeyRow(table, pk)] = &overlayEntry{row: row}
	t.ops = append(t.ops, func() error {
		_, err := t.db.Insert(table, row)
		return err
	})
	return nil
}

// Update stages an update, applied at Commit.
func (t *Txn) Update(table string, pk []Value, values Row) error {
	t.stageTable(table)[overlayKeyRow(table, pk)] = &overlayEntry{row: values}
	t.ops = append(t.ops, func() error {
		return t.db.Update(table, pk, values)
	})
	return nil
}

// Delete stages a delete, applied at Commit.
func (t *Txn) Delete(table string, pk ...Value) error {
	t.stageTable(table)[overlayKeyRow(table, pk)] = &overlayEntry{deleted: true}
	t.ops = append(t.ops, func() error {
		return t.db.Delete(table, pk...)
	})
	return nil
}

// Get reads a row, preferring this Txn's own staged writes over the
// database's last-committed state.
func (t *Txn) Get(table string, pk ...Value) (Row, bool, error) {
	if m, ok := t.overlay[table]; ok {
		if e, ok := m[overlayKeyRow(table, pk)]; ok {
			if e.deleted {
				return nil, false, nil
			}
			return e.row, true, nil
		}
	}
	return t.db.Get(table, pk...)
}

// Scan iterates the database's last-committed rows, with this Txn's own
// staged inserts/updates/deletes layered on top.
func (t *Txn) Scan(table string, fn func(Row) bool) error {
	schema, err := t.db.TableSchema(table)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	m := t.overlay[table]
	err = t.db.Scan(table, func(row Row) bool {
		key := overlayKeyRow(table, pkFromRow(schema, row))
		seen[key] = true
		if e, ok := m[key]; ok {
			if e.deleted {
				return true
			}
			return fn(e.row)
		}
		return fn(row)
	})
	if err != nil {
		return err
	}
	for key, e := range m {
		if seen[key] || e.deleted {
			continue
		}
		if !fn(e.row) {
			break
		}
	}
	return nil
}

func pkFromRow(schema TableSchema, row Row) []Value {
	var pk []Value
	for _, c := range schema {
		if c.PrimaryKey {
			pk = append(pk, row[c.Name])
		}
	}
	return pk
}

func overlayKeyRow(table string, pk []Value) string {
	return table + "\x00" + string(pagerEncodeKey(pk))
}
