package pager

import (
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Secondary indexes
// ───────────────────────────────────────────────────────────────────────────
//
// A secondary index is its own B+Tree, keyed by the encoded indexed column
// values followed by the encoded primary key (so rows sharing the same
// indexed value remain individually addressable and sort stably). The leaf
// value is the encoded primary key, which the caller re-resolves through
// the table's own B+Tree. The primary-key index itself is never stored
// here — it is just the table's RootPageID.

// indexValues projects the row's indexed columns, in the index's declared
// column order.
func indexValues(row []Value, cols []ColumnInfo, indexCols []string) []Value {
	out := make([]Value, len(indexCols))
	for i, name := range indexCols {
		for j, c := range cols {
			if c.Name == name {
				out[i] = row[j]
				break
			}
		}
	}
	return out
}

// prefixUpperBound returns the smallest byte string that sorts strictly
// after every string with the given prefix, or nil if no finite bound
// exists (prefix is all 0xFF bytes) — nil means "unbounded" to ScanRange.
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// CreateIndex builds a new secondary B+Tree index over table's columns and
// populates it from the table's existing rows.
func (pb *PageBackend) CreateIndex(tenant, name, table string, columns []string, unique bool) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if existing, err := pb.catalog.GetIndex(tenant, name); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("index %s/%s: %w", tenant, name, ErrDuplicateName)
	}
	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}
	cols := catalogToColumns(desc.Columns)
	for _, name := range columns {
		found := false
		for _, c := range cols {
			if c.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("index column %q: %w", name, ErrRowNotFound)
		}
	}

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	bt, err := CreateBTree(pb.pager, txID)
	if err != nil {
		pb.pager.AbortTx(txID)
		return err
	}

	tbt := NewBTree(pb.pager, desc.RootPageID)
	var scanErr error
	_ = tbt.ScanRange(nil, nil, func(pk, val []byte) bool {
		row, uerr := UnmarshalRow(val)
		if uerr != nil {
			scanErr = uerr
			return false
		}
		row = PadRow(row, len(cols))
		ivals := indexValues(row, cols, columns)
		ikey := append(EncodeKey(ivals), pk...)
		if uerr := bt.Insert(txID, ikey, pk); uerr != nil {
			scanErr = uerr
			return false
		}
		return true
	})
	if scanErr != nil {
		pb.pager.AbortTx(txID)
		return scanErr
	}

	idxDesc := IndexDescriptor{
		Name: name, Tenant: tenant, Table: table,
		Columns: columns, Unique: unique, RootPageID: bt.Root(),
	}
	if err := pb.catalog.PutIndex(txID, idxDesc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// DropIndex removes a secondary index and frees its pages.
func (pb *PageBackend) DropIndex(tenant, name string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	idx, err := pb.catalog.GetIndex(tenant, name)
	if err != nil {
		return err
	}
	if idx == nil {
		return fmt.Errorf("index %s/%s: %w", tenant, name, ErrRowNotFound)
	}

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	NewBTree(pb.pager, idx.RootPageID).FreeAllPages()
	if err := pb.catalog.DeleteIndex(txID, tenant, name); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// ListIndexes returns every secondary index declared on a table.
func (pb *PageBackend) ListIndexes(tenant, table string) ([]IndexDescriptor, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.catalog.ListIndexes(tenant, table)
}

// maintainIndexesOnInsert adds one entry per secondary index for a newly
// inserted row. Must run inside the caller's transaction.
func (pb *PageBackend) maintainIndexesOnInsert(txID TxID, tenant, table string, cols []ColumnInfo, pk []byte, row []Value) error {
	idxs, err := pb.catalog.ListIndexes(tenant, table)
	if err != nil {
		return err
	}
	for _, idx := range idxs {
		bt := NewBTree(pb.pager, idx.RootPageID)
		ivals := indexValues(row, cols, idx.Columns)
		prefix := EncodeKey(ivals)
		if idx.Unique {
			dup := false
			if serr := bt.ScanRange(prefix, prefixUpperBound(prefix), func(_, _ []byte) bool {
				dup = true
				return false
			}); serr != nil {
				return serr
			}
			if dup {
				return fmt.Errorf("index %s: %w", idx.Name, ErrDuplicateKey)
			}
		}
		ikey := append(append([]byte{}, prefix...), pk...)
		if err := bt.Insert(txID, ikey, pk); err != nil {
			return err
		}
		if bt.Root() != idx.RootPageID {
			idx.RootPageID = bt.Root()
			if err := pb.catalog.PutIndex(txID, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// maintainIndexesOnDelete removes the entry belonging to pk/row from every
// secondary index on table.
func (pb *PageBackend) maintainIndexesOnDelete(txID TxID, tenant, table string, cols []ColumnInfo, pk []byte, row []Value) error {
	idxs, err := pb.catalog.ListIndexes(tenant, table)
	if err != nil {
		return err
	}
	for _, idx := range idxs {
		bt := NewBTree(pb.pager, idx.RootPageID)
		ivals := indexValues(row, cols, idx.Columns)
		ikey := append(EncodeKey(ivals), pk...)
		if _, err := bt.Delete(txID, ikey); err != nil {
			return err
		}
		if bt.Root() != idx.RootPageID {
			idx.RootPageID = bt.Root()
			if err := pb.catalog.PutIndex(txID, idx); err != nil {
				return err
			}
		}
	}
	return nil
}
