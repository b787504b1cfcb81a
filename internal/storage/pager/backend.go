// Package pager — PageBackend integrates the page-based storage engine
// with tinydb's table-level row operations.
package pager

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// ───────────────────────────────────────────────────────────────────────────
// PageBackend
// ───────────────────────────────────────────────────────────────────────────

// ErrDuplicateKey is returned by Insert when a row with the same primary
// key already exists.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrRowNotFound is returned by UpdateRow/DeleteRow when no row matches the
// given key, and by operations that name a table or column that does not
// exist. GetRow reports a missing row as ok == false, not as an error.
var ErrRowNotFound = errors.New("row not found")

// PageBackendConfig configures the page-based storage engine.
type PageBackendConfig struct {
	Path          string // database file path (.db)
	PageSize      int    // 0 = DefaultPageSize (8 KiB)
	MaxCachePages int    // buffer pool size (0 = default 1024)
}

// PageBackend implements a disk-based relational storage engine backed by
// B+Trees, a WAL for crash safety, and a buffer pool for caching.
type PageBackend struct {
	mu      sync.RWMutex
	pager   *Pager
	catalog *Catalog
	config  PageBackendConfig
	closed  bool

	// Stats counters.
	syncCount     atomic.Int64
	loadCount     atomic.Int64
	evictionCount atomic.Int64
}

// NewPageBackend opens or creates a page-based database.
func NewPageBackend(cfg PageBackendConfig) (*PageBackend, error) {
	ps := cfg.PageSize
	if ps == 0 {
		ps = DefaultPageSize
	}

	walPath := cfg.Path + ".wal"

	pgr, err := OpenPager(PagerConfig{
		DBPath:        cfg.Path,
		WALPath:       walPath,
		PageSize:      ps,
		MaxCachePages: cfg.MaxCachePages,
	})
	if err != nil {
		return nil, fmt.Errorf("open page backend: %w", err)
	}

	txID, err := pgr.BeginTx()
	if err != nil {
		pgr.Close()
		return nil, err
	}
	cat, err := OpenCatalog(pgr, txID)
	if err != nil {
		pgr.Close()
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := pgr.CommitTx(txID); err != nil {
		pgr.Close()
		return nil, err
	}

	return &PageBackend{
		pager:   pgr,
		catalog: cat,
		config:  cfg,
	}, nil
}

// ── Column descriptor ─────────────────────────────────────────────────────

// ColumnInfo is a simplified, pager-internal column descriptor that does
// not import higher layers (to avoid circular dependencies).
type ColumnInfo struct {
	Name          string
	Type          int // ColType as int
	Constraint    int // ConstraintType as int
	Nullable      bool
	PrimaryKey    bool
	Autoincrement bool
	Default       string
	FKTable       string
	FKColumn      string
	PointerTable  string
}

func columnsToCatalog(cols []ColumnInfo) []CatalogColumn {
	out := make([]CatalogColumn, len(cols))
	for i, c := range cols {
		out[i] = CatalogColumn{
			Name:          c.Name,
			Type:          c.Type,
			Constraint:    c.Constraint,
			Nullable:      c.Nullable,
			PrimaryKey:    c.PrimaryKey,
			Autoincrement: c.Autoincrement,
			Default:       c.Default,
			FKTable:       c.FKTable,
			FKColumn:      c.FKColumn,
			PtrTable:      c.PointerTable,
		}
	}
	return out
}

func catalogToColumns(cats []CatalogColumn) []ColumnInfo {
	out := make([]ColumnInfo, len(cats))
	for i, cc := range cats {
		out[i] = ColumnInfo{
			Name:          cc.Name,
			Type:          cc.Type,
			Constraint:    cc.Constraint,
			Nullable:      cc.Nullable,
			PrimaryKey:    cc.PrimaryKey,
			Autoincrement: cc.Autoincrement,
			Default:       cc.Default,
			FKTable:       cc.FKTable,
			FKColumn:      cc.FKColumn,
			PointerTable:  cc.PtrTable,
		}
	}
	return out
}

// pkColumnIndexes returns the ordinal positions of the primary-key columns
// in declared column order.
func pkColumnIndexes(cols []ColumnInfo) []int {
	var idx []int
	for i, c := range cols {
		if c.PrimaryKey {
			idx = append(idx, i)
		}
	}
	return idx
}

func pkValues(row []Value, cols []ColumnInfo) []Value {
	idx := pkColumnIndexes(cols)
	out := make([]Value, len(idx))
	for i, ci := range idx {
		out[i] = row[ci]
	}
	return out
}

// ── DDL: table lifecycle ──────────────────────────────────────────────────

// CreateTable creates a new, empty table with the given columns.
func (pb *PageBackend) CreateTable(tenant, name string, cols []ColumnInfo) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	existing, err := pb.catalog.GetTable(tenant, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("table %s/%s: %w", tenant, name, ErrDuplicateName)
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
	var autoRoot PageID = InvalidPageID
	if hasAutoincrement(cols) {
		abt, err := CreateBTree(pb.pager, txID)
		if err != nil {
			pb.pager.AbortTx(txID)
			return err
		}
		autoRoot = abt.Root()
	}

	desc := TableDescriptor{
		Tenant:      tenant,
		Table:       name,
		RootPageID:  bt.Root(),
		Columns:     columnsToCatalog(cols),
		AutoincRoot: autoRoot,
		RowCount:    0,
	}
	if err := pb.catalog.PutTable(txID, desc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

func hasAutoincrement(cols []ColumnInfo) bool {
	for _, c := range cols {
		if c.Autoincrement {
			return true
		}
	}
	return false
}

// ErrDuplicateName is returned by DDL operations (CreateTable, CreateIndex)
// when the name is already taken.
var ErrDuplicateName = errors.New("duplicate name")

// DropTable removes a table from the catalog and frees its pages.
func (pb *PageBackend) DropTable(tenant, name string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	entry, err := pb.catalog.GetTable(tenant, name)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, name, ErrRowNotFound)
	}

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}

	NewBTree(pb.pager, entry.RootPageID).FreeAllPages()
	if entry.AutoincRoot != InvalidPageID {
		NewBTree(pb.pager, entry.AutoincRoot).FreeAllPages()
	}

	idxs, err := pb.catalog.ListIndexes(tenant, name)
	if err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	for _, idx := range idxs {
		NewBTree(pb.pager, idx.RootPageID).FreeAllPages()
		if err := pb.catalog.DeleteIndex(txID, tenant, idx.Name); err != nil {
			pb.pager.AbortTx(txID)
			return err
		}
	}

	if err := pb.catalog.DeleteTable(txID, tenant, name); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// RenameTable renames a table in place, keeping its rows.
func (pb *PageBackend) RenameTable(tenant, oldName, newName string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	if err := pb.catalog.RenameTable(txID, tenant, oldName, newName); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// AddColumn appends a new column to a table's schema. Existing rows are
// left encoded as-is; UnmarshalRow/PadRow backfill NULL at decode time.
func (pb *PageBackend) AddColumn(tenant, table string, col ColumnInfo) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}
	desc.Columns = append(desc.Columns, columnsToCatalog([]ColumnInfo{col})[0])

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	if err := pb.catalog.PutTable(txID, *desc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// RemoveColumn drops a column from a table's schema by name. Existing rows
// retain the stored value at that position (the storage layer does not
// rewrite rows), and rows are decoded by position, so only removing the
// last column leaves the remaining columns aligned with stored data.
func (pb *PageBackend) RemoveColumn(tenant, table, colName string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}
	out := desc.Columns[:0]
	found := false
	for _, c := range desc.Columns {
		if c.Name == colName {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		return fmt.Errorf("column %s: %w", colName, ErrRowNotFound)
	}
	desc.Columns = out

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	if err := pb.catalog.PutTable(txID, *desc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// ListTableNames returns all table names for a tenant.
func (pb *PageBackend) ListTableNames(tenant string) ([]string, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.catalog.ListTables(tenant)
}

// TableExists reports whether a table exists in the catalog.
func (pb *PageBackend) TableExists(tenant, name string) bool {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	entry, _ := pb.catalog.GetTable(tenant, name)
	return entry != nil
}

// TableSchema returns a table's column list, or nil if the table does not
// exist.
func (pb *PageBackend) TableSchema(tenant, name string) ([]ColumnInfo, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	desc, err := pb.catalog.GetTable(tenant, name)
	if err != nil || desc == nil {
		return nil, err
	}
	return catalogToColumns(desc.Columns), nil
}

// ── DML: row-level CRUD, keyed by the encoded primary key ────────────────

// NextAutoincrement allocates and persists the next autoincrement value
// for a single-column INTEGER primary key.
func (pb *PageBackend) NextAutoincrement(tenant, table string) (int64, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return 0, err
	}
	if desc == nil {
		return 0, fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}
	if desc.AutoincRoot == InvalidPageID {
		return 0, fmt.Errorf("table %s/%s has no autoincrement column", tenant, table)
	}

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return 0, err
	}
	abt := NewBTree(pb.pager, desc.AutoincRoot)
	var next int64 = 1
	if val, ok, err := abt.Get(RowKey(0)); err != nil {
		pb.pager.AbortTx(txID)
		return 0, err
	} else if ok {
		next = ParseRowKey(val) + 1
	}
	abt.Delete(txID, RowKey(0))
	if err := abt.Insert(txID, RowKey(0), RowKey(next)); err != nil {
		pb.pager.AbortTx(txID)
		return 0, err
	}
	if abt.Root() != desc.AutoincRoot {
		desc.AutoincRoot = abt.Root()
		if err := pb.catalog.PutTable(txID, *desc); err != nil {
			pb.pager.AbortTx(txID)
			return 0, err
		}
	}
	if err := pb.pager.CommitTx(txID); err != nil {
		return 0, err
	}
	return next, nil
}

// InsertRow inserts a new row, keyed by its encoded primary key. Returns
// ErrDuplicateKey if a row with the same key already exists.
func (pb *PageBackend) InsertRow(tenant, table string, row []Value) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}
	cols := catalogToColumns(desc.Columns)
	key := EncodeKey(pkValues(row, cols))

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	bt := NewBTree(pb.pager, desc.RootPageID)
	if _, ok, err := bt.Get(key); err != nil {
		pb.pager.AbortTx(txID)
		return err
	} else if ok {
		pb.pager.AbortTx(txID)
		return fmt.Errorf("table %s/%s key: %w", tenant, table, ErrDuplicateKey)
	}

	if err := pb.maintainIndexesOnInsert(txID, tenant, table, cols, key, row); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}

	val := MarshalRow(row, nil)
	if err := bt.Insert(txID, key, val); err != nil {
		pb.pager.AbortTx(txID)
		return fmt.Errorf("insert row: %w", err)
	}

	desc.RowCount++
	desc.RootPageID = bt.Root()
	if err := pb.catalog.PutTable(txID, *desc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// GetRow fetches a single row by its primary-key values. ok is false if no
// row matches.
func (pb *PageBackend) GetRow(tenant, table string, keyValues []Value) (row []Value, ok bool, err error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	pb.loadCount.Add(1)

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil || desc == nil {
		return nil, false, err
	}
	bt := NewBTree(pb.pager, desc.RootPageID)
	val, found, err := bt.Get(EncodeKey(keyValues))
	if err != nil || !found {
		return nil, false, err
	}
	row, err = UnmarshalRow(val)
	if err != nil {
		return nil, false, err
	}
	return PadRow(row, len(desc.Columns)), true, nil
}

// UpdateRow replaces the row at keyValues with newRow. If newRow carries a
// different primary key, the old key is deleted and the row is stored under
// the new key, which must not already exist (ErrDuplicateKey).
func (pb *PageBackend) UpdateRow(tenant, table string, keyValues []Value, newRow []Value) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	bt := NewBTree(pb.pager, desc.RootPageID)
	cols := catalogToColumns(desc.Columns)
	key := EncodeKey(keyValues)
	oldVal, found, err := bt.Get(key)
	if err != nil {
		pb.pager.AbortTx(txID)
		return err
	} else if !found {
		pb.pager.AbortTx(txID)
		return fmt.Errorf("table %s/%s key: %w", tenant, table, ErrRowNotFound)
	}
	oldRow, err := UnmarshalRow(oldVal)
	if err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	oldRow = PadRow(oldRow, len(cols))

	newKey := EncodeKey(pkValues(newRow, cols))
	if string(newKey) != string(key) {
		if _, found, err := bt.Get(newKey); err != nil {
			pb.pager.AbortTx(txID)
			return err
		} else if found {
			pb.pager.AbortTx(txID)
			return fmt.Errorf("table %s/%s key: %w", tenant, table, ErrDuplicateKey)
		}
		if _, err := bt.Delete(txID, key); err != nil {
			pb.pager.AbortTx(txID)
			return err
		}
	}

	if err := pb.maintainIndexesOnDelete(txID, tenant, table, cols, key, oldRow); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	if err := pb.maintainIndexesOnInsert(txID, tenant, table, cols, newKey, newRow); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}

	val := MarshalRow(newRow, nil)
	if err := bt.Insert(txID, newKey, val); err != nil {
		pb.pager.AbortTx(txID)
		return fmt.Errorf("update row: %w", err)
	}

	desc.RootPageID = bt.Root()
	if err := pb.catalog.PutTable(txID, *desc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// DeleteRow removes a single row by its primary-key values.
func (pb *PageBackend) DeleteRow(tenant, table string, keyValues []Value) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}

	txID, err := pb.pager.BeginTx()
	if err != nil {
		return err
	}
	bt := NewBTree(pb.pager, desc.RootPageID)
	key := EncodeKey(keyValues)
	cols := catalogToColumns(desc.Columns)
	oldVal, found, err := bt.Get(key)
	if err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	if !found {
		pb.pager.AbortTx(txID)
		return fmt.Errorf("table %s/%s key: %w", tenant, table, ErrRowNotFound)
	}
	oldRow, err := UnmarshalRow(oldVal)
	if err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	oldRow = PadRow(oldRow, len(cols))
	if err := pb.maintainIndexesOnDelete(txID, tenant, table, cols, key, oldRow); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	if _, err := bt.Delete(txID, key); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}

	desc.RowCount--
	desc.RootPageID = bt.Root()
	if err := pb.catalog.PutTable(txID, *desc); err != nil {
		pb.pager.AbortTx(txID)
		return err
	}
	return pb.pager.CommitTx(txID)
}

// ScanTable iterates rows in ascending primary-key order. fn returning
// false stops the scan early.
func (pb *PageBackend) ScanTable(tenant, table string, fn func(row []Value) bool) error {
	return pb.ScanTableRange(tenant, table, nil, nil, true, fn)
}

// ScanTableRange iterates rows whose encoded primary key falls within
// [lo, hi] (either bound nil means unbounded on that side), in ascending
// or descending primary-key order. fn returning false stops the scan
// early.
func (pb *PageBackend) ScanTableRange(tenant, table string, lo, hi []Value, asc bool, fn func(row []Value) bool) error {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	desc, err := pb.catalog.GetTable(tenant, table)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("table %s/%s: %w", tenant, table, ErrRowNotFound)
	}
	bt := NewBTree(pb.pager, desc.RootPageID)
	ncols := len(desc.Columns)

	var loKey, hiKey []byte
	if lo != nil {
		loKey = EncodeKey(lo)
	}
	if hi != nil {
		hiKey = EncodeKey(hi)
	}

	visit := func(_, val []byte) bool {
		row, err := UnmarshalRow(val)
		if err != nil {
			return false
		}
		return fn(PadRow(row, ncols))
	}
	if asc {
		return bt.ScanRange(loKey, hiKey, visit)
	}
	return bt.ScanRangeDesc(loKey, hiKey, visit)
}

// ── Lifecycle & diagnostics ───────────────────────────────────────────────

// Sync performs a checkpoint.
func (pb *PageBackend) Sync() error {
	pb.syncCount.Add(1)
	return pb.pager.Checkpoint()
}

// Close performs a final checkpoint and closes all files.
func (pb *PageBackend) Close() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.closed {
		return nil
	}
	pb.closed = true
	return pb.pager.Close()
}

// Pager returns the underlying pager (for inspection tools).
func (pb *PageBackend) Pager() *Pager { return pb.pager }

// Catalog returns the underlying catalog (for inspection tools).
func (pb *PageBackend) Catalog() *Catalog { return pb.catalog }

// Stats returns operational statistics.
func (pb *PageBackend) Stats() PageBackendStats {
	hdr := pb.pager.Header()
	return PageBackendStats{
		PageSize:      int(hdr.PageSize),
		PageCount:     hdr.PageCount,
		FreePages:     pb.pager.freeMgr.Count(),
		CheckpointLSN: hdr.CheckpointLSN,
		NextTxID:      hdr.NextTxID,
		SyncCount:     pb.syncCount.Load(),
		LoadCount:     pb.loadCount.Load(),
		DBPath:        pb.config.Path,
		WALPath:       pb.config.Path + ".wal",
	}
}

// PageBackendStats holds operational metrics.
type PageBackendStats struct {
	PageSize      int
	PageCount     uint64
	FreePages     int
	CheckpointLSN LSN
	NextTxID      TxID
	SyncCount     int64
	LoadCount     int64
	DBPath        string
	WALPath       string
}

// DBPath returns the database file path.
func (pb *PageBackend) DBPath() string {
	return filepath.Clean(pb.config.Path)
}
