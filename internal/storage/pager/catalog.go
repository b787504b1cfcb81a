package pager

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tinydb-project/tinydb/internal/storage"
)

// ───────────────────────────────────────────────────────────────────────────
// System catalog — a single serialized blob rooted at the header
// ───────────────────────────────────────────────────────────────────────────
//
// The catalog holds every table's schema (columns, PK root page, foreign
// keys, autoincrement root), every secondary index's descriptor, and a
// schema version bumped on every DDL. It is kept in memory as one decoded
// structure and flushed as a single JSON blob through the pager's generic
// overflow chain (chain.go) whenever it changes; oversize serializations
// spill across as many overflow pages as needed automatically. The
// header's CatalogRoot field points at the head of that chain.

// CatalogColumn describes one column as persisted in the catalog.
type CatalogColumn struct {
	Name          string `json:"name"`
	Type          int    `json:"type"`       // ColType as int
	Constraint    int    `json:"constraint"` // ConstraintType as int
	Nullable      bool   `json:"nullable"`
	PrimaryKey    bool   `json:"primary_key"`
	Autoincrement bool   `json:"autoincrement"`
	Default       string `json:"default,omitempty"`
	FKTable       string `json:"fk_table,omitempty"`
	FKColumn      string `json:"fk_col,omitempty"`
	PtrTable      string `json:"ptr_table,omitempty"`
}

// ForeignKeyDescriptor records one FK relationship, independent of the
// owning column's own FKTable/FKColumn shorthand. Nothing in this package
// fills or reads TableDescriptor.ForeignKeys; foreign keys are carried by
// each CatalogColumn's FKTable/FKColumn.
type ForeignKeyDescriptor struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// TableDescriptor is the catalog's persisted record for one table.
type TableDescriptor struct {
	Tenant      string                  `json:"tenant"`
	Table       string                  `json:"table"`
	RootPageID  PageID                  `json:"root_page_id"`
	Columns     []CatalogColumn         `json:"columns"`
	ForeignKeys []ForeignKeyDescriptor  `json:"foreign_keys,omitempty"`
	AutoincRoot PageID                  `json:"autoinc_root,omitempty"`
	RowCount    int64                   `json:"row_count"`
	Version     int                     `json:"version"`
}

// IndexDescriptor is the catalog's persisted record for one secondary
// B-tree index. The primary-key index is implicit (it is the table's own
// B-tree) and is never listed here.
type IndexDescriptor struct {
	Name       string   `json:"name"`
	Tenant     string   `json:"tenant"`
	Table      string   `json:"table"`
	Columns    []string `json:"columns"`
	Unique     bool     `json:"unique"`
	RootPageID PageID   `json:"root_page_id"`
}

// catalogImage is the JSON-serializable shape of the whole catalog.
type catalogImage struct {
	SchemaVersion int                         `json:"schema_version"`
	Tables        map[string]*TableDescriptor `json:"tables"`
	Indexes       map[string]*IndexDescriptor `json:"indexes"`
}

// Catalog manages the system catalog.
type Catalog struct {
	mu    sync.RWMutex
	pager *Pager
	img   catalogImage
}

func catalogTableKey(tenant, table string) string { return tenant + "\x00" + table }
func catalogIndexKey(tenant, name string) string   { return tenant + "\x00" + name }

// OpenCatalog loads the catalog from the header's CatalogRoot pointer, or
// creates an empty one (and a backing overflow chain) for a brand-new
// database.
func OpenCatalog(p *Pager, txID TxID) (*Catalog, error) {
	hdr := p.Header()
	cat := &Catalog{
		pager: p,
		img: catalogImage{
			Tables:  make(map[string]*TableDescriptor),
			Indexes: make(map[string]*IndexDescriptor),
		},
	}

	if hdr.CatalogRoot == InvalidPageID {
		if err := cat.flush(txID); err != nil {
			return nil, fmt.Errorf("create catalog: %w", err)
		}
		return cat, nil
	}

	raw, err := p.ReadChain(hdr.CatalogRoot, 0)
	if err != nil {
		return nil, fmt.Errorf("read catalog chain: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cat.img); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
	}
	if cat.img.Tables == nil {
		cat.img.Tables = make(map[string]*TableDescriptor)
	}
	if cat.img.Indexes == nil {
		cat.img.Indexes = make(map[string]*IndexDescriptor)
	}
	return cat, nil
}

// flush re-serializes the catalog image, rewrites its overflow chain, and
// updates the header's CatalogRoot pointer, freeing the previous chain.
func (c *Catalog) flush(txID TxID) error {
	raw, err := storage.JSONMarshal(c.img)
	if err != nil {
		return err
	}
	oldRoot := c.pager.Header().CatalogRoot
	newRoot, err := c.pager.WriteChain(txID, raw)
	if err != nil {
		return err
	}
	c.pager.UpdateHeader(func(h *Header) { h.CatalogRoot = newRoot })
	if oldRoot != InvalidPageID && oldRoot != newRoot {
		c.pager.FreeChain(oldRoot)
	}
	return nil
}

// Root returns the PageID of the catalog's overflow chain head.
func (c *Catalog) Root() PageID { return c.pager.Header().CatalogRoot }

// SchemaVersion returns the catalog's current schema version.
func (c *Catalog) SchemaVersion() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.img.SchemaVersion
}

// PutTable upserts a table descriptor and bumps the schema version.
func (c *Catalog) PutTable(txID TxID, entry TableDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img.SchemaVersion++
	entry.Version = c.img.SchemaVersion
	cp := entry
	c.img.Tables[catalogTableKey(entry.Tenant, entry.Table)] = &cp
	return c.flush(txID)
}

// GetTable retrieves a table descriptor. Returns (nil, nil) if not found.
func (c *Catalog) GetTable(tenant, table string) (*TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.img.Tables[catalogTableKey(tenant, table)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// DeleteTable removes a table descriptor and bumps the schema version.
// A no-op (but still version-bumping) if the table does not exist.
func (c *Catalog) DeleteTable(txID TxID, tenant, table string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := catalogTableKey(tenant, table)
	if _, ok := c.img.Tables[key]; !ok {
		return nil
	}
	delete(c.img.Tables, key)
	c.img.SchemaVersion++
	return c.flush(txID)
}

// RenameTable moves a table descriptor to a new name within the same
// tenant, preserving its root page and columns.
func (c *Catalog) RenameTable(txID TxID, tenant, oldName, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	oldKey := catalogTableKey(tenant, oldName)
	e, ok := c.img.Tables[oldKey]
	if !ok {
		return fmt.Errorf("rename table: %s/%s not found", tenant, oldName)
	}
	cp := *e
	cp.Table = newName
	delete(c.img.Tables, oldKey)
	c.img.SchemaVersion++
	cp.Version = c.img.SchemaVersion
	c.img.Tables[catalogTableKey(tenant, newName)] = &cp
	return c.flush(txID)
}

// ListTables returns all table names for a tenant, sorted.
func (c *Catalog) ListTables(tenant string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := tenant + "\x00"
	var names []string
	for k, e := range c.img.Tables {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, e.Table)
		}
	}
	sort.Strings(names)
	return names, nil
}

// PutIndex upserts an index descriptor and bumps the schema version.
func (c *Catalog) PutIndex(txID TxID, entry IndexDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img.SchemaVersion++
	cp := entry
	c.img.Indexes[catalogIndexKey(entry.Tenant, entry.Name)] = &cp
	return c.flush(txID)
}

// GetIndex retrieves an index descriptor. Returns (nil, nil) if not found.
func (c *Catalog) GetIndex(tenant, name string) (*IndexDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.img.Indexes[catalogIndexKey(tenant, name)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// DeleteIndex removes an index descriptor and bumps the schema version.
func (c *Catalog) DeleteIndex(txID TxID, tenant, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := catalogIndexKey(tenant, name)
	if _, ok := c.img.Indexes[key]; !ok {
		return nil
	}
	delete(c.img.Indexes, key)
	c.img.SchemaVersion++
	return c.flush(txID)
}

// ListIndexes returns every index descriptor declared on a table, sorted
// by name.
func (c *Catalog) ListIndexes(tenant, table string) ([]IndexDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []IndexDescriptor
	for _, e := range c.img.Indexes {
		if e.Tenant == tenant && e.Table == table {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ───────────────────────────────────────────────────────────────────────────
// Row key helpers
// ───────────────────────────────────────────────────────────────────────────

// RowKey builds a B+Tree key from a sequential row index. Used only by the
// autoincrement counter tree and by diagnostics; ordinary table rows are
// keyed by their encoded primary key (see EncodeKey in key_codec.go).
func RowKey(rowID int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(rowID))
	return buf[:]
}

// ParseRowKey extracts the row index from a RowKey-encoded B+Tree key.
func ParseRowKey(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}
