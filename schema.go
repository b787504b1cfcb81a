package tinydb

import (
	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

// ColType identifies the declared type of a column. It governs both the
// value kind accepted on Insert/Update and the key encoding used when the
// column participates in a primary key or secondary index.
type ColType int

const (
	Integer ColType = iota
	Text
	Real
	Boolean
	Timestamp
	Blob
	Decimal
)

func (t ColType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Text:
		return "TEXT"
	case Real:
		return "REAL"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	case Blob:
		return "BLOB"
	case Decimal:
		return "DECIMAL"
	default:
		return "UNKNOWN"
	}
}

// ForeignKey declares that Column must reference an existing row's
// RefColumn in RefTable. Enforced at Insert/Update time (ConstraintError on
// violation), at Delete time (rejecting removal of a still-referenced
// row), and at DropTable/RemoveColumn of a referenced table/column.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Column describes one column of a table.
type Column struct {
	Name          string
	Type          ColType
	Nullable      bool
	PrimaryKey    bool
	Autoincrement bool

	// Default is used when a NOT NULL column is omitted from an Insert. A
	// zero Value (Value{}) means "no default" — omitting such a column is
	// a ConstraintError.
	Default Value

	// ForeignKey, if non-nil, constrains this column's values.
	ForeignKey *ForeignKey
}

// TableSchema is the full column list of a table, in declared order. The
// primary key may span more than one column (composite keys are declared
// by setting PrimaryKey on each participating Column, in the order they
// should be encoded).
type TableSchema []Column

// IndexSchema describes a secondary B-tree index.
type IndexSchema struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (s TableSchema) pkColumns() []Column {
	var out []Column
	for _, c := range s {
		if c.PrimaryKey {
			out = append(out, c)
		}
	}
	return out
}

func (s TableSchema) column(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s TableSchema) columnIndex(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func colTypeToPager(t ColType) int { return int(t) }

func colTypeFromPager(t int) ColType { return ColType(t) }

func toPagerColumns(schema TableSchema) []pager.ColumnInfo {
	out := make([]pager.ColumnInfo, len(schema))
	for i, c := range schema {
		pc := pager.ColumnInfo{
			Name:          c.Name,
			Type:          colTypeToPager(c.Type),
			Nullable:      c.Nullable,
			PrimaryKey:    c.PrimaryKey,
			Autoincrement: c.Autoincrement,
		}
		if !c.Default.IsNull() {
			pc.Default = valueToToken(c.Default)
		}
		if c.ForeignKey != nil {
			pc.FKTable = c.ForeignKey.RefTable
			pc.FKColumn = c.ForeignKey.RefColumn
		}
		out[i] = pc
	}
	return out
}

func fromPagerColumns(cols []pager.ColumnInfo) TableSchema {
	out := make(TableSchema, len(cols))
	for i, pc := range cols {
		c := Column{
			Name:          pc.Name,
			Type:          colTypeFromPager(pc.Type),
			Nullable:      pc.Nullable,
			PrimaryKey:    pc.PrimaryKey,
			Autoincrement: pc.Autoincrement,
		}
		if pc.Default != "" {
			c.Default = tokenToValue(pc.Default, c.Type)
		}
		if pc.FKTable != "" {
			c.ForeignKey = &ForeignKey{Column: pc.Name, RefTable: pc.FKTable, RefColumn: pc.FKColumn}
		}
		out[i] = c
	}
	return out
}
