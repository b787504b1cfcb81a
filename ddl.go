package tinydb

import (
	"fmt"
)

// CreateTable declares a new table. schema must include at least one
// primary-key column. Autoincrement is only permitted on a single-column
// INTEGER primary key; any other combination is a SchemaError.
func (db *DB) CreateTable(name string, schema TableSchema) error {
	if len(schema.pkColumns()) == 0 {
		return newError(KindSchema, "create_table", fmt.Errorf("table %q: no primary key column declared", name))
	}
	if err := validateAutoincrement(schema); err != nil {
		return newError(KindSchema, "create_table", fmt.Errorf("table %q: %w", name, err))
	}
	for _, c := range schema {
		if c.ForeignKey != nil {
			if !db.backend.TableExists(defaultTenant, c.ForeignKey.RefTable) {
				return newError(KindSchema, "create_table", fmt.Errorf("table %q: column %q references unknown table %q", name, c.Name, c.ForeignKey.RefTable))
			}
		}
	}
	err := db.backend.CreateTable(defaultTenant, name, toPagerColumns(schema))
	return wrapBackendErr("create_table", err)
}

func validateAutoincrement(schema TableSchema) error {
	var autoCols, pkCols int
	var autoIsIntegerPK bool
	for _, c := range schema {
		if c.PrimaryKey {
			pkCols++
		}
		if c.Autoincrement {
			autoCols++
			if c.PrimaryKey && c.Type == Integer {
				autoIsIntegerPK = true
			}
		}
	}
	if autoCols == 0 {
		return nil
	}
	if autoCols > 1 {
		return fmt.Errorf("autoincrement may be declared on at most one column")
	}
	if pkCols != 1 || !autoIsIntegerPK {
		return fmt.Errorf("autoincrement requires a single-column INTEGER primary key")
	}
	return nil
}

// DropTable removes a table and all of its data and secondary indexes. It
// is a ConstraintError to drop a table that another table's schema still
// references by foreign key.
func (db *DB) DropTable(name string) error {
	if err := db.checkReferencedBy("drop_table", name, ""); err != nil {
		return err
	}
	return wrapBackendErr("drop_table", db.backend.DropTable(defaultTenant, name))
}

// checkReferencedBy returns a ConstraintError if some other table's schema
// declares a ForeignKey pointing at refTable — and, when refColumn is
// non-empty, specifically at that column.
func (db *DB) checkReferencedBy(op, refTable, refColumn string) error {
	names, err := db.ListTables()
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == refTable {
			continue
		}
		schema, err := db.TableSchema(name)
		if err != nil {
			return err
		}
		for _, c := range schema {
			fk := c.ForeignKey
			if fk == nil || fk.RefTable != refTable {
				continue
			}
			if refColumn != "" && fk.RefColumn != refColumn {
				continue
			}
			return newError(KindConstraint, op, fmt.Errorf("table %q: column %q of table %q references %q.%q", name, c.Name, name, refTable, fk.RefColumn))
		}
	}
	return nil
}

// RenameTable renames a table in place.
func (db *DB) RenameTable(oldName, newName string) error {
	return wrapBackendErr("rename_table", db.backend.RenameTable(defaultTenant, oldName, newName))
}

// AddColumn appends a new column to table's schema. A NOT NULL column
// (Nullable == false) must carry a Default, since existing rows have no
// value at that position; reads return the Default for them.
func (db *DB) AddColumn(table string, col Column) error {
	if !col.Nullable && col.Default.IsNull() {
		return newError(KindSchema, "add_column", fmt.Errorf("column %q: NOT NULL column requires a Default", col.Name))
	}
	if col.PrimaryKey || col.Autoincrement {
		return newError(KindSchema, "add_column", fmt.Errorf("column %q: cannot add a primary-key or autoincrement column to an existing table", col.Name))
	}
	pc := toPagerColumns(TableSchema{col})[0]
	return wrapBackendErr("add_column", db.backend.AddColumn(defaultTenant, table, pc))
}

// RemoveColumn drops a column by name. Only the table's last column may be
// removed, so stored rows keep their positional layout and need no
// rewrite; dropping a primary-key column, or any column that is not last,
// is a SchemaError. Dropping a column that another table's schema still
// references by foreign key is a ConstraintError.
func (db *DB) RemoveColumn(table, colName string) error {
	schema, err := db.TableSchema(table)
	if err != nil {
		return err
	}
	col, ok := schema.column(colName)
	if !ok {
		return newError(KindNotFound, "remove_column", fmt.Errorf("table %q: column %q not found", table, colName))
	}
	if col.PrimaryKey {
		return newError(KindSchema, "remove_column", fmt.Errorf("table %q: cannot remove primary-key column %q", table, colName))
	}
	if err := db.checkReferencedBy("remove_column", table, colName); err != nil {
		return err
	}
	if schema.columnIndex(colName) != len(schema)-1 {
		return newError(KindSchema, "remove_column", fmt.Errorf("table %q: only the last column can be removed, and %q is not last", table, colName))
	}
	return wrapBackendErr("remove_column", db.backend.RemoveColumn(defaultTenant, table, colName))
}

// TableSchema returns a table's current column list.
func (db *DB) TableSchema(table string) (TableSchema, error) {
	cols, err := db.backend.TableSchema(defaultTenant, table)
	if err != nil {
		return nil, wrapBackendErr("table_schema", err)
	}
	if cols == nil {
		return nil, newError(KindNotFound, "table_schema", fmt.Errorf("table %q not found", table))
	}
	return fromPagerColumns(cols), nil
}

// ListTables returns every table name in the database.
func (db *DB) ListTables() ([]string, error) {
	names, err := db.backend.ListTableNames(defaultTenant)
	if err != nil {
		return nil, wrapBackendErr("list_tables", err)
	}
	return names, nil
}

// TableExists reports whether table is declared.
func (db *DB) TableExists(table string) bool {
	return db.backend.TableExists(defaultTenant, table)
}

// CreateIndex builds a secondary B-tree index over table's columns,
// populated from the table's existing rows.
func (db *DB) CreateIndex(idx IndexSchema) error {
	if len(idx.Columns) == 0 {
		return newError(KindSchema, "create_index", fmt.Errorf("index %q: no columns declared", idx.Name))
	}
	err := db.backend.CreateIndex(defaultTenant, idx.Name, idx.Table, idx.Columns, idx.Unique)
	return wrapBackendErr("create_index", err)
}

// DropIndex removes a secondary index.
func (db *DB) DropIndex(name string) error {
	return wrapBackendErr("drop_index", db.backend.DropIndex(defaultTenant, name))
}

// ListIndexes returns every secondary index declared on table.
func (db *DB) ListIndexes(table string) ([]IndexSchema, error) {
	idxs, err := db.backend.ListIndexes(defaultTenant, table)
	if err != nil {
		return nil, wrapBackendErr("list_indexes", err)
	}
	out := make([]IndexSchema, len(idxs))
	for i, idx := range idxs {
		out[i] = IndexSchema{Name: idx.Name, Table: idx.Table, Columns: idx.Columns, Unique: idx.Unique}
	}
	return out, nil
}
