package tinydb

import (
	"fmt"

	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

// Row is a column-name-keyed view of one table row, used at the Insert,
// Update, Get, and Scan boundary. Internally tinydb stores rows as
// ordered tuples matching the table's declared column order.
type Row map[string]Value

// Insert adds a new row to table. Any primary-key column omitted from
// values (or explicitly NULL) is substituted with the table's next
// autoincrement value, if the table has one; Insert returns that
// generated value (or NullValue if none was generated).
func (db *DB) Insert(table string, values Row) (Value, error) {
	schema, err := db.TableSchema(table)
	if err != nil {
		return NullValue, err
	}

	row := make([]Value, len(schema))
	generated := NullValue
	for i, col := range schema {
		v, present := values[col.Name]
		if !present {
			v = NullValue
		}
		if v.IsNull() && col.Autoincrement {
			next, err := db.backend.NextAutoincrement(defaultTenant, table)
			if err != nil {
				return NullValue, wrapBackendErr("insert", err)
			}
			v = IntegerValue(next)
			generated = v
		}
		if v.IsNull() && !col.Nullable {
			if !col.Default.IsNull() {
				v = col.Default
			} else {
				return NullValue, newError(KindConstraint, "insert", fmt.Errorf("table %q: column %q is NOT NULL", table, col.Name))
			}
		}
		if !v.IsNull() && v.Kind != col.Type.valueKind() {
			return NullValue, newError(KindConstraint, "insert", fmt.Errorf("table %q: column %q expects %s, got %s", table, col.Name, col.Type, kindName(v.Kind)))
		}
		row[i] = v
	}

	if err := db.checkForeignKeys(schema, row); err != nil {
		return NullValue, err
	}

	if err := db.backend.InsertRow(defaultTenant, table, row); err != nil {
		return NullValue, wrapBackendErr("insert", err)
	}
	return generated, nil
}

// Get fetches a single row by its primary-key values, in the order the
// primary-key columns were declared. ok is false if no row matches.
func (db *DB) Get(table string, pk ...Value) (Row, bool, error) {
	schema, err := db.TableSchema(table)
	if err != nil {
		return nil, false, err
	}
	row, ok, err := db.backend.GetRow(defaultTenant, table, pk)
	if err != nil {
		return nil, false, wrapBackendErr("get", err)
	}
	if !ok {
		return nil, false, nil
	}
	return rowToNamed(schema, row), true, nil
}

// Update replaces the row identified by pk with values. Columns absent
// from values are set to NULL, or to the column's Default when it is NOT
// NULL (a NOT NULL column with no Default is then a ConstraintError).
// Update replaces the whole row, like Insert — it does not merge with the
// existing row. The primary key may itself
// change, as long as no other row already has the new key.
func (db *DB) Update(table string, pk []Value, values Row) error {
	schema, err := db.TableSchema(table)
	if err != nil {
		return err
	}
	row := make([]Value, len(schema))
	for i, col := range schema {
		v, present := values[col.Name]
		if !present {
			v = NullValue
		}
		if v.IsNull() && !col.Nullable {
			if !col.Default.IsNull() {
				v = col.Default
			} else {
				return newError(KindConstraint, "update", fmt.Errorf("table %q: column %q is NOT NULL", table, col.Name))
			}
		}
		if !v.IsNull() && v.Kind != col.Type.valueKind() {
			return newError(KindConstraint, "update", fmt.Errorf("table %q: column %q expects %s, got %s", table, col.Name, col.Type, kindName(v.Kind)))
		}
		row[i] = v
	}
	if err := db.checkForeignKeys(schema, row); err != nil {
		return err
	}
	return wrapBackendErr("update", db.backend.UpdateRow(defaultTenant, table, pk, row))
}

// Delete removes a single row by its primary-key values. It is a
// ConstraintError to delete a row that some other table's row still
// references by foreign key.
func (db *DB) Delete(table string, pk ...Value) error {
	if err := db.checkNoReferencingRows(table, pk); err != nil {
		return err
	}
	return wrapBackendErr("delete", db.backend.DeleteRow(defaultTenant, table, pk))
}

// checkNoReferencingRows returns a ConstraintError if some other table has
// a live row whose foreign-key column still points at the row identified
// by pk in table. This is the delete-side counterpart to
// checkForeignKeys, which validates the insert/update side ("does my FK
// value point to something that exists").
func (db *DB) checkNoReferencingRows(table string, pk []Value) error {
	schema, err := db.TableSchema(table)
	if err != nil {
		return err
	}
	pkCols := schema.pkColumns()
	refValue := make(map[string]Value, len(pkCols))
	for i, c := range pkCols {
		if i < len(pk) {
			refValue[c.Name] = pk[i]
		}
	}

	names, err := db.ListTables()
	if err != nil {
		return err
	}
	for _, childTable := range names {
		childSchema, err := db.TableSchema(childTable)
		if err != nil {
			return err
		}
		for _, c := range childSchema {
			fk := c.ForeignKey
			if fk == nil || fk.RefTable != table {
				continue
			}
			want, ok := refValue[fk.RefColumn]
			if !ok {
				continue
			}
			idx := childSchema.columnIndex(c.Name)
			found := false
			scanErr := db.backend.ScanTableRange(defaultTenant, childTable, nil, nil, true, func(row []pager.Value) bool {
				if idx < 0 || idx >= len(row) || row[idx].IsNull() {
					return true
				}
				if string(pagerEncodeKey([]Value{row[idx]})) == string(pagerEncodeKey([]Value{want})) {
					found = true
					return false
				}
				return true
			})
			if scanErr != nil {
				return wrapBackendErr("delete", scanErr)
			}
			if found {
				return newError(KindConstraint, "delete", fmt.Errorf("table %q: row is still referenced by column %q of table %q", table, c.Name, childTable))
			}
		}
	}
	return nil
}

// Scan iterates every row of table in ascending primary-key order. fn
// returning false stops the scan early.
func (db *DB) Scan(table string, fn func(Row) bool) error {
	return db.ScanRange(table, nil, nil, true, fn)
}

// ScanRange iterates rows of table whose primary key falls within [lo, hi]
// (either bound may be omitted by passing nil, meaning unbounded on that
// side), in ascending or descending primary-key order. fn returning false
// stops the scan early.
func (db *DB) ScanRange(table string, lo, hi []Value, asc bool, fn func(Row) bool) error {
	schema, err := db.TableSchema(table)
	if err != nil {
		return err
	}
	return wrapBackendErr("scan", db.backend.ScanTableRange(defaultTenant, table, lo, hi, asc, func(row []pager.Value) bool {
		return fn(rowToNamed(schema, row))
	}))
}

func rowToNamed(schema TableSchema, row []Value) Row {
	out := make(Row, len(schema))
	for i, col := range schema {
		if i < len(row) {
			out[col.Name] = row[i]
		} else {
			out[col.Name] = NullValue
		}
		// Rows stored before a NOT NULL column was added hold NULL there;
		// they read as the column's Default.
		if out[col.Name].IsNull() && !col.Nullable && !col.Default.IsNull() {
			out[col.Name] = col.Default
		}
	}
	return out
}

// checkForeignKeys verifies every non-NULL foreign-key column in row
// resolves to an existing row in its referenced table.
func (db *DB) checkForeignKeys(schema TableSchema, row []Value) error {
	for i, col := range schema {
		if col.ForeignKey == nil || row[i].IsNull() {
			continue
		}
		fk := col.ForeignKey
		_, found, err := db.backend.GetRow(defaultTenant, fk.RefTable, []Value{row[i]})
		if err != nil {
			return wrapBackendErr("insert", err)
		}
		if !found {
			return newError(KindConstraint, "insert", fmt.Errorf("column %q: no row in %q with %q = %v", col.Name, fk.RefTable, fk.RefColumn, row[i]))
		}
	}
	return nil
}

func (t ColType) valueKind() pager.ValueKind {
	switch t {
	case Integer:
		return pager.KindInteger
	case Text:
		return pager.KindText
	case Real:
		return pager.KindReal
	case Boolean:
		return pager.KindBoolean
	case Timestamp:
		return pager.KindTimestamp
	case Blob:
		return pager.KindBlob
	case Decimal:
		return pager.KindDecimal
	default:
		return pager.KindNull
	}
}

func kindName(k pager.ValueKind) string {
	switch k {
	case pager.KindNull:
		return "NULL"
	case pager.KindInteger:
		return "INTEGER"
	case pager.KindReal:
		return "REAL"
	case pager.KindBoolean:
		return "BOOLEAN"
	case pager.KindTimestamp:
		return "TIMESTAMP"
	case pager.KindText:
		return "TEXT"
	case pager.KindBlob:
		return "BLOB"
	case pager.KindDecimal:
		return "DECIMAL"
	default:
		return "UNKNOWN"
	}
}
