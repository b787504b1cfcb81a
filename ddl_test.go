package tinydb

import "testing"

func simpleSchema() TableSchema {
	return TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true, Autoincrement: true},
		{Name: "name", Type: Text},
		{Name: "active", Type: Boolean, Nullable: true},
	}
}

func TestCreateTable_AndListTables(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", simpleSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	names, err := db.ListTables()
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(names) != 1 || names[0] != "users" {
		t.Fatalf("expected [users], got %v", names)
	}
	if !db.TableExists("users") {
		t.Fatal("expected users to exist")
	}
}

func TestCreateTable_DuplicateName(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", simpleSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	err := db.CreateTable("users", simpleSchema())
	if err == nil {
		t.Fatal("expected duplicate-name error")
	}
	if kind, _ := KindOf(err); kind != KindDuplicateName {
		t.Fatalf("expected DuplicateName, got %v", err)
	}
}

func TestCreateTable_NoPrimaryKey(t *testing.T) {
	db := openTemp(t)
	schema := TableSchema{{Name: "name", Type: Text}}
	err := db.CreateTable("users", schema)
	if err == nil {
		t.Fatal("expected schema error for missing primary key")
	}
	if kind, _ := KindOf(err); kind != KindSchema {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestCreateTable_AutoincrementRequiresSingleIntegerPK(t *testing.T) {
	db := openTemp(t)
	schema := TableSchema{
		{Name: "a", Type: Text, PrimaryKey: true},
		{Name: "b", Type: Integer, PrimaryKey: true, Autoincrement: true},
	}
	err := db.CreateTable("bad", schema)
	if err == nil {
		t.Fatal("expected schema error for composite-key autoincrement")
	}
	if kind, _ := KindOf(err); kind != KindSchema {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestDropTable(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", simpleSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := db.DropTable("users"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if db.TableExists("users") {
		t.Fatal("expected users to be gone")
	}
}

func TestRenameTable(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", simpleSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := db.RenameTable("users", "people"); err != nil {
		t.Fatalf("rename table: %v", err)
	}
	if db.TableExists("users") || !db.TableExists("people") {
		t.Fatal("rename did not take effect")
	}
}

func TestAddColumn_NotNullRequiresDefault(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", simpleSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	err := db.AddColumn("users", Column{Name: "score", Type: Integer})
	if err == nil {
		t.Fatal("expected schema error for NOT NULL column with no default")
	}
	if kind, _ := KindOf(err); kind != KindSchema {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	err = db.AddColumn("users", Column{Name: "score", Type: Integer, Default: IntegerValue(0)})
	if err != nil {
		t.Fatalf("add column with default: %v", err)
	}
	schema, err := db.TableSchema("users")
	if err != nil {
		t.Fatalf("table schema: %v", err)
	}
	if _, ok := schema.column("score"); !ok {
		t.Fatal("expected score column to exist")
	}
}

func TestRemoveColumn_RejectsPrimaryKeyAndMissingColumn(t *testing.T) {
	db := openTemp(t)
	schema := TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true},
		{Name: "name", Type: Text, Nullable: true},
	}
	if err := db.CreateTable("users", schema); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := db.RemoveColumn("users", "id"); err == nil {
		t.Fatal("expected rejection of removing primary-key column")
	}
	if err := db.RemoveColumn("users", "name"); err != nil {
		t.Fatalf("remove column: %v", err)
	}
	if err := db.RemoveColumn("users", "name"); err == nil {
		t.Fatal("expected error removing already-removed column")
	}
}

func TestDropTable_RejectsLiveForeignKeyReference(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("depts", TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true},
	}); err != nil {
		t.Fatalf("create depts: %v", err)
	}
	if err := db.CreateTable("emps", TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true},
		{Name: "dept_id", Type: Integer, Nullable: true, ForeignKey: &ForeignKey{RefTable: "depts", RefColumn: "id"}},
	}); err != nil {
		t.Fatalf("create emps: %v", err)
	}

	err := db.DropTable("depts")
	if err == nil {
		t.Fatal("expected constraint error dropping a table still referenced by an FK")
	}
	if kind, _ := KindOf(err); kind != KindConstraint {
		t.Fatalf("expected ConstraintError, got %v", err)
	}

	if err := db.DropTable("emps"); err != nil {
		t.Fatalf("drop referencing table: %v", err)
	}
	if err := db.DropTable("depts"); err != nil {
		t.Fatalf("drop depts after referencing table is gone: %v", err)
	}
}

func TestRemoveColumn_RejectsLiveForeignKeyReference(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("depts", TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true},
		{Name: "code", Type: Text, Nullable: true},
		{Name: "label", Type: Text, Nullable: true},
	}); err != nil {
		t.Fatalf("create depts: %v", err)
	}
	if err := db.CreateTable("emps", TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true},
		{Name: "dept_code", Type: Text, Nullable: true, ForeignKey: &ForeignKey{RefTable: "depts", RefColumn: "code"}},
	}); err != nil {
		t.Fatalf("create emps: %v", err)
	}

	err := db.RemoveColumn("depts", "code")
	if err == nil {
		t.Fatal("expected constraint error removing a column still referenced by an FK")
	}
	if kind, _ := KindOf(err); kind != KindConstraint {
		t.Fatalf("expected ConstraintError, got %v", err)
	}

	if err := db.RemoveColumn("depts", "label"); err != nil {
		t.Fatalf("remove unreferenced column: %v", err)
	}
}

func TestCreateIndex_AndUniqueViolation(t *testing.T) {
	db := openTemp(t)
	schema := TableSchema{
		{Name: "id", Type: Integer, PrimaryKey: true},
		{Name: "email", Type: Text},
	}
	if err := db.CreateTable("users", schema); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Insert("users", Row{"id": IntegerValue(1), "email": TextValue("a@example.com")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.CreateIndex(IndexSchema{Name: "idx_email", Table: "users", Columns: []string{"email"}, Unique: true}); err != nil {
		t.Fatalf("create index: %v", err)
	}

	_, err := db.Insert("users", Row{"id": IntegerValue(2), "email": TextValue("a@example.com")})
	if err == nil {
		t.Fatal("expected duplicate-key error from unique index")
	}
	if kind, _ := KindOf(err); kind != KindDuplicateKey {
		t.Fatalf("expected DuplicateKey, got %v", err)
	}

	idxs, err := db.ListIndexes("users")
	if err != nil {
		t.Fatalf("list indexes: %v", err)
	}
	if len(idxs) != 1 || idxs[0].Name != "idx_email" {
		t.Fatalf("expected [idx_email], got %v", idxs)
	}

	if err := db.DropIndex("idx_email"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := db.Insert("users", Row{"id": IntegerValue(2), "email": TextValue("a@example.com")}); err != nil {
		t.Fatalf("insert after dropping unique index should succeed: %v", err)
	}
}
