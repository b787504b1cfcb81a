package tinydb

import "testing"

func TestTxn_CommitAppliesStagedWrites(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}

	txn, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Insert("users", Row{"id": IntegerValue(1), "name": TextValue("ada")}); err != nil {
		t.Fatalf("staged insert: %v", err)
	}

	// Not yet visible outside the transaction.
	if _, ok, _ := db.Get("users", IntegerValue(1)); ok {
		t.Fatal("expected uncommitted insert to be invisible outside the txn")
	}
	// But visible to the txn's own reads (read-your-writes).
	row, ok, err := txn.Get("users", IntegerValue(1))
	if err != nil || !ok {
		t.Fatalf("txn get: ok=%v err=%v", ok, err)
	}
	if row["name"].Text != "ada" {
		t.Fatalf("expected staged row visible, got %+v", row)
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, ok, _ := db.Get("users", IntegerValue(1)); !ok {
		t.Fatal("expected committed row to be visible")
	}
}

func TestTxn_RollbackDiscardsStagedWrites(t *testing.T) {
	db := openTemp(t)
	if err := db.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}

	txn, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Insert("users", Row{"id": IntegerValue(1), "name": TextValue("ada")}); err != nil {
		t.Fatalf("staged insert: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, ok, _ := db.Get("users", IntegerValue(1)); ok {
		t.Fatal("expected rolled-back insert to never apply")
	}
}

func TestTxn_ConcurrentBeginIsBusy(t *testing.T) {
	db := openTemp(t)
	txn, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer txn.Rollback()

	_, err = db.Begin()
	if err == nil {
		t.Fatal("expected second Begin to fail")
	}
	if kind, _ := KindOf(err); kind != KindBusy {
		t.Fatalf("expected BusyError, got %v", err)
	}
}

func TestTxn_BeginAfterCommitSucceeds(t *testing.T) {
	db := openTemp(t)
	txn, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	txn2, err := db.Begin()
	if err != nil {
		t.Fatalf("second begin after commit: %v", err)
	}
	txn2.Rollback()
}
