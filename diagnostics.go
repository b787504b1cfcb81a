package tinydb

import (
	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

// VacuumResult reports what a Vacuum run found and reclaimed.
type VacuumResult struct {
	TotalPages     int
	ReachablePages int
	FreeBefore     int
	FreeAfter      int
	Reclaimed      int
	Warnings       []string
}

// Vacuum runs a full reachability scan over the database file, adding any
// orphaned (allocated but unreachable) pages back to the free-list. It
// does not shrink the file. Callers should hold no other open Txn while
// Vacuum runs.
func (db *DB) Vacuum() (*VacuumResult, error) {
	res, err := db.backend.GC()
	if err != nil {
		return nil, newError(KindIO, "vacuum", err)
	}
	return &VacuumResult{
		TotalPages:     res.TotalPages,
		ReachablePages: res.ReachablePages,
		FreeBefore:     res.FreeBefore,
		FreeAfter:      res.FreeAfter,
		Reclaimed:      res.Reclaimed,
		Warnings:       res.Errors,
	}, nil
}

// Stats reports operational counters about the open database.
type Stats struct {
	PageSize      int
	PageCount     uint64
	FreePages     int
	CheckpointLSN uint64
	SyncCount     int64
	LoadCount     int64
}

// Stats returns operational counters for the open database.
func (db *DB) Stats() Stats {
	s := db.backend.Stats()
	return Stats{
		PageSize:      s.PageSize,
		PageCount:     s.PageCount,
		FreePages:     s.FreePages,
		CheckpointLSN: uint64(s.CheckpointLSN),
		SyncCount:     s.SyncCount,
		LoadCount:     s.LoadCount,
	}
}

// HeaderInfo reports the decoded contents of page 0 without requiring an
// open DB — useful for diagnosing a file that failed to Open.
func HeaderInfo(path string) (*pager.HeaderInfo, error) {
	info, err := pager.InspectHeader(path)
	if err != nil {
		return nil, newError(classifyOpenErr(err), "header_info", err)
	}
	return info, nil
}

// VerifyFile independently re-checks every page's CRC and stored page ID,
// without requiring an open DB. It returns a list of human-readable
// problems found; an empty (nil) list means no page failed those checks.
// Free-list and B+Tree structure are not checked.
func VerifyFile(path string) ([]string, error) {
	problems, err := pager.VerifyDB(path)
	if err != nil {
		return nil, newError(KindIO, "verify_file", err)
	}
	return problems, nil
}

// DumpIndexTree renders the B+Tree rooted at rootPageID as an indented
// text tree, for debugging.
func DumpIndexTree(path string, rootPageID uint32, pageSize int) (string, error) {
	out, err := pager.DumpTree(path, pager.PageID(rootPageID), pageSize)
	if err != nil {
		return "", newError(KindIO, "dump_index_tree", err)
	}
	return out, nil
}
