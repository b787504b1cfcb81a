package tinydb

import (
	"errors"
	"fmt"

	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

// ErrorKind tags a tinydb error with the kind of failure it represents, so
// callers can branch on it without string matching.
type ErrorKind uint8

const (
	KindIO ErrorKind = iota
	KindCorruption
	KindVersion
	KindDuplicateKey
	KindDuplicateName
	KindNotFound
	KindConstraint
	KindSchema
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "IoError"
	case KindCorruption:
		return "CorruptionError"
	case KindVersion:
		return "VersionError"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindDuplicateName:
		return "DuplicateName"
	case KindNotFound:
		return "NotFound"
	case KindConstraint:
		return "ConstraintError"
	case KindSchema:
		return "SchemaError"
	case KindBusy:
		return "BusyError"
	default:
		return "UnknownError"
	}
}

// Error is the tagged result type every tinydb operation surfaces on
// failure. Op names the failing operation (e.g. "create_table", "insert").
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tinydb: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("tinydb: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether target is a *Error of the same Kind, so callers can
// write `errors.Is(err, tinydb.NotFound)`-style sentinel checks against the
// exported kind markers below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Kind markers usable with errors.Is(err, tinydb.DuplicateKey), etc. Only
// the Kind field is compared (see (*Error).Is).
var (
	IoError         = &Error{Kind: KindIO}
	CorruptionError = &Error{Kind: KindCorruption}
	VersionError    = &Error{Kind: KindVersion}
	DuplicateKey    = &Error{Kind: KindDuplicateKey}
	DuplicateName   = &Error{Kind: KindDuplicateName}
	NotFound        = &Error{Kind: KindNotFound}
	ConstraintError = &Error{Kind: KindConstraint}
	SchemaError     = &Error{Kind: KindSchema}
	BusyError       = &Error{Kind: KindBusy}
)

// KindOf extracts the ErrorKind from err, if it (or something it wraps) is
// a *Error. The second return is false for any other error.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

// wrapBackendErr classifies an error returned by the pager/page-backend
// layer into a tagged *Error. The backend layer only exposes a handful of
// sentinels (pager.ErrRowNotFound, pager.ErrDuplicateKey,
// pager.ErrDuplicateName); everything else is an opaque I/O failure.
func wrapBackendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pager.ErrDuplicateKey):
		return newError(KindDuplicateKey, op, err)
	case errors.Is(err, pager.ErrRowNotFound):
		return newError(KindNotFound, op, err)
	case errors.Is(err, pager.ErrDuplicateName):
		return newError(KindDuplicateName, op, err)
	default:
		return newError(KindIO, op, err)
	}
}
