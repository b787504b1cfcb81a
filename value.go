package tinydb

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tinydb-project/tinydb/internal/storage/pager"
)

// Value is a single typed column value, shared verbatim with the storage
// layer so rows never need per-call conversion.
type Value = pager.Value

// NullValue is the distinguished NULL value.
var NullValue = pager.NullValue

func IntegerValue(v int64) Value           { return pager.IntegerValue(v) }
func RealValue(v float64) Value            { return pager.RealValue(v) }
func BooleanValue(v bool) Value            { return pager.BooleanValue(v) }
func TimestampValue(v time.Time) Value     { return pager.TimestampValue(v) }
func TextValue(v string) Value             { return pager.TextValue(v) }
func BlobValue(v []byte) Value             { return pager.BlobValue(v) }
func DecimalValue(v decimal.Decimal) Value { return pager.DecimalValue(v) }

// valueToToken renders a Value as the plain-string form stored in a
// column's catalog Default field. Only called for non-NULL defaults.
func valueToToken(v Value) string {
	switch v.Kind {
	case pager.KindInteger:
		return strconv.FormatInt(v.Integer, 10)
	case pager.KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case pager.KindBoolean:
		return strconv.FormatBool(v.Boolean)
	case pager.KindTimestamp:
		return v.Timestamp.UTC().Format(time.RFC3339Nano)
	case pager.KindText:
		return v.Text
	case pager.KindBlob:
		return base64.StdEncoding.EncodeToString(v.Blob)
	case pager.KindDecimal:
		return v.Decimal.String()
	default:
		return ""
	}
}

// tokenToValue parses a catalog Default token back into a typed Value of
// the given column type. Malformed tokens decode to the type's zero value
// rather than erroring; CreateTable/AddColumn do not check that a Default's
// kind matches its column's type, so such a Default reads back as that
// zero value.
func tokenToValue(tok string, t ColType) Value {
	switch t {
	case Integer:
		n, _ := strconv.ParseInt(tok, 10, 64)
		return IntegerValue(n)
	case Real:
		f, _ := strconv.ParseFloat(tok, 64)
		return RealValue(f)
	case Boolean:
		b, _ := strconv.ParseBool(tok)
		return BooleanValue(b)
	case Timestamp:
		ts, _ := time.Parse(time.RFC3339Nano, tok)
		return TimestampValue(ts)
	case Blob:
		b, _ := base64.StdEncoding.DecodeString(tok)
		return BlobValue(b)
	case Decimal:
		d, _ := decimal.NewFromString(tok)
		return DecimalValue(d)
	case Text:
		fallthrough
	default:
		return TextValue(tok)
	}
}
