package pager

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ───────────────────────────────────────────────────────────────────────────
// Typed value model and row codec
// ───────────────────────────────────────────────────────────────────────────
//
// A row is an ordered tuple of typed Values matching a table's column list.
// The wire format is compact and allocation-light on the write path:
//
//   [0:2]  ColumnCount (uint16 LE)
//   For each column:
//     [0]    TypeTag (uint8)
//     [1..]  Payload (variable, absent for NULL)
//
// Type tags:
//   0x01 — INTEGER   8 bytes LE, two's complement int64
//   0x02 — REAL      8 bytes LE, IEEE-754 float64
//   0x03 — BOOLEAN   1 byte (0/1)
//   0x04 — TIMESTAMP 8 bytes LE, signed microseconds since Unix epoch
//   0x05 — TEXT      4-byte LE length + UTF-8 bytes
//   0x06 — BLOB      4-byte LE length + raw bytes
//   0x07 — DECIMAL   encoded exactly as TEXT, carrying the canonical
//                    decimal string (shopspring/decimal's own format)
//   0xFF — NULL      no payload

// ValueKind discriminates the tagged Value variant.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInteger
	KindReal
	KindBoolean
	KindTimestamp
	KindText
	KindBlob
	KindDecimal
)

const (
	rowTagInteger   byte = 0x01
	rowTagReal      byte = 0x02
	rowTagBoolean   byte = 0x03
	rowTagTimestamp byte = 0x04
	rowTagText      byte = 0x05
	rowTagBlob      byte = 0x06
	rowTagDecimal   byte = 0x07
	rowTagNull      byte = 0xFF
)

// Value is a single typed column value. Only the field matching Kind is
// meaningful; the rest are zero.
type Value struct {
	Kind      ValueKind
	Integer   int64
	Real      float64
	Boolean   bool
	Timestamp time.Time
	Text      string
	Blob      []byte
	Decimal   decimal.Decimal
}

// NullValue is the distinguished NULL value.
var NullValue = Value{Kind: KindNull}

func IntegerValue(v int64) Value   { return Value{Kind: KindInteger, Integer: v} }
func RealValue(v float64) Value    { return Value{Kind: KindReal, Real: v} }
func BooleanValue(v bool) Value    { return Value{Kind: KindBoolean, Boolean: v} }
func TimestampValue(v time.Time) Value {
	return Value{Kind: KindTimestamp, Timestamp: v.UTC()}
}
func TextValue(v string) Value   { return Value{Kind: KindText, Text: v} }
func BlobValue(v []byte) Value   { return Value{Kind: KindBlob, Blob: v} }
func DecimalValue(v decimal.Decimal) Value {
	return Value{Kind: KindDecimal, Decimal: v}
}

// IsNull reports whether v is the NULL value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// MarshalRow encodes a row of typed Values into the compact binary format.
// It reuses buf's backing array if large enough.
func MarshalRow(row []Value, buf []byte) []byte {
	est := 2 + len(row)*9
	if cap(buf) >= est {
		buf = buf[:0]
	} else {
		buf = make([]byte, 0, est)
	}

	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(row)))
	buf = append(buf, hdr[:]...)

	for _, v := range row {
		buf = appendValue(buf, v)
	}
	return buf
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return append(buf, rowTagNull)
	case KindInteger:
		buf = append(buf, rowTagInteger)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Integer))
		return append(buf, b[:]...)
	case KindReal:
		buf = append(buf, rowTagReal)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Real))
		return append(buf, b[:]...)
	case KindBoolean:
		buf = append(buf, rowTagBoolean)
		if v.Boolean {
			return append(buf, 1)
		}
		return append(buf, 0)
	case KindTimestamp:
		buf = append(buf, rowTagTimestamp)
		var b [8]byte
		micros := v.Timestamp.UnixMicro()
		binary.LittleEndian.PutUint64(b[:], uint64(micros))
		return append(buf, b[:]...)
	case KindText:
		buf = append(buf, rowTagText)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(v.Text)))
		buf = append(buf, b[:]...)
		return append(buf, v.Text...)
	case KindBlob:
		buf = append(buf, rowTagBlob)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(v.Blob)))
		buf = append(buf, b[:]...)
		return append(buf, v.Blob...)
	case KindDecimal:
		buf = append(buf, rowTagDecimal)
		s := v.Decimal.String()
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
		buf = append(buf, b[:]...)
		return append(buf, s...)
	default:
		return append(buf, rowTagNull)
	}
}

// UnmarshalRow decodes a row from the compact binary format. A row with
// fewer encoded columns than a schema's current column count is not
// padded here — callers with a schema in hand pad via PadRow, matching
// the decode-time backfill used for ADD COLUMN.
func UnmarshalRow(data []byte) ([]Value, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("row data too short")
	}
	colCount := int(binary.LittleEndian.Uint16(data[:2]))
	off := 2
	row := make([]Value, colCount)

	for i := 0; i < colCount; i++ {
		if off >= len(data) {
			return nil, fmt.Errorf("unexpected end of row at column %d", i)
		}
		tag := data[off]
		off++

		switch tag {
		case rowTagNull:
			row[i] = NullValue
		case rowTagInteger:
			if off+8 > len(data) {
				return nil, fmt.Errorf("truncated integer at column %d", i)
			}
			row[i] = IntegerValue(int64(binary.LittleEndian.Uint64(data[off : off+8])))
			off += 8
		case rowTagReal:
			if off+8 > len(data) {
				return nil, fmt.Errorf("truncated real at column %d", i)
			}
			row[i] = RealValue(math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8])))
			off += 8
		case rowTagBoolean:
			if off >= len(data) {
				return nil, fmt.Errorf("truncated boolean at column %d", i)
			}
			row[i] = BooleanValue(data[off] != 0)
			off++
		case rowTagTimestamp:
			if off+8 > len(data) {
				return nil, fmt.Errorf("truncated timestamp at column %d", i)
			}
			micros := int64(binary.LittleEndian.Uint64(data[off : off+8]))
			row[i] = TimestampValue(time.UnixMicro(micros))
			off += 8
		case rowTagText:
			if off+4 > len(data) {
				return nil, fmt.Errorf("truncated text length at column %d", i)
			}
			tl := int(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
			if off+tl > len(data) {
				return nil, fmt.Errorf("truncated text data at column %d", i)
			}
			row[i] = TextValue(string(data[off : off+tl]))
			off += tl
		case rowTagBlob:
			if off+4 > len(data) {
				return nil, fmt.Errorf("truncated blob length at column %d", i)
			}
			bl := int(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
			if off+bl > len(data) {
				return nil, fmt.Errorf("truncated blob data at column %d", i)
			}
			dst := make([]byte, bl)
			copy(dst, data[off:off+bl])
			row[i] = BlobValue(dst)
			off += bl
		case rowTagDecimal:
			if off+4 > len(data) {
				return nil, fmt.Errorf("truncated decimal length at column %d", i)
			}
			dl := int(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
			if off+dl > len(data) {
				return nil, fmt.Errorf("truncated decimal data at column %d", i)
			}
			dv, err := decimal.NewFromString(string(data[off : off+dl]))
			if err != nil {
				return nil, fmt.Errorf("invalid decimal at column %d: %w", i, err)
			}
			row[i] = DecimalValue(dv)
			off += dl
		default:
			return nil, fmt.Errorf("unknown tag 0x%02x at column %d", tag, i)
		}
	}
	return row, nil
}

// PadRow extends row with trailing NULLs up to n columns. A row encoded
// before a later ADD COLUMN is short exactly one field per backfilled
// column; padding at decode time avoids rewriting every stored row.
func PadRow(row []Value, n int) []Value {
	if len(row) >= n {
		return row
	}
	out := make([]Value, n)
	copy(out, row)
	for i := len(row); i < n; i++ {
		out[i] = NullValue
	}
	return out
}
