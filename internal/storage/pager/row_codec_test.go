package pager

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRowCodec_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)

	tests := []struct {
		name string
		row  []Value
	}{
		{"null-only", []Value{NullValue, NullValue}},
		{"int-string-float", []Value{IntegerValue(42), TextValue("hello"), RealValue(3.14)}},
		{"bool-values", []Value{BooleanValue(true), BooleanValue(false)}},
		{"empty-string", []Value{TextValue("")}},
		{"blob", []Value{BlobValue([]byte{0xDE, 0xAD})}},
		{"large-int", []Value{IntegerValue(1 << 40)}},
		{"negative-float", []Value{RealValue(-1.5)}},
		{"timestamp", []Value{TimestampValue(ts)}},
		{"decimal", []Value{DecimalValue(decimal.NewFromFloat(19.99))}},
		{"mixed", []Value{IntegerValue(1), TextValue("two"), RealValue(3.0), NullValue, BooleanValue(true), BlobValue([]byte("bin"))}},
		{"empty-row", []Value{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := MarshalRow(tt.row, nil)
			decoded, err := UnmarshalRow(encoded)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(decoded) != len(tt.row) {
				t.Fatalf("length mismatch: got %d, want %d", len(decoded), len(tt.row))
			}
			for i := range tt.row {
				want := tt.row[i]
				got := decoded[i]
				if got.Kind != want.Kind {
					t.Fatalf("[%d] kind mismatch: got %v, want %v", i, got.Kind, want.Kind)
				}
				switch want.Kind {
				case KindNull:
				case KindInteger:
					if got.Integer != want.Integer {
						t.Errorf("[%d] got %d, want %d", i, got.Integer, want.Integer)
					}
				case KindReal:
					if got.Real != want.Real {
						t.Errorf("[%d] got %v, want %v", i, got.Real, want.Real)
					}
				case KindBoolean:
					if got.Boolean != want.Boolean {
						t.Errorf("[%d] got %v, want %v", i, got.Boolean, want.Boolean)
					}
				case KindTimestamp:
					if !got.Timestamp.Equal(want.Timestamp) {
						t.Errorf("[%d] got %v, want %v", i, got.Timestamp, want.Timestamp)
					}
				case KindText:
					if got.Text != want.Text {
						t.Errorf("[%d] got %q, want %q", i, got.Text, want.Text)
					}
				case KindBlob:
					if string(got.Blob) != string(want.Blob) {
						t.Errorf("[%d] got %v, want %v", i, got.Blob, want.Blob)
					}
				case KindDecimal:
					if !got.Decimal.Equal(want.Decimal) {
						t.Errorf("[%d] got %v, want %v", i, got.Decimal, want.Decimal)
					}
				}
			}
		})
	}
}

func TestRowCodec_BufferReuse(t *testing.T) {
	row := []Value{IntegerValue(1), TextValue("test"), RealValue(2.5)}
	buf := MarshalRow(row, nil)
	buf2 := MarshalRow(row, buf)
	decoded, err := UnmarshalRow(buf2)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(decoded))
	}
}

func TestRowCodec_PadRow(t *testing.T) {
	row := []Value{IntegerValue(1)}
	padded := PadRow(row, 3)
	if len(padded) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(padded))
	}
	if !padded[1].IsNull() || !padded[2].IsNull() {
		t.Fatalf("expected backfilled columns to be NULL, got %v", padded)
	}
}

func BenchmarkMarshalRow(b *testing.B) {
	row := []Value{IntegerValue(42), TextValue("user_12345"), RealValue(98.7)}
	var buf []byte
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = MarshalRow(row, buf)
	}
}

func BenchmarkUnmarshalRow(b *testing.B) {
	row := []Value{IntegerValue(42), TextValue("user_12345"), RealValue(98.7)}
	data := MarshalRow(row, nil)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = UnmarshalRow(data)
	}
}
