package attribute

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(v int32) []byte { return binary.LittleEndian.AppendUint32(nil, uint32(v)) }

func le64(v int64) []byte { return binary.LittleEndian.AppendUint64(nil, uint64(v)) }

func TestBinaryValue(t *testing.T) {
	datetime := append(le32(julianUnixEpoch+1), le32(3723000)...)

	tests := []struct {
		name      string
		fieldType byte
		cell      []byte
		want      any
	}{
		{"integer", 'I', le32(-7), -7.0},
		{"integer of space bytes", 'I', le32(0x20202020), float64(0x20202020)},
		{"integer with zero bytes", 'I', le32(32), 32.0},
		{"double", 'B', le64(int64(math.Float64bits(2.5))), 2.5},
		{"double O", 'O', le64(int64(math.Float64bits(-0.125))), -0.125},
		{"currency", 'Y', le64(123456), 12.3456},
		{"datetime", 'T', datetime, "1970-01-02T01:02:03"},
		{"datetime empty", 'T', make([]byte, 8), ""},
		{"memo block", 'M', le32(17), "17"},
		{"memo without block", 'M', le32(0), ""},
		{"null flags", '0', []byte{0x0a}, "0a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := BinaryValue(tt.fieldType, tt.cell)
			require.True(t, ok)

			got, warn := Decode("f", v)
			assert.Nil(t, warn)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBinaryValueText(t *testing.T) {
	for _, tc := range []struct {
		fieldType byte
		cell      string
	}{
		{'N', "  12"},
		{'C', "text"},
		// ten-digit memo pointers of dBASE III are text
		{'M', "0000000003"},
		{'B', "0000000003"},
	} {
		_, ok := BinaryValue(tc.fieldType, []byte(tc.cell))
		assert.False(t, ok, string(tc.fieldType))
	}
}

func TestBinaryValueKinds(t *testing.T) {
	v, _ := BinaryValue('T', make([]byte, 8))
	assert.Equal(t, "DateTime(null)", v.String())

	v, _ = BinaryValue('I', le32(5))
	assert.Equal(t, "Numeric(5)", v.String())
}
