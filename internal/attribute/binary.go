package attribute

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"time"
)

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

// BinaryValue converts a cell of one of the fixed-width binary field types
// written by Visual FoxPro into a Value. It reports false for text fields,
// which go through NewValue instead.
//
//	I      int32, little-endian
//	B, O   float64, little-endian
//	Y      currency, int64 scaled by 10^4
//	T      Julian day and milliseconds since midnight, two int32
//	G P W M with width 4: int32 memo block number, 0 for none
//	0 Q    null flags and varbinary, rendered as hex
func BinaryValue(fieldType byte, b []byte) (Value, bool) {
	switch {
	case fieldType == 'I' && len(b) == 4:
		n := int32(binary.LittleEndian.Uint32(b))
		return Value{Kind: KindNumeric, Raw: strconv.FormatInt(int64(n), 10)}, true

	case (fieldType == 'B' || fieldType == 'O') && len(b) == 8:
		f := math.Float64frombits(binary.LittleEndian.Uint64(b))
		return Value{Kind: KindNumeric, Raw: strconv.FormatFloat(f, 'g', -1, 64)}, true

	case fieldType == 'Y' && len(b) == 8:
		n := int64(binary.LittleEndian.Uint64(b))
		return Value{Kind: KindNumeric, Raw: strconv.FormatFloat(float64(n)/1e4, 'f', -1, 64)}, true

	case fieldType == 'T' && len(b) == 8:
		day := int32(binary.LittleEndian.Uint32(b[0:4]))
		ms := int32(binary.LittleEndian.Uint32(b[4:8]))
		if day == 0 && ms == 0 {
			return Null(KindDateTime), true
		}
		t := time.Unix(int64(day-julianUnixEpoch)*86400, 0).UTC().Add(time.Duration(ms) * time.Millisecond)
		return Value{Kind: KindDateTime, Raw: t.Format("2006-01-02T15:04:05")}, true

	case (fieldType == 'G' || fieldType == 'P' || fieldType == 'W' || fieldType == 'M') && len(b) == 4:
		kind := KindFromFieldType(fieldType)
		block := binary.LittleEndian.Uint32(b)
		if block == 0 {
			return Null(kind), true
		}
		return Value{Kind: kind, Raw: strconv.FormatUint(uint64(block), 10)}, true

	case fieldType == '0' || fieldType == 'Q':
		return Value{Kind: KindOther, Raw: hex.EncodeToString(b)}, true
	}

	return Value{}, false
}
