package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// field returns b[start:end], zero-padded when b is too short so that a
// truncated frame never panics a decoder.
func field(b []byte, start, end int) []byte {
	out := make([]byte, end-start)
	if start < len(b) {
		copy(out, b[start:min(end, len(b))])
	}
	return out
}

// byteAt returns b[i] or 0 when i is out of range.
func byteAt(b []byte, i int) byte {
	if i < 0 || i >= len(b) {
		return 0
	}
	return b[i]
}

// Uint16LE reads a little-endian uint16 from the first two bytes of b.
func Uint16LE(b []byte) uint16 {
	return binary.LittleEndian.Uint16(field(b, 0, 2))
}

// Uint16BE reads a big-endian uint16 from the first two bytes of b.
func Uint16BE(b []byte) uint16 {
	return binary.BigEndian.Uint16(field(b, 0, 2))
}

// Uint32LE reads a little-endian uint32 from the first four bytes of b.
func Uint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(field(b, 0, 4))
}

// Int32LE reads a signed little-endian int32 from the first four bytes of b.
func Int32LE(b []byte) int32 {
	return int32(Uint32LE(b))
}

// PutUint16LE returns v as two little-endian bytes.
func PutUint16LE(v uint16) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, v)
	return out
}

// PutUint32LE returns v as four little-endian bytes.
func PutUint32LE(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}

// Hex returns the lowercase hex encoding of b without separators.
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexSpaced returns the lowercase hex encoding of b with a space between bytes,
// the form used in MQTT payloads.
func HexSpaced(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// HexByte formats a single byte as two lowercase hex digits.
func HexByte(v byte) string {
	return fmt.Sprintf("%02x", v)
}

// ParseHex decodes a hex string, ignoring whitespace and colons between bytes.
func ParseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return out, nil
}

// formatScaled renders value/divisor the way the hub tooling always has:
// shortest decimal form, with ".0" appended to whole numbers.
func formatScaled(value int64, divisor float64) string {
	s := strconv.FormatFloat(float64(value)/divisor, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// formatGrams renders a weight stored in hundredths of a gram.
func formatGrams(hundredths int64) string {
	return formatScaled(hundredths, 100)
}

// formatWeightSetting renders a target weight for an UpdateState message.
// Whole grams are printed without a fraction so they match what the caller
// originally asked for.
func formatWeightSetting(hundredths int64) string {
	if hundredths%100 == 0 {
		return strconv.FormatInt(hundredths/100, 10)
	}
	return formatGrams(hundredths)
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// clockText renders a slice of byte values as zero padded HH:MM[:SS].
func clockText(parts []byte) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprintf("%02d", p)
	}
	return strings.Join(out, ":")
}
