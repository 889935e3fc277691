package protocol

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// NullChip is the text of an all-zero chip field.
const NullChip = "Null"

// Chip field layout
const (
	chipValueSize = 6    // 48-bit chip value
	chipFieldSize = 7    // value plus type marker on feeders and cat flaps
	chipTypeFDXB  = 0x01 // FDX-B type marker
	chipTypeHDX   = 0x03 // HDX type marker

	fdxbCountryBits  = 10
	fdxbNationalBits = 38
	fdxbMaxCountry   = 1<<fdxbCountryBits - 1
	fdxbMaxNational  = 1<<fdxbNationalBits - 1

	hdxTextLength = 10 // HDX ids are 5 bytes printed as 10 hex digits
)

// ChipEncoding identifies the on-wire layout a chip id was read from
type ChipEncoding int

const (
	ChipEncodingNone ChipEncoding = iota // all-zero field
	ChipEncodingFDXB
	ChipEncodingHDX
	ChipEncodingDoor
)

func (e ChipEncoding) String() string {
	switch e {
	case ChipEncodingNone:
		return "None"
	case ChipEncodingFDXB:
		return "FDX-B"
	case ChipEncodingHDX:
		return "HDX"
	case ChipEncodingDoor:
		return "Door"
	default:
		return fmt.Sprintf("ChipEncoding(%d)", int(e))
	}
}

// ChipID is an animal implant chip number in its textual form
// ("900.000123456788" for FDX-B, "0123456789" for HDX).
type ChipID struct {
	Text     string
	Encoding ChipEncoding
}

// IsNull reports whether the chip field was all zero.
func (c ChipID) IsNull() bool { return c.Text == NullChip }

func (c ChipID) String() string { return c.Text }

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func chipError(format string, args ...any) error {
	return newError(ErrTypeChipFormat, format, args...)
}

// parseFDXB splits "country.national" into its 48-bit packed value.
func parseFDXB(text string) (uint64, error) {
	country, national, ok := strings.Cut(text, ".")
	if !ok {
		return 0, chipError("FDX-B chip %q has no country separator", text)
	}
	c, err := strconv.ParseUint(country, 10, 16)
	if err != nil || c > fdxbMaxCountry {
		return 0, chipError("FDX-B chip %q has an invalid country code", text)
	}
	n, err := strconv.ParseUint(national, 10, 64)
	if err != nil || n > fdxbMaxNational {
		return 0, chipError("FDX-B chip %q has an invalid national code", text)
	}
	return c<<fdxbNationalBits | n, nil
}

func formatFDXB(v uint64) string {
	return fmt.Sprintf("%d.%012d", v>>fdxbNationalBits, v&fdxbMaxNational)
}

func put48LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf[:chipValueSize]
}

func get48LE(b []byte) uint64 {
	buf := make([]byte, 8)
	copy(buf, b[:chipValueSize])
	return binary.LittleEndian.Uint64(buf)
}

// reverse48 mirrors the low 48 bits of v.
func reverse48(v uint64) uint64 {
	return bits.Reverse64(v) >> 16
}

// EncodeFDXB packs an FDX-B chip id into the 7-byte feeder / cat flap layout:
// the 48-bit value little-endian followed by the 0x01 type marker.
func EncodeFDXB(text string) ([]byte, error) {
	v, err := parseFDXB(text)
	if err != nil {
		return nil, err
	}
	return append(put48LE(v), chipTypeFDXB), nil
}

// DecodeFDXB reads an FDX-B chip from a 6 or 7 byte field.
func DecodeFDXB(b []byte) (ChipID, error) {
	if len(b) != chipValueSize && len(b) != chipFieldSize {
		return ChipID{}, chipError("FDX-B chip field must be 6 or 7 bytes, got %d", len(b))
	}
	if allZero(b) {
		return ChipID{Text: NullChip}, nil
	}
	return ChipID{Text: formatFDXB(get48LE(b)), Encoding: ChipEncodingFDXB}, nil
}

// EncodeHDX packs a 10 hex digit HDX chip id into its 7-byte layout: the five
// value bytes, a zero pad byte and the 0x03 type marker.
func EncodeHDX(text string) ([]byte, error) {
	if len(text) != hdxTextLength {
		return nil, chipError("HDX chip %q must be %d hex digits", text, hdxTextLength)
	}
	raw, err := ParseHex(text)
	if err != nil {
		return nil, wrapError(ErrTypeChipFormat, err, "HDX chip %q is not hex", text)
	}
	return append(raw, 0x00, chipTypeHDX), nil
}

// DecodeHDX reads an HDX chip from a 5, 6 or 7 byte field.
func DecodeHDX(b []byte) (ChipID, error) {
	if len(b) < 5 || len(b) > chipFieldSize {
		return ChipID{}, chipError("HDX chip field must be 5 to 7 bytes, got %d", len(b))
	}
	if allZero(b) {
		return ChipID{Text: NullChip}, nil
	}
	return ChipID{Text: Hex(b[:5]), Encoding: ChipEncodingHDX}, nil
}

// EncodeDoorChip packs an FDX-B chip id the way pet door registers store it:
// the 48-bit value bit-reversed and written big-endian.
func EncodeDoorChip(text string) ([]byte, error) {
	v, err := parseFDXB(text)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, reverse48(v))
	return buf[2:], nil
}

// DecodeDoorChip reads a chip from a 6-byte pet door register field.
func DecodeDoorChip(b []byte) (ChipID, error) {
	if len(b) != chipValueSize {
		return ChipID{}, chipError("door chip field must be 6 bytes, got %d", len(b))
	}
	if allZero(b) {
		return ChipID{Text: NullChip}, nil
	}
	buf := make([]byte, 8)
	copy(buf[2:], b)
	v := reverse48(binary.BigEndian.Uint64(buf))
	return ChipID{Text: formatFDXB(v), Encoding: ChipEncodingDoor}, nil
}

// DecodeChip reads a feeder / cat flap chip field, picking HDX or FDX-B from
// the type marker.
func DecodeChip(b []byte) (ChipID, error) {
	switch {
	case len(b) == hdxTextLength/2:
		return DecodeHDX(b)
	case len(b) != chipValueSize && len(b) != chipFieldSize:
		return ChipID{}, chipError("chip field must be 6 or 7 bytes, got %d", len(b))
	case allZero(b):
		return ChipID{Text: NullChip}, nil
	case len(b) == chipFieldSize && b[6] == chipTypeHDX, b[5] == 0x00:
		return DecodeHDX(b)
	default:
		return DecodeFDXB(b)
	}
}

// EncodeChip packs a chip id for a feeder or cat flap, choosing the layout
// from its text: dotted ids are FDX-B, 10 hex digits are HDX.
func EncodeChip(text string) ([]byte, error) {
	if strings.Contains(text, ".") {
		return EncodeFDXB(text)
	}
	if len(text) == hdxTextLength {
		return EncodeHDX(text)
	}
	return nil, chipError("unrecognised chip id %q", text)
}
