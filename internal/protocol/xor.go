package protocol

import (
	"fmt"
	"os"
	"strings"
)

// MinKeyLength is the shortest XOR key accepted, in bytes. Real hub keys are
// considerably longer; anything at or below this is a truncated key file.
const MinKeyLength = 10

// Key is the fixed XOR key radio frames are obfuscated with.
type Key []byte

// ParseKey decodes a hex key. The key must have an even number of hex digits
// and be longer than MinKeyLength bytes.
func ParseKey(text string) (Key, error) {
	text = strings.TrimSpace(text)
	if len(text)%2 != 0 {
		return nil, newError(ErrTypeInvalidKey, "key has odd length %d", len(text))
	}
	if len(text) <= MinKeyLength*2 {
		return nil, newError(ErrTypeInvalidKey, "key too short: %d hex chars (minimum %d)", len(text), MinKeyLength*2+2)
	}
	raw, err := ParseHex(text)
	if err != nil {
		return nil, wrapError(ErrTypeInvalidKey, err, "key is not hex")
	}
	return Key(raw), nil
}

// LoadKey reads and parses a hex key file. Callers treat a failure here as
// fatal at startup.
func LoadKey(path string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read xor key: %w", err)
	}
	return ParseKey(string(data))
}

// Deobfuscate removes the XOR layer from a radio frame. The key is repeated
// or truncated to the frame length.
func Deobfuscate(raw []byte, key Key) []byte {
	out := make([]byte, len(raw))
	if len(key) == 0 {
		copy(out, raw)
		return out
	}
	for i := 0; i < len(raw); i++ {
		out[i] = raw[i] ^ key[i%len(key)]
	}
	return out
}

// Obfuscate applies the XOR layer to a radio frame. XOR is self-inverse so
// this is the same transformation as Deobfuscate.
func Obfuscate(raw []byte, key Key) []byte {
	return Deobfuscate(raw, key)
}
