package sniffer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

// ErrNoFrame marks a line that carries no radio payload (boot banners,
// beacons, blank lines). Callers skip it.
var ErrNoFrame = errors.New("line carries no frame")

// ParseLine parses one console or TSV line. received stamps console lines,
// which carry no time of their own.
func ParseLine(line string, received time.Time) (protocol.RawFrame, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return protocol.RawFrame{}, ErrNoFrame
	}
	if strings.Contains(line, "\t") {
		return parseTSV(line)
	}
	return parseConsole(line, received)
}

func parseConsole(line string, received time.Time) (protocol.RawFrame, error) {
	fields := map[string]string{}
	for _, tok := range strings.Fields(line) {
		if k, v, ok := strings.Cut(tok, "="); ok {
			fields[k] = v
		}
	}
	src, hasSrc := fields["Src"]
	payload, hasPayload := fields["Payload"]
	if !hasSrc || !hasPayload {
		return protocol.RawFrame{}, ErrNoFrame
	}

	data, err := protocol.ParseHex(payload)
	if err != nil {
		return protocol.RawFrame{}, fmt.Errorf("console payload: %w", err)
	}
	return protocol.RawFrame{
		Source:      reverseAddress(src),
		Destination: reverseAddress(fields["Dst"]),
		Received:    received,
		Data:        data,
	}, nil
}

func parseTSV(line string) (protocol.RawFrame, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 4 {
		return protocol.RawFrame{}, fmt.Errorf("tsv line has %d columns, want 4", len(cols))
	}
	// tshark leaves the payload column empty for acks and beacons
	if len(strings.TrimSpace(cols[3])) <= 2 {
		return protocol.RawFrame{}, ErrNoFrame
	}

	data, err := protocol.ParseHex(strings.TrimSpace(cols[3]))
	if err != nil {
		return protocol.RawFrame{}, fmt.Errorf("tsv payload: %w", err)
	}
	at, err := parseEpoch(cols[0])
	if err != nil {
		return protocol.RawFrame{}, err
	}
	return protocol.RawFrame{
		Source:      reverseAddress(cols[1]),
		Destination: reverseAddress(cols[2]),
		Received:    at,
		Data:        data,
	}, nil
}

func parseEpoch(text string) (time.Time, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("tsv timestamp %q: %w", text, err)
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

// reverseAddress accepts "01:00:..." or "0100..." and returns the reversed
// upper case MAC.
func reverseAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.Contains(addr, ":") {
		return protocol.ReverseMAC(addr)
	}
	if len(addr)%2 != 0 {
		return strings.ToUpper(addr)
	}
	pairs := make([]string, 0, len(addr)/2)
	for i := 0; i < len(addr); i += 2 {
		pairs = append(pairs, addr[i:i+2])
	}
	return protocol.ReverseMAC(strings.Join(pairs, ":"))
}
