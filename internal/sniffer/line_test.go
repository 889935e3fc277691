package sniffer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

func TestParseLine(t *testing.T) {
	now := time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		line    string
		src     string
		dst     string
		data    string
		at      time.Time
		wantErr error
	}{
		{
			name: "console",
			line: "Src=0100000000000000 Dst=FFEEDDCCBBAA0000 Payload=2A00FF",
			src:  "0000000000000001",
			dst:  "0000AABBCCDDEEFF",
			data: "2a 00 ff",
			at:   now,
		},
		{
			name: "console with lengths",
			line: "Src=0200000000000000 Dst=0000000000000000 Packet Len=20 Header Len=9 Payload=0B0C\r\n",
			src:  "0000000000000002",
			dst:  "0000000000000000",
			data: "0b 0c",
			at:   now,
		},
		{
			name: "tsv",
			line: "1609504496.500000000\t01:00:00:00:00:00:00:00\tff:ee:dd:cc:bb:aa:00:00\t2a00ff",
			src:  "0000000000000001",
			dst:  "0000AABBCCDDEEFF",
			data: "2a 00 ff",
			at:   time.Unix(1609504496, 500000000).UTC(),
		},
		{name: "banner", line: "PetHubLocal connected to MQTT", wantErr: ErrNoFrame},
		{name: "beacon", line: "Src=0100000000000000 Dst=FFFF Beacon received", wantErr: ErrNoFrame},
		{name: "blank", line: "  \r\n", wantErr: ErrNoFrame},
		{name: "tsv ack", line: "1609504496.5\t01:00\t02:00\t", wantErr: ErrNoFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseLine(tt.line, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseLine() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if f.Source != tt.src || f.Destination != tt.dst {
				t.Errorf("ParseLine() addresses = %s -> %s, want %s -> %s", f.Source, f.Destination, tt.src, tt.dst)
			}
			if protocol.HexSpaced(f.Data) != tt.data {
				t.Errorf("ParseLine() data = %s, want %s", protocol.HexSpaced(f.Data), tt.data)
			}
			if !f.Received.Equal(tt.at) {
				t.Errorf("ParseLine() received = %v, want %v", f.Received, tt.at)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []string{
		"Src=01 Payload=zz",
		"notatime\t01\t02\t2a00",
		"1.0\t01\t2a00ff",
	}
	for _, line := range tests {
		if _, err := ParseLine(line, time.Now()); err == nil || errors.Is(err, ErrNoFrame) {
			t.Errorf("ParseLine(%q) error = %v, want a parse error", line, err)
		}
	}
}

// trickleReader returns its data a few bytes at a time with empty reads in
// between, the way a serial port with a read timeout does.
type trickleReader struct {
	data  []byte
	calls int
}

func (r *trickleReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls%2 == 0 {
		return 0, nil
	}
	if len(r.data) == 0 {
		return 0, nil
	}
	n := copy(p[:min(len(p), 7)], r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestRunTSVStream(t *testing.T) {
	input := "1609504496.0\t01:00\t02:00\t2a00ff\n" +
		"garbage\n" +
		"1609504497.0\t01:00\t02:00\t2d01"

	var got []protocol.RawFrame
	err := Run(context.Background(), strings.NewReader(input), func(_ context.Context, f protocol.RawFrame) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Run() delivered %d frames, want 2", len(got))
	}
	if got[1].Source != "0001" || protocol.HexSpaced(got[1].Data) != "2d 01" {
		t.Errorf("last frame = %+v", got[1])
	}
}

func TestRunSerialTrickle(t *testing.T) {
	r := &trickleReader{data: []byte("boot\r\nSrc=0100 Dst=0200 Payload=2A00FF\r\n")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []protocol.RawFrame
	err := Run(ctx, r, func(_ context.Context, f protocol.RawFrame) error {
		got = append(got, f)
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(got) != 1 || got[0].Source != "0001" {
		t.Errorf("Run() frames = %+v", got)
	}
}

func TestRunHandlerError(t *testing.T) {
	stop := errors.New("stop")
	err := Run(context.Background(), strings.NewReader("Src=01 Payload=00\nSrc=01 Payload=01\n"),
		func(context.Context, protocol.RawFrame) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("Run() error = %v, want handler error", err)
	}
}
