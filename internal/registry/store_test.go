package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

const (
	hubMAC    = "0000AABBCCDDEEFF"
	feederMAC = "0000000000000001"
	flapMAC   = "0000000000000002"
	doorMAC   = "0000000000000003"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "pethublocal.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func importedStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)
	f, err := os.Open(filepath.Join("testdata", "start.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := s.Import(context.Background(), f); err != nil {
		t.Fatalf("import: %v", err)
	}
	return s
}

func TestOpenIsRepeatable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		_ = db.Close()
	}
}

func TestStoreDevice(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()

	tests := []struct {
		address string
		name    string
		typ     protocol.DeviceType
	}{
		{feederMAC, "Kitchen Feeder", protocol.DeviceTypeFeeder},
		{"0000aabbccddeeff", "Home Hub", protocol.DeviceTypeHub},
		{protocol.HubAddress, "Home Hub", protocol.DeviceTypeHub},
		{flapMAC, "Cat Flap", protocol.DeviceTypeCatFlap},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			info, err := s.Device(ctx, tt.address)
			if err != nil {
				t.Fatalf("Device() error = %v", err)
			}
			if info.Name != tt.name || info.Type != tt.typ {
				t.Errorf("Device() = %+v, want %s/%v", info, tt.name, tt.typ)
			}
		})
	}

	if _, err := s.Device(ctx, "FFFF"); !errors.Is(err, protocol.ErrRegistryMiss) {
		t.Errorf("Device(FFFF) error = %v, want ErrRegistryMiss", err)
	}
}

func TestStoreLookups(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()

	if name, err := s.PetByChip(ctx, "900.000123456789"); err != nil || name != "Tigger" {
		t.Errorf("PetByChip() = %q, %v", name, err)
	}
	if _, err := s.PetByChip(ctx, "nope"); !errors.Is(err, protocol.ErrRegistryMiss) {
		t.Errorf("PetByChip(nope) error = %v", err)
	}
	if tag, err := s.TagByIndex(ctx, flapMAC, 1); err != nil || tag != "900.000123456789" {
		t.Errorf("TagByIndex() = %q, %v", tag, err)
	}
	if _, err := s.TagByIndex(ctx, flapMAC, 2); !errors.Is(err, protocol.ErrRegistryMiss) {
		t.Errorf("TagByIndex(unknown tag) error = %v", err)
	}

	cfg, err := s.FeederConfig(ctx, feederMAC)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BowlCount != 2 || cfg.CloseDelay != 4000 || len(cfg.Targets) != 2 || cfg.Targets[1] != 30 {
		t.Errorf("FeederConfig() = %+v", cfg)
	}

	mode, err := s.DoorLockMode(ctx, doorMAC)
	if err != nil || mode != protocol.LockKeepIn {
		t.Errorf("DoorLockMode() = %v, %v, want KeepIn", mode, err)
	}
}

func TestStoreWriteBacks(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()

	if err := s.SetLockMode(ctx, doorMAC, protocol.LockLocked); err != nil {
		t.Fatal(err)
	}
	if mode, _ := s.DoorLockMode(ctx, doorMAC); mode != protocol.LockLocked {
		t.Errorf("DoorLockMode() = %v after SetLockMode, want Locked", mode)
	}

	windows := []protocol.CurfewWindow{{Start: "21:00", End: "07:15"}, {Start: "12:00", End: "13:00"}}
	if err := s.SetCurfew(ctx, flapMAC, true, windows); err != nil {
		t.Fatal(err)
	}
	enabled, got, err := s.Curfew(ctx, flapMAC)
	if err != nil || !enabled || len(got) != 2 || got[1] != windows[1] {
		t.Errorf("Curfew() = %v, %v, %v", enabled, got, err)
	}

	if err := s.SetBowlWeights(ctx, feederMAC, []float64{12.5, 3}); err != nil {
		t.Fatal(err)
	}
	if w, _ := s.BowlWeights(ctx, feederMAC); len(w) != 2 || w[0] != 12.5 || w[1] != 3 {
		t.Errorf("BowlWeights() = %v", w)
	}

	if err := s.SetBattery(ctx, feederMAC, 5.9925); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLedMode(ctx, protocol.HubAddress, 0x81); err != nil {
		t.Fatal(err)
	}
	var led int
	if err := s.db.QueryRowContext(ctx, `SELECT led_mode FROM hubs WHERE mac_address = ?`, hubMAC).Scan(&led); err != nil || led != 0x81 {
		t.Errorf("hub led_mode = %d, %v, want 0x81", led, err)
	}

	devices, err := s.Devices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range devices {
		if d.Address == feederMAC && d.Battery != "5.9925" {
			t.Errorf("battery = %q, want 5.9925", d.Battery)
		}
	}
}

func TestStorePetLocationKeepsNewest(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()
	chip := "01020304"
	base := time.Date(2021, 1, 2, 9, 0, 0, 0, time.UTC)

	if err := s.SetPetLocation(ctx, chip, doorMAC, protocol.PetOutside, base); err != nil {
		t.Fatal(err)
	}
	// an older replay must not overwrite the newer sighting
	if err := s.SetPetLocation(ctx, chip, doorMAC, protocol.PetInside, base.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	pets, err := s.Pets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pets {
		if p.Tag != chip {
			continue
		}
		if p.Location != protocol.PetOutside || !p.SeenAt.Equal(base) {
			t.Errorf("Rex = %v at %v, want Outside at %v", p.Location, p.SeenAt, base)
		}
	}
}

func TestStoreRecordFeedIdempotent(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()
	ev := protocol.FeedEvent{
		Device:    feederMAC,
		Chip:      "900.000123456789",
		Animal:    "Tigger",
		At:        time.Date(2021, 1, 3, 7, 0, 0, 0, time.UTC),
		Seconds:   42,
		LeftDelta: -4.25,
	}
	for i := 0; i < 2; i++ {
		if err := s.RecordFeed(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	feeds, err := s.Feeds(ctx, ev.Chip, 0)
	if err != nil {
		t.Fatal(err)
	}
	// one imported from start.json plus one recorded
	if len(feeds) != 2 {
		t.Fatalf("Feeds() returned %d rows, want 2", len(feeds))
	}
	if feeds[0].Seconds != 42 || !feeds[0].At.Equal(ev.At) {
		t.Errorf("newest feed = %+v", feeds[0])
	}
}

func TestStoreCounters(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()

	if err := s.exec(ctx, "seed counter",
		`INSERT INTO devicecounter(mac_address, send, receive) VALUES (?, 65535, 7)`, feederMAC); err != nil {
		t.Fatal(err)
	}
	if v, err := s.NextSend(ctx, feederMAC); err != nil || v != 0 {
		t.Errorf("NextSend() = %d, %v, want 0 after wrap", v, err)
	}
	if err := s.SetReceiveCounter(ctx, feederMAC, 8); err != nil {
		t.Fatal(err)
	}
	if st, err := s.Current(ctx, feederMAC); err != nil || st != (protocol.CounterState{Send: 0, Receive: 8}) {
		t.Errorf("Current() = %+v, %v, want send 0 receive 8", st, err)
	}
	if err := s.SetReceiveCounter(ctx, flapMAC, 3); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Current(ctx, flapMAC); st != (protocol.CounterState{Receive: 3}) {
		t.Errorf("Current(flap) = %+v, want receive 3 on a fresh row", st)
	}
	if st, _ := s.Current(ctx, "never-seen"); st != (protocol.CounterState{}) {
		t.Errorf("Current(never-seen) = %+v, want zero", st)
	}
}

func TestStoreCountersConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const workers, each = 4, 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				if _, err := s.NextSend(ctx, flapMAC); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("NextSend() error = %v", err)
	}

	st, err := s.Current(ctx, flapMAC)
	if err != nil || st.Send != workers*each {
		t.Errorf("Current() = %+v, %v, want send %d", st, err, workers*each)
	}
}

func TestStoreWithCodec(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2021, 1, 1, 12, 34, 56, 0, time.UTC) }
	codec := protocol.NewCodec(protocol.CodecConfig{Clock: clock}, s, s)

	cmd, err := codec.Generate(ctx, doorMAC, "Unlocked", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if cmd.Topic != protocol.DefaultTopicPrefix+"/"+doorMAC {
		t.Errorf("Topic = %v", cmd.Topic)
	}

	_, err = codec.DecodeMQTT(ctx, cmd.Topic, "5ff08e80 0 132 1 36 1 02")
	if err != nil {
		t.Fatal(err)
	}
	if mode, _ := s.DoorLockMode(ctx, doorMAC); mode != protocol.LockKeepOut {
		t.Errorf("DoorLockMode() = %v after status report, want KeepOut", mode)
	}
}

func TestStoreRecordsReceiveCounter(t *testing.T) {
	s := importedStore(t)
	ctx := context.Background()
	codec := protocol.NewCodec(protocol.CodecConfig{}, s, s)

	if _, err := s.NextSend(ctx, feederMAC); err != nil {
		t.Fatal(err)
	}
	// feeder battery report, header counter 0x0123
	_, err := codec.DecodeMQTT(ctx, protocol.DefaultTopicPrefix+"/"+feederMAC,
		"5ff08e80 0 127 0c 00 23 01 b8 c8 42 54 ae 17 00 00")
	if err != nil {
		t.Fatal(err)
	}
	st, err := s.Current(ctx, feederMAC)
	if err != nil {
		t.Fatal(err)
	}
	if st.Receive != 0x0123 {
		t.Errorf("receive counter = %d, want %d", st.Receive, 0x0123)
	}
	if st.Send != 1 {
		t.Errorf("send counter = %d, want 1 left alone", st.Send)
	}
}
