package registry

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"go.uber.org/zap"
)

// ImportSummary counts what Import wrote.
type ImportSummary struct {
	Devices int
	Pets    int
	Tags    int
	Feeds   int
}

func (s ImportSummary) String() string {
	return fmt.Sprintf("ImportSummary{devices=%d, pets=%d, tags=%d, feeds=%d}", s.Devices, s.Pets, s.Tags, s.Feeds)
}

// Cloud "where" values for an animal's activity.
const (
	cloudInside  = 1
	cloudOutside = 2
)

// Cloud bowl type for a two bowl feeder. One bowl is type 1.
const cloudTwoBowls = 4

type startData struct {
	Tags    []startTag    `json:"tags"`
	Devices []startDevice `json:"devices"`
	Pets    []startPet    `json:"pets"`
}

type startTag struct {
	ID  int64  `json:"id"`
	Tag string `json:"tag"`
}

type startEvent struct {
	At       string    `json:"at"`
	Since    string    `json:"since"`
	DeviceID int64     `json:"device_id"`
	Where    int       `json:"where"`
	Change   []float64 `json:"change"`
}

type startPet struct {
	Name      string `json:"name"`
	TagID     int64  `json:"tag_id"`
	SpeciesID int    `json:"species_id"`
	Status    struct {
		Activity *startEvent `json:"activity"`
		Feeding  *startEvent `json:"feeding"`
	} `json:"status"`
}

type startCurfew struct {
	Enabled    bool   `json:"enabled"`
	LockTime   string `json:"lock_time"`
	UnlockTime string `json:"unlock_time"`
}

type startDevice struct {
	ID           int64  `json:"id"`
	ProductID    int    `json:"product_id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	MacAddress   string `json:"mac_address"`
	Status       struct {
		Battery json.Number `json:"battery"`
		Online  bool        `json:"online"`
		Signal  *struct {
			DeviceRSSI json.Number `json:"device_rssi"`
			HubRSSI    json.Number `json:"hub_rssi"`
		} `json:"signal"`
		Version json.RawMessage `json:"version"`
		Locking *struct {
			Mode int `json:"mode"`
		} `json:"locking"`
	} `json:"status"`
	Control struct {
		LedMode     *int            `json:"led_mode"`
		PairingMode *int            `json:"pairing_mode"`
		Locking     *int            `json:"locking"`
		Curfew      json.RawMessage `json:"curfew"`
		Tare        *int            `json:"tare"`
		Bowls       *struct {
			Type     int `json:"type"`
			Settings []struct {
				Target int `json:"target"`
			} `json:"settings"`
		} `json:"bowls"`
		Lid *struct {
			CloseDelay int `json:"close_delay"`
		} `json:"lid"`
	} `json:"control"`
	Tags []struct {
		ID      int64 `json:"id"`
		Index   int   `json:"index"`
		Profile int   `json:"profile"`
	} `json:"tags"`
}

// parseStart accepts either the bare start payload or one still wrapped in
// its top level "data" element.
func parseStart(raw []byte) (*startData, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parse start.json: %w", err)
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		raw = envelope.Data
	}
	var data startData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse start.json: %w", err)
	}
	if data.Devices == nil || data.Pets == nil || data.Tags == nil {
		return nil, fmt.Errorf("start.json has no tags, devices and pets")
	}
	return &data, nil
}

// curfews reads the door form (one object) and the cat flap form (a list).
func (d *startDevice) curfews() (bool, []protocol.CurfewWindow) {
	raw := bytes.TrimSpace(d.Control.Curfew)
	if len(raw) == 0 {
		return false, nil
	}
	var list []startCurfew
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return false, nil
		}
	} else {
		var one startCurfew
		if err := json.Unmarshal(raw, &one); err != nil {
			return false, nil
		}
		list = []startCurfew{one}
	}

	var windows []protocol.CurfewWindow
	for _, c := range list {
		if c.Enabled {
			windows = append(windows, protocol.CurfewWindow{Start: c.LockTime, End: c.UnlockTime})
		}
	}
	return len(windows) > 0, windows
}

func (d *startDevice) lockingMode() int {
	if d.Control.Locking != nil {
		return *d.Control.Locking
	}
	if d.Status.Locking != nil {
		return d.Status.Locking.Mode
	}
	return 0
}

func (d *startDevice) displayName() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.SerialNumber != "":
		return d.SerialNumber
	default:
		return normalizeMAC(d.MacAddress)
	}
}

func parseCloudTime(text string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Import loads a cloud start.json export into the registry. Rows that
// already exist are replaced, so importing the same file twice is harmless.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var sum ImportSummary
	raw, err := io.ReadAll(r)
	if err != nil {
		return sum, fmt.Errorf("read start.json: %w", err)
	}
	data, err := parseStart(raw)
	if err != nil {
		return sum, err
	}

	tags := make(map[int64]string, len(data.Tags))
	for _, t := range data.Tags {
		tags[t.ID] = t.Tag
	}
	macs := make(map[int64]string, len(data.Devices))
	for _, d := range data.Devices {
		macs[d.ID] = normalizeMAC(d.MacAddress)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range data.Devices {
		n, err := importDevice(ctx, tx, &data.Devices[i], tags)
		if err != nil {
			return sum, err
		}
		sum.Devices++
		sum.Tags += n
	}

	for _, p := range data.Pets {
		chip, ok := tags[p.TagID]
		if !ok {
			logging.Warn("Pet references unknown tag", zap.String("pet", p.Name), zap.Int64("tag_id", p.TagID))
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pets(tag, name, species) VALUES (?, ?, ?)
			ON CONFLICT(tag) DO UPDATE SET name = excluded.name, species = excluded.species
		`, chip, p.Name, p.SpeciesID); err != nil {
			return sum, fmt.Errorf("import pet %s: %w", p.Name, err)
		}
		sum.Pets++

		if a := p.Status.Activity; a != nil {
			loc := protocol.PetUnknown
			switch a.Where {
			case cloudInside:
				loc = protocol.PetInside
			case cloudOutside:
				loc = protocol.PetOutside
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO petstate(tag, mac_address, seen_at, state) VALUES (?, ?, ?, ?)
				ON CONFLICT(tag, mac_address) DO UPDATE SET seen_at = excluded.seen_at, state = excluded.state
			`, chip, macs[a.DeviceID], toUnixMillis(parseCloudTime(a.Since)), int64(loc)); err != nil {
				return sum, fmt.Errorf("import pet state %s: %w", p.Name, err)
			}
		}

		if f := p.Status.Feeding; f != nil && f.DeviceID != 0 {
			var left, right float64
			if len(f.Change) > 0 {
				left = f.Change[0]
			}
			if len(f.Change) > 1 {
				right = f.Change[1]
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO feeds(mac_address, tag, animal, fed_at, seconds, left_delta, right_delta)
				VALUES (?, ?, ?, ?, 0, ?, ?)
				ON CONFLICT(mac_address, tag, fed_at) DO NOTHING
			`, macs[f.DeviceID], chip, p.Name, toUnixMillis(parseCloudTime(f.At)), left, right); err != nil {
				return sum, fmt.Errorf("import feed %s: %w", p.Name, err)
			}
			sum.Feeds++
		}
	}

	if err := tx.Commit(); err != nil {
		return sum, fmt.Errorf("commit import: %w", err)
	}
	logging.Info("Registry imported", zap.Stringer("summary", sum))
	return sum, nil
}

func importDevice(ctx context.Context, tx *sql.Tx, d *startDevice, tags map[int64]string) (int, error) {
	mac := normalizeMAC(d.MacAddress)
	if mac == "" {
		return 0, fmt.Errorf("device %d has no mac_address", d.ID)
	}

	var deviceRSSI, hubRSSI string
	if d.Status.Signal != nil {
		deviceRSSI = d.Status.Signal.DeviceRSSI.String()
		hubRSSI = d.Status.Signal.HubRSSI.String()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO devices(mac_address, product_id, name, serial_number, battery, device_rssi, hub_rssi, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			product_id = excluded.product_id,
			name = excluded.name,
			serial_number = excluded.serial_number,
			battery = excluded.battery,
			device_rssi = excluded.device_rssi,
			hub_rssi = excluded.hub_rssi,
			version = excluded.version
	`, mac, d.ProductID, d.displayName(), d.SerialNumber, d.Status.Battery.String(),
		deviceRSSI, hubRSSI, string(d.Status.Version)); err != nil {
		return 0, fmt.Errorf("import device %s: %w", mac, err)
	}

	switch protocol.DeviceType(d.ProductID) {
	case protocol.DeviceTypeHub:
		var led, pairing int
		if d.Control.LedMode != nil {
			led = *d.Control.LedMode
		}
		if d.Control.PairingMode != nil {
			pairing = *d.Control.PairingMode
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hubs(mac_address, led_mode, pairing_mode, state) VALUES (?, ?, ?, ?)
			ON CONFLICT(mac_address) DO UPDATE SET
				led_mode = excluded.led_mode,
				pairing_mode = excluded.pairing_mode,
				state = excluded.state
		`, mac, led, pairing, boolInt(d.Status.Online)); err != nil {
			return 0, fmt.Errorf("import hub %s: %w", mac, err)
		}

	case protocol.DeviceTypePetDoor, protocol.DeviceTypeCatFlap:
		enabled, windows := d.curfews()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO doors(mac_address, lockingmode, curfewenabled, curfews) VALUES (?, ?, ?, ?)
			ON CONFLICT(mac_address) DO UPDATE SET
				lockingmode = excluded.lockingmode,
				curfewenabled = excluded.curfewenabled,
				curfews = excluded.curfews
		`, mac, d.lockingMode(), boolInt(enabled), formatCurfews(windows)); err != nil {
			return 0, fmt.Errorf("import door %s: %w", mac, err)
		}

	case protocol.DeviceTypeFeeder, protocol.DeviceTypeFeederLite:
		var bowls, t1, t2, delay int
		if b := d.Control.Bowls; b != nil {
			switch {
			case b.Type == cloudTwoBowls && len(b.Settings) >= 2:
				bowls, t1, t2 = 2, b.Settings[0].Target, b.Settings[1].Target
			case b.Type == 1 && len(b.Settings) >= 1:
				bowls, t1 = 1, b.Settings[0].Target
			}
		}
		if d.Control.Lid != nil {
			delay = closeDelayMillis(d.Control.Lid.CloseDelay)
		}
		if err := upsertFeeder(ctx, tx, mac, bowls, t1, t2, delay); err != nil {
			return 0, err
		}

	case protocol.DeviceTypeFelaqua:
		var tare int
		if d.Control.Tare != nil {
			tare = *d.Control.Tare
		}
		if err := upsertFeeder(ctx, tx, mac, 0, tare, 0, 0); err != nil {
			return 0, err
		}
	}

	switch protocol.DeviceType(d.ProductID) {
	case protocol.DeviceTypeFeeder, protocol.DeviceTypeFeederLite, protocol.DeviceTypeCatFlap, protocol.DeviceTypeFelaqua:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO devicecounter(mac_address) VALUES (?) ON CONFLICT(mac_address) DO NOTHING`, mac); err != nil {
			return 0, fmt.Errorf("import counter %s: %w", mac, err)
		}
	}

	var n int
	for _, t := range d.Tags {
		chip, ok := tags[t.ID]
		if !ok {
			logging.Warn("Device references unknown tag", zap.String("device", mac), zap.Int64("tag_id", t.ID))
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tagmap(mac_address, tagindex, tag, profile) VALUES (?, ?, ?, ?)
			ON CONFLICT(mac_address, tagindex) DO UPDATE SET tag = excluded.tag, profile = excluded.profile
		`, mac, t.Index, chip, t.Profile); err != nil {
			return 0, fmt.Errorf("import tag %s/%d: %w", mac, t.Index, err)
		}
		n++
	}
	return n, nil
}

func upsertFeeder(ctx context.Context, tx *sql.Tx, mac string, bowls, t1, t2, delay int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO feeders(mac_address, bowltype, bowltarget1, bowltarget2, close_delay) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			bowltype = excluded.bowltype,
			bowltarget1 = excluded.bowltarget1,
			bowltarget2 = excluded.bowltarget2,
			close_delay = excluded.close_delay
	`, mac, bowls, t1, t2, delay)
	if err != nil {
		return fmt.Errorf("import feeder %s: %w", mac, err)
	}
	return nil
}

// closeDelayMillis converts the cloud lid delay, given in seconds, to the
// wire value in milliseconds.
func closeDelayMillis(seconds int) int {
	if seconds >= 1000 {
		return seconds
	}
	return seconds * 1000
}

// SpeciesName names a cloud species id.
func SpeciesName(id int) string {
	switch id {
	case 1:
		return "Cat"
	case 2:
		return "Dog"
	default:
		return strconv.Itoa(id)
	}
}
