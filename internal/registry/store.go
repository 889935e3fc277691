package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"go.uber.org/zap"
)

// Store is a protocol.Registry and protocol.CounterStore backed by sqlite.
type Store struct {
	db *sql.DB
	// mu serializes writers; sqlite allows one at a time and the counter
	// read-modify-write must not interleave.
	mu sync.Mutex
}

var (
	_ protocol.Registry     = (*Store)(nil)
	_ protocol.CounterStore = (*Store)(nil)
)

// NewStore wraps an open database. See Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Device is a row of the devices table.
type Device struct {
	Address      string
	Name         string
	Type         protocol.DeviceType
	SerialNumber string
	Battery      string
	DeviceRSSI   string
	HubRSSI      string
	Version      string
}

// Pet is an animal with its last known location, if any.
type Pet struct {
	Tag      string
	Name     string
	Species  int
	Device   string
	Location protocol.PetLocation
	SeenAt   time.Time
}

func miss(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), protocol.ErrRegistryMiss)
}

func isHubAlias(address string) bool {
	return strings.EqualFold(address, protocol.HubAddress)
}

// hubAddress returns the MAC of the first hub in the registry.
func (s *Store) hubAddress(ctx context.Context) (string, error) {
	var mac string
	err := s.db.QueryRowContext(ctx,
		`SELECT mac_address FROM devices WHERE product_id = ? ORDER BY mac_address LIMIT 1`,
		int(protocol.DeviceTypeHub)).Scan(&mac)
	if errors.Is(err, sql.ErrNoRows) {
		return "", miss("hub")
	}
	if err != nil {
		return "", fmt.Errorf("query hub: %w", err)
	}
	return mac, nil
}

// resolve maps the hub alias to the stored hub MAC. Writes against a hub
// that was never imported land on the alias itself.
func (s *Store) resolve(ctx context.Context, address string) string {
	if isHubAlias(address) {
		if mac, err := s.hubAddress(ctx); err == nil {
			return mac
		}
	}
	return normalizeMAC(address)
}

// Device implements protocol.Registry.
func (s *Store) Device(ctx context.Context, address string) (protocol.DeviceInfo, error) {
	var (
		info    protocol.DeviceInfo
		product int64
	)
	query := `SELECT mac_address, name, product_id FROM devices WHERE mac_address = ?`
	args := []any{normalizeMAC(address)}
	if isHubAlias(address) {
		query = `SELECT mac_address, name, product_id FROM devices WHERE product_id = ? ORDER BY mac_address LIMIT 1`
		args = []any{int(protocol.DeviceTypeHub)}
	}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&info.Address, &info.Name, &product)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.DeviceInfo{}, miss("device %s", address)
	}
	if err != nil {
		return protocol.DeviceInfo{}, fmt.Errorf("query device: %w", err)
	}
	info.Type = protocol.DeviceType(product)
	return info, nil
}

// PetByChip implements protocol.Registry.
func (s *Store) PetByChip(ctx context.Context, chip string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM pets WHERE tag = ?`, chip).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", miss("chip %s", chip)
	}
	if err != nil {
		return "", fmt.Errorf("query pet: %w", err)
	}
	return name, nil
}

// TagByIndex implements protocol.Registry.
func (s *Store) TagByIndex(ctx context.Context, address string, index int) (string, error) {
	var tag string
	err := s.db.QueryRowContext(ctx,
		`SELECT tag FROM tagmap WHERE mac_address = ? AND tagindex = ?`,
		s.resolve(ctx, address), index).Scan(&tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", miss("tag %d on %s", index, address)
	}
	if err != nil {
		return "", fmt.Errorf("query tagmap: %w", err)
	}
	return tag, nil
}

// FeederConfig implements protocol.Registry.
func (s *Store) FeederConfig(ctx context.Context, address string) (protocol.FeederConfig, error) {
	var bowls, t1, t2, delay int64
	err := s.db.QueryRowContext(ctx,
		`SELECT bowltype, bowltarget1, bowltarget2, close_delay FROM feeders WHERE mac_address = ?`,
		normalizeMAC(address)).Scan(&bowls, &t1, &t2, &delay)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.FeederConfig{}, miss("feeder %s", address)
	}
	if err != nil {
		return protocol.FeederConfig{}, fmt.Errorf("query feeder: %w", err)
	}

	cfg := protocol.FeederConfig{
		BowlCount:  int(bowls),
		CloseDelay: protocol.CloseDelay(delay),
	}
	switch bowls {
	case 1:
		cfg.Targets = []int{int(t1)}
	case 2:
		cfg.Targets = []int{int(t1), int(t2)}
	}
	return cfg, nil
}

// DoorLockMode implements protocol.Registry.
func (s *Store) DoorLockMode(ctx context.Context, address string) (protocol.LockState, error) {
	var mode int64
	err := s.db.QueryRowContext(ctx,
		`SELECT lockingmode FROM doors WHERE mac_address = ?`, normalizeMAC(address)).Scan(&mode)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, miss("door %s", address)
	}
	if err != nil {
		return 0, fmt.Errorf("query door: %w", err)
	}
	return protocol.LockState(mode), nil
}

func (s *Store) exec(ctx context.Context, what, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	logging.Debug("Registry updated", zap.String("what", what))
	return nil
}

// SetBattery implements protocol.Registry. Unknown devices are ignored.
func (s *Store) SetBattery(ctx context.Context, address string, volts float64) error {
	return s.exec(ctx, "set battery",
		`UPDATE devices SET battery = ? WHERE mac_address = ?`,
		strconv.FormatFloat(volts, 'f', -1, 64), s.resolve(ctx, address))
}

// SetLockMode implements protocol.Registry.
func (s *Store) SetLockMode(ctx context.Context, address string, mode protocol.LockState) error {
	return s.exec(ctx, "set lock mode", `
		INSERT INTO doors(mac_address, lockingmode) VALUES (?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET lockingmode = excluded.lockingmode
	`, normalizeMAC(address), int64(mode))
}

// SetLedMode implements protocol.Registry.
func (s *Store) SetLedMode(ctx context.Context, address string, mode protocol.HubLeds) error {
	return s.exec(ctx, "set led mode", `
		INSERT INTO hubs(mac_address, led_mode) VALUES (?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET led_mode = excluded.led_mode
	`, s.resolve(ctx, address), int64(mode))
}

// SetAdoption implements protocol.Registry.
func (s *Store) SetAdoption(ctx context.Context, address string, mode protocol.HubAdoption) error {
	return s.exec(ctx, "set adoption", `
		INSERT INTO hubs(mac_address, pairing_mode) VALUES (?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET pairing_mode = excluded.pairing_mode
	`, s.resolve(ctx, address), int64(mode))
}

// SetCurfew implements protocol.Registry. Windows are stored as
// "HH:MM-HH:MM" joined by commas.
func (s *Store) SetCurfew(ctx context.Context, address string, enabled bool, windows []protocol.CurfewWindow) error {
	return s.exec(ctx, "set curfew", `
		INSERT INTO doors(mac_address, curfewenabled, curfews) VALUES (?, ?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			curfewenabled = excluded.curfewenabled,
			curfews = excluded.curfews
	`, normalizeMAC(address), boolInt(enabled), formatCurfews(windows))
}

func formatCurfews(windows []protocol.CurfewWindow) string {
	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		parts = append(parts, w.Start+"-"+w.End)
	}
	return strings.Join(parts, ",")
}

func parseCurfews(text string) []protocol.CurfewWindow {
	var out []protocol.CurfewWindow
	for _, part := range strings.Split(text, ",") {
		start, end, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok {
			continue
		}
		out = append(out, protocol.CurfewWindow{Start: start, End: end})
	}
	return out
}

// Curfew returns the stored curfew of a door or cat flap.
func (s *Store) Curfew(ctx context.Context, address string) (bool, []protocol.CurfewWindow, error) {
	var (
		enabled int64
		curfews string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT curfewenabled, curfews FROM doors WHERE mac_address = ?`,
		normalizeMAC(address)).Scan(&enabled, &curfews)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, miss("door %s", address)
	}
	if err != nil {
		return false, nil, fmt.Errorf("query curfew: %w", err)
	}
	return enabled != 0, parseCurfews(curfews), nil
}

// SetPetLocation implements protocol.Registry. Only the newest sighting per
// animal and device is kept.
func (s *Store) SetPetLocation(ctx context.Context, chip, address string, location protocol.PetLocation, at time.Time) error {
	return s.exec(ctx, "set pet location", `
		INSERT INTO petstate(tag, mac_address, seen_at, state) VALUES (?, ?, ?, ?)
		ON CONFLICT(tag, mac_address) DO UPDATE SET
			seen_at = excluded.seen_at,
			state = excluded.state
		WHERE excluded.seen_at >= petstate.seen_at
	`, chip, normalizeMAC(address), toUnixMillis(at), int64(location))
}

// SetBowlWeights implements protocol.Registry. A single bowl leaves bowl2
// untouched.
func (s *Store) SetBowlWeights(ctx context.Context, address string, grams []float64) error {
	switch len(grams) {
	case 0:
		return nil
	case 1:
		return s.exec(ctx, "set bowl weights", `
			INSERT INTO feeders(mac_address, bowl1) VALUES (?, ?)
			ON CONFLICT(mac_address) DO UPDATE SET bowl1 = excluded.bowl1
		`, normalizeMAC(address), grams[0])
	default:
		return s.exec(ctx, "set bowl weights", `
			INSERT INTO feeders(mac_address, bowl1, bowl2) VALUES (?, ?, ?)
			ON CONFLICT(mac_address) DO UPDATE SET
				bowl1 = excluded.bowl1,
				bowl2 = excluded.bowl2
		`, normalizeMAC(address), grams[0], grams[1])
	}
}

// BowlWeights returns the last reported bowl weights in grams.
func (s *Store) BowlWeights(ctx context.Context, address string) ([]float64, error) {
	var (
		bowls        int64
		bowl1, bowl2 float64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT bowltype, bowl1, bowl2 FROM feeders WHERE mac_address = ?`,
		normalizeMAC(address)).Scan(&bowls, &bowl1, &bowl2)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, miss("feeder %s", address)
	}
	if err != nil {
		return nil, fmt.Errorf("query bowls: %w", err)
	}
	if bowls == 1 {
		return []float64{bowl1}, nil
	}
	return []float64{bowl1, bowl2}, nil
}

// RecordFeed implements protocol.Registry. Replaying the same feed is a
// no-op.
func (s *Store) RecordFeed(ctx context.Context, ev protocol.FeedEvent) error {
	return s.exec(ctx, "record feed", `
		INSERT INTO feeds(mac_address, tag, animal, fed_at, seconds, left_delta, right_delta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac_address, tag, fed_at) DO NOTHING
	`, normalizeMAC(ev.Device), ev.Chip, ev.Animal, toUnixMillis(ev.At), ev.Seconds, ev.LeftDelta, ev.RightDelta)
}

// Feeds lists the feeding history of one chip, newest first. An empty chip
// lists every animal.
func (s *Store) Feeds(ctx context.Context, chip string, limit int) ([]protocol.FeedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT mac_address, tag, animal, fed_at, seconds, left_delta, right_delta
		FROM feeds
		WHERE ? = '' OR tag = ?
		ORDER BY fed_at DESC
		LIMIT ?
	`, chip, chip, limit)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var out []protocol.FeedEvent
	for rows.Next() {
		var (
			ev    protocol.FeedEvent
			fedMs int64
		)
		if err := rows.Scan(&ev.Device, &ev.Chip, &ev.Animal, &fedMs, &ev.Seconds, &ev.LeftDelta, &ev.RightDelta); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		ev.At = fromUnixMillis(fedMs)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return out, nil
}

// Devices lists every device ordered by type then name.
func (s *Store) Devices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mac_address, name, product_id, serial_number, battery, device_rssi, hub_rssi, version
		FROM devices
		ORDER BY product_id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var (
			d       Device
			product int64
		)
		if err := rows.Scan(&d.Address, &d.Name, &product, &d.SerialNumber, &d.Battery, &d.DeviceRSSI, &d.HubRSSI, &d.Version); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.Type = protocol.DeviceType(product)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return out, nil
}

// Pets lists every animal with its most recent sighting.
func (s *Store) Pets(ctx context.Context) ([]Pet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.tag, p.name, p.species, s.mac_address, s.seen_at, s.state
		FROM pets p
		LEFT JOIN petstate s ON s.rowid = (
			SELECT rowid FROM petstate WHERE tag = p.tag ORDER BY seen_at DESC LIMIT 1
		)
		ORDER BY p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	var out []Pet
	for rows.Next() {
		var (
			p      Pet
			device sql.NullString
			seenMs sql.NullInt64
			state  sql.NullInt64
		)
		if err := rows.Scan(&p.Tag, &p.Name, &p.Species, &device, &seenMs, &state); err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		p.Location = protocol.PetUnknown
		if device.Valid {
			p.Device = device.String
		}
		if seenMs.Valid {
			p.SeenAt = fromUnixMillis(seenMs.Int64)
		}
		if state.Valid {
			p.Location = protocol.PetLocation(state.Int64)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pets: %w", err)
	}
	return out, nil
}
