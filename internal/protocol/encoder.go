package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"go.uber.org/zap"
)

// Command is a generated message ready to publish to the hub.
type Command struct {
	Device    string `json:"device"`
	Operation string `json:"operation"`
	Topic     string `json:"topic"`
	Message   string `json:"message"`
}

func (c *Command) String() string {
	return fmt.Sprintf("Command{device=%s, op=%s, topic=%s, message=%s}", c.Device, c.Operation, c.Topic, c.Message)
}

// Curfew layout of a cat flap 0x12 command
const (
	flapCurfewSlots = 4
	flapCurfewEmpty = "00 00 42 00 00 00 42 00 06"
)

// Generate builds the MQTT command for operation on the device at address.
// The counter and timestamp are filled before state is validated, so a
// rejected state still consumes a send counter. A clock outside the years the
// device timestamp can carry fails before a counter is taken.
func (c *Codec) Generate(ctx context.Context, address, operation, state string) (*Command, error) {
	dev, err := c.registry.Device(ctx, address)
	switch {
	case err == nil:
	case address == HubAddress || address == "":
		dev = DeviceInfo{Address: HubAddress, Name: DeviceTypeHub.String(), Type: DeviceTypeHub}
	case errors.Is(err, ErrRegistryMiss):
		return nil, wrapError(ErrTypeRegistryMiss, err, "device %s", address)
	default:
		return nil, fmt.Errorf("failed to look up device %s: %w", address, err)
	}
	if dev.Address == "" {
		dev.Address = address
	}

	tmpl, ok := c.cfg.Operations.Lookup(dev.Type, operation)
	if !ok {
		return nil, newError(ErrTypeUnknownOperation, "%s has no operation %q", dev.Type, operation)
	}
	if state == "" {
		state = tmpl.State
	}

	now := c.cfg.Clock().UTC()
	stamp, err := TimestampFromTime(now)
	if err != nil {
		return nil, fmt.Errorf("command timestamp for %s: %w", dev.Address, err)
	}
	body := tmpl.Template
	if strings.Contains(body, "ZZ ZZ") {
		counter, err := c.counters.NextSend(ctx, dev.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate send counter for %s: %w", dev.Address, err)
		}
		body = strings.Replace(body, "ZZ ZZ", HexSpaced(PutUint16LE(counter)), 1)
	}
	body = strings.Replace(body, "TT TT TT TT", HexSpaced(EncodeTimestamp(stamp)), 1)

	body, err = c.fill(ctx, dev, tmpl, body, state, now)
	if err != nil {
		return nil, err
	}

	topic := c.cfg.TopicPrefix
	if dev.Type != DeviceTypeHub {
		topic += "/" + dev.Address
	}
	cmd := &Command{
		Device:    dev.Name,
		Operation: tmpl.Name,
		Topic:     topic,
		Message:   fmt.Sprintf("%x %s %s", now.Unix(), commandMarker, body),
	}
	if c.cfg.Verbose {
		logging.LogMQTT("tx", cmd.Topic, cmd.Message)
	}
	return cmd, nil
}

// fill substitutes the state dependent placeholders.
func (c *Codec) fill(ctx context.Context, dev DeviceInfo, tmpl *CommandTemplate, body, state string, now time.Time) (string, error) {
	var err error
	switch tmpl.Kind {
	case TemplateLock:
		body, err = c.fillLock(ctx, dev, tmpl, body, state)
	case TemplateFeederTag:
		body, err = fillFeederTag(body, state)
	case TemplateFlapTag:
		body, err = fillFlapTag(body, state)
	case TemplateFlapCurfew:
		body, err = fillFlapCurfew(body, state, now)
	case TemplateDoorCurfew:
		body, err = fillDoorCurfew(body, state)
	case TemplateClock:
		body = strings.Replace(body, "HH MM", HexByte(byte(now.Hour()))+" "+HexByte(byte(now.Minute())), 1)
	}
	if err != nil {
		return "", err
	}

	if strings.Contains(body, "SS") {
		wire, ok := tmpl.resolve(state)
		if !ok {
			return "", newError(ErrTypeInvalidState, "%s accepts %s, got %q",
				tmpl.Name, strings.Join(tmpl.States(), ", "), state)
		}
		body = strings.Replace(body, "SS", wire, 1)
	}
	if strings.Contains(body, "WW WW WW WW") {
		grams, err := strconv.ParseUint(state, 10, 31)
		if err != nil || grams*100 > 1<<31-1 {
			return "", newError(ErrTypeInvalidState, "%s needs a weight in whole grams, got %q", tmpl.Name, state)
		}
		body = strings.Replace(body, "WW WW WW WW", HexSpaced(PutUint32LE(uint32(grams*100))), 1)
	}
	if strings.Contains(body, "VV VV VV VV") {
		v, err := strconv.ParseInt(state, 10, 32)
		if err != nil {
			return "", newError(ErrTypeInvalidState, "%s needs an integer, got %q", tmpl.Name, state)
		}
		body = strings.Replace(body, "VV VV VV VV", HexSpaced(PutUint32LE(uint32(int32(v)))), 1)
	}
	if strings.Contains(body, "XX") {
		b, err := ParseHex(state)
		if err != nil || len(b) != 1 {
			return "", newError(ErrTypeInvalidState, "%s needs one hex byte, got %q", tmpl.Name, state)
		}
		body = strings.Replace(body, "XX", HexByte(b[0]), 1)
	}
	return body, nil
}

// NextLockMode is the lock mode after switching direction (KeepIn or
// KeepOut) on or off from current. The four modes form a 2x2 lattice with
// KeepIn and KeepOut as independent bits; a combination that does not move
// along the lattice falls back to Unlocked.
func NextLockMode(current LockState, direction string, on bool) LockState {
	switch {
	case direction == "KeepIn" && on && current == LockUnlocked:
		return LockKeepIn
	case direction == "KeepIn" && on && current == LockKeepOut:
		return LockLocked
	case direction == "KeepIn" && !on && current == LockKeepIn:
		return LockUnlocked
	case direction == "KeepIn" && !on && current == LockLocked:
		return LockKeepOut
	case direction == "KeepOut" && on && current == LockUnlocked:
		return LockKeepOut
	case direction == "KeepOut" && on && current == LockKeepIn:
		return LockLocked
	case direction == "KeepOut" && !on && current == LockKeepOut:
		return LockUnlocked
	case direction == "KeepOut" && !on && current == LockLocked:
		return LockKeepIn
	}
	return LockUnlocked
}

func parseOnOff(state string) (bool, bool) {
	switch strings.ToUpper(state) {
	case "ON", "1", "TRUE":
		return true, true
	case "OFF", "0", "FALSE":
		return false, true
	}
	return false, false
}

func (c *Codec) fillLock(ctx context.Context, dev DeviceInfo, tmpl *CommandTemplate, body, state string) (string, error) {
	on, ok := parseOnOff(state)
	if !ok {
		return "", newError(ErrTypeInvalidState, "%s needs ON or OFF, got %q", tmpl.Name, state)
	}
	current, err := c.registry.DoorLockMode(ctx, dev.Address)
	if err != nil {
		if !errors.Is(err, ErrRegistryMiss) {
			return "", fmt.Errorf("failed to read lock mode of %s: %w", dev.Address, err)
		}
		c.miss("lock mode", dev.Address, err)
		current = LockUnlocked
	}

	next := NextLockMode(current, tmpl.Name, on)
	logging.Debug("Lock transition",
		zap.String("device", dev.Address),
		zap.Stringer("from", current),
		zap.Stringer("to", next),
	)
	code := byte(next)
	if dev.Type == DeviceTypeCatFlap {
		flap, _ := next.CatFlapLock()
		code = byte(flap)
	}
	return strings.Replace(body, "LL", HexByte(code), 1), nil
}

const chipPlaceholder = "CC CC CC CC CC CC CC"

// fillFeederTag handles "enable-<index>-<chip>" and "disable-<index>-<chip>".
// The enable byte uses the ChipState values tag reports decode with.
func fillFeederTag(body, state string) (string, error) {
	parts := strings.SplitN(state, "-", 3)
	if len(parts) != 3 {
		return "", newError(ErrTypeInvalidState, "tag state %q, want enable|disable-<index>-<chip>", state)
	}
	var enable ChipState
	switch strings.ToLower(parts[0]) {
	case "enable":
		enable = ChipEnabled
	case "disable":
		enable = ChipDisabled
	default:
		return "", newError(ErrTypeInvalidState, "tag state %q must start with enable or disable", state)
	}
	index, err := parseTagIndex(parts[1])
	if err != nil {
		return "", err
	}
	chip, err := EncodeChip(parts[2])
	if err != nil {
		return "", err
	}
	body = strings.Replace(body, chipPlaceholder, HexSpaced(chip), 1)
	body = strings.Replace(body, "II", index, 1)
	return strings.Replace(body, "EE", HexByte(byte(enable)), 1), nil
}

// fillFlapTag handles "<index>-<chip>-<Normal|KeepIn>-<Enabled|Disabled>".
func fillFlapTag(body, state string) (string, error) {
	parts := strings.Split(state, "-")
	if len(parts) != 4 {
		return "", newError(ErrTypeInvalidState, "tag state %q, want <index>-<chip>-<Normal|KeepIn>-<Enabled|Disabled>", state)
	}
	index, err := parseTagIndex(parts[0])
	if err != nil {
		return "", err
	}
	chip, err := EncodeChip(parts[1])
	if err != nil {
		return "", err
	}
	lock, ok := ParseTagLockState(parts[2])
	if !ok {
		return "", newError(ErrTypeInvalidState, "tag lock state %q, want Normal or KeepIn", parts[2])
	}
	var enable ChipState
	switch strings.ToLower(parts[3]) {
	case "enabled":
		enable = ChipEnabled
	case "disabled":
		enable = ChipDisabled
	default:
		return "", newError(ErrTypeInvalidState, "tag state %q, want Enabled or Disabled", parts[3])
	}
	body = strings.Replace(body, chipPlaceholder, HexSpaced(chip), 1)
	body = strings.Replace(body, "LL", HexByte(byte(lock)), 1)
	body = strings.Replace(body, "II", index, 1)
	return strings.Replace(body, "EE", HexByte(byte(enable)), 1), nil
}

func parseTagIndex(text string) (string, error) {
	v, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return "", newError(ErrTypeInvalidState, "tag index %q is not 0-255", text)
	}
	return HexByte(byte(v)), nil
}

// parseWindows reads "HH:MM-HH:MM[,HH:MM-HH:MM...]". An empty state or OFF
// is no windows.
func parseWindows(state string) ([]CurfewWindow, error) {
	if state == "" || strings.EqualFold(state, "OFF") {
		return nil, nil
	}
	var out []CurfewWindow
	for _, w := range strings.Split(state, ",") {
		start, end, ok := strings.Cut(strings.TrimSpace(w), "-")
		if !ok {
			return nil, newError(ErrTypeInvalidState, "curfew window %q, want HH:MM-HH:MM", w)
		}
		for _, t := range []string{start, end} {
			if _, err := time.Parse("15:04", t); err != nil {
				return nil, newError(ErrTypeInvalidState, "curfew time %q, want HH:MM", t)
			}
		}
		out = append(out, CurfewWindow{Start: start, End: end})
	}
	return out, nil
}

func fillFlapCurfew(body, state string, now time.Time) (string, error) {
	windows, err := parseWindows(state)
	if err != nil {
		return "", err
	}
	if len(windows) > flapCurfewSlots {
		return "", newError(ErrTypeInvalidState, "cat flaps hold %d curfew windows, got %d", flapCurfewSlots, len(windows))
	}
	records := make([]string, 0, flapCurfewSlots)
	for _, w := range windows {
		start, err := ParseTimestamp(w.Start, now)
		if err != nil {
			return "", err
		}
		end, err := ParseTimestamp(w.End, now)
		if err != nil {
			return "", err
		}
		records = append(records, HexSpaced(EncodeTimestamp(start))+" "+HexSpaced(EncodeTimestamp(end))+" "+HexByte(curfewActive))
	}
	for len(records) < flapCurfewSlots {
		records = append(records, flapCurfewEmpty)
	}
	return strings.Replace(body, "RR", strings.Join(records, " "), 1), nil
}

func fillDoorCurfew(body, state string) (string, error) {
	windows, err := parseWindows(state)
	if err != nil {
		return "", err
	}
	if len(windows) > 1 {
		return "", newError(ErrTypeInvalidState, "pet doors hold one curfew window, got %d", len(windows))
	}
	if len(windows) == 0 {
		return strings.Replace(body, "EE HH MM HH MM", "01 00 00 00 00", 1), nil
	}
	clock := func(text string) string {
		t, _ := time.Parse("15:04", text)
		return HexByte(byte(t.Hour())) + " " + HexByte(byte(t.Minute()))
	}
	fields := HexByte(byte(curfewOn)) + " " + clock(windows[0].Start) + " " + clock(windows[0].End)
	return strings.Replace(body, "EE HH MM HH MM", fields, 1), nil
}
