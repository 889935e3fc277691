package protocol

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Register offsets of the hub and pet door status memory. The map is known
// to be incomplete; anything not listed decodes as Other.
const (
	RegAdoption       = 15
	RegLedMode        = 18
	RegBatteryTime    = 33
	RegSetTime        = 34
	RegLockState      = 36
	RegLockedOut      = 40
	RegChipCount      = 59
	RegChipFirst      = 91
	RegChipLast       = 308
	RegCurfew         = 519
	RegMovementFirst  = 525
	RegMovementLast   = 618
	RegUnknownPetExit = 621
)

// Battery ADC conversion for register 33
const (
	batteryADCStart = 2.1075
	batteryADCStep  = 0.0225
)

// registerScope says which device family an offset belongs to.
type registerScope int

const (
	scopeBoth registerScope = iota
	scopeHub
	scopeDoor
)

func scopeOf(offset int) (registerScope, bool) {
	switch {
	case offset == RegAdoption, offset == RegLedMode:
		return scopeHub, true
	case offset == RegBatteryTime, offset == RegSetTime, offset == RegLockState:
		return scopeBoth, true
	case offset == RegLockedOut, offset == RegChipCount, offset == RegCurfew, offset == RegUnknownPetExit,
		offset >= RegChipFirst && offset <= RegChipLast,
		offset >= RegMovementFirst && offset <= RegMovementLast:
		return scopeDoor, true
	}
	return 0, false
}

// DecodeRegister decodes a register status report for the device at address.
// data[0] is the length byte, followed by the register contents. Pet
// movements are stamped with at, or with the codec clock when at is zero.
func (c *Codec) DecodeRegister(ctx context.Context, address string, offset int, data []byte, at time.Time) Record {
	return c.decodeRegister(ctx, c.device(ctx, address), offset, data, at)
}

func isHub(dev DeviceInfo) bool {
	return dev.Type == DeviceTypeHub || dev.Address == "" || dev.Address == HubAddress
}

func (c *Codec) decodeRegister(ctx context.Context, dev DeviceInfo, offset int, d []byte, at time.Time) Record {
	r := &RegisterRecord{
		Offset: offset,
		Length: int(byteAt(d, 0)),
		Fields: map[string]string{},
		Raw:    Hex(d),
	}

	scope, ok := scopeOf(offset)
	hub := isHub(dev)
	if !ok || (scope == scopeHub && !hub) || (scope == scopeDoor && hub) {
		r.OpTag = tag(OpOther)
		return r
	}

	switch {
	case offset == RegAdoption:
		r.OpTag = tag(OpAdoption)
		mode := HubAdoption(byteAt(d, 1))
		r.Fields["Adoption"] = mode.String()
		if mode.Known() {
			c.writeBack("adoption", dev.Address, c.registry.SetAdoption(ctx, dev.Address, mode))
		}

	case offset == RegLedMode:
		r.OpTag = tag(OpLedMode)
		mode := HubLeds(byteAt(d, 1))
		r.Fields["LedMode"] = mode.String()
		if mode.Known() {
			c.writeBack("led mode", dev.Address, c.registry.SetLedMode(ctx, dev.Address, mode))
		}

	case offset == RegBatteryTime:
		r.OpTag = tag(OpBatteryAndTime)
		volts := roundTo(batteryADCStart+float64(byteAt(d, 1))*batteryADCStep, 4)
		r.Fields["Battery"] = strconv.FormatFloat(volts, 'f', -1, 64)
		r.Fields["Time"] = clockText(field(d, 2, 4))
		c.writeBack("battery", dev.Address, c.registry.SetBattery(ctx, dev.Address, volts))

	case offset == RegSetTime:
		r.OpTag = tag(OpSetTime)
		r.Fields["Time"] = clockText(field(d, 1, 3))

	case offset == RegLockState:
		r.OpTag = tag(OpLockState)
		mode := LockState(byteAt(d, 1))
		r.Fields["LockState"] = mode.String()
		if mode.Known() {
			c.writeBack("lock mode", dev.Address, c.registry.SetLockMode(ctx, dev.Address, mode))
		}

	case offset == RegLockedOut:
		r.OpTag = tag(OpLockedOutState)
		r.Fields["LockedOut"] = LockedOutState(byteAt(d, 1)).String()

	case offset == RegChipCount:
		r.OpTag = tag(OpChipCount)
		r.Fields["ChipCount"] = strconv.Itoa(int(byteAt(d, 1)))

	case offset >= RegChipFirst && offset <= RegChipLast:
		r.OpTag = tag(OpProvChip)
		r.Fields["PetOffset"] = strconv.Itoa(chipSlot(offset))
		chip, err := DecodeDoorChip(field(d, 2, 2+chipValueSize))
		if err != nil {
			r.OpTag = tag(OpOther)
			return r
		}
		r.Fields["Chip"] = chip.Text

	case offset == RegCurfew:
		r.OpTag = tag(OpCurfew)
		state := CurfewState(byteAt(d, 1))
		on := fmt.Sprintf("%02d:%02d", byteAt(d, 2), byteAt(d, 3))
		off := fmt.Sprintf("%02d:%02d", byteAt(d, 4), byteAt(d, 5))
		r.Fields["CurfewState"] = state.String()
		r.Fields["CurfewOn"] = on
		r.Fields["CurfewOff"] = off
		if state.Known() {
			c.writeBack("curfew", dev.Address, c.registry.SetCurfew(ctx, dev.Address, state == curfewOn,
				[]CurfewWindow{{Start: on, End: off}}))
		}

	case offset >= RegMovementFirst && offset <= RegMovementLast:
		r.OpTag = tag(OpPetMovement)
		c.decodeDoorMovement(ctx, dev, offset, d, at, r)

	case offset == RegUnknownPetExit:
		// Reported when an unprovisioned animal leaves; the payload is not
		// understood and is kept in Raw.
		r.OpTag = tag(OpPetMovement)
		r.Fields["PetOffset"] = strconv.Itoa(RegUnknownPetExit)
		r.Fields["Animal"] = "Unknown Pet"
		r.Fields["Direction"] = "Outside"
		r.Fields["State"] = "OFF"
	}
	return r
}

const curfewOn CurfewState = 2

// chipSlot is the pet index of a provisioned chip register.
func chipSlot(offset int) int {
	return int(math.Round(float64(offset-84) / 7))
}

// movementSlot is the pet index of a movement register.
func movementSlot(offset int) int {
	return int(math.Round(float64(offset-522)/3)) - 1
}

func (c *Codec) decodeDoorMovement(ctx context.Context, dev DeviceInfo, offset int, d []byte, at time.Time, r *RegisterRecord) {
	slot := movementSlot(offset)
	direction := PetDoorDirection(byteAt(d, 3))
	r.Fields["PetOffset"] = strconv.Itoa(slot)
	r.Fields["Direction"] = direction.String()
	r.Fields["Animal"] = AnimalUnknown

	chip, err := c.registry.TagByIndex(ctx, dev.Address, slot)
	if err != nil {
		c.miss("tag", fmt.Sprintf("%s/%d", dev.Address, slot), err)
		return
	}
	name, err := c.registry.PetByChip(ctx, chip)
	if err != nil {
		c.miss("pet", chip, err)
		return
	}
	r.Fields["Animal"] = name

	loc, ok := direction.Location()
	if !ok {
		return
	}
	if at.IsZero() {
		at = c.cfg.Clock().UTC()
	}
	c.writeBack("pet location", dev.Address,
		c.registry.SetPetLocation(ctx, chip, dev.Address, loc, at))
}
