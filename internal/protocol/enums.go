package protocol

import (
	"fmt"
	"strings"
)

// Enumerations of values the devices put on the wire. Each type converts
// from its raw value without failing: values with no name stay representable
// and print as Unrecognized(0x..).

type wireValue interface {
	~uint8 | ~uint16 | ~int32
}

func enumName[T wireValue](names map[T]string, v T) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("Unrecognized(0x%02x)", uint32(v))
}

func enumKnown[T wireValue](names map[T]string, v T) bool {
	_, ok := names[v]
	return ok
}

// enumParse finds the value whose name matches text, ignoring case.
func enumParse[T wireValue](names map[T]string, text string) (T, bool) {
	for v, n := range names {
		if strings.EqualFold(n, text) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// DeviceType is the product id of a device.
type DeviceType uint8

const (
	DeviceTypeUnknown    DeviceType = 0
	DeviceTypeHub        DeviceType = 1
	DeviceTypeRepeater   DeviceType = 2
	DeviceTypePetDoor    DeviceType = 3
	DeviceTypeFeeder     DeviceType = 4
	DeviceTypeProgrammer DeviceType = 5
	DeviceTypeCatFlap    DeviceType = 6
	DeviceTypeFeederLite DeviceType = 7
	DeviceTypeFelaqua    DeviceType = 8
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeHub:        "Hub",
	DeviceTypeRepeater:   "Repeater",
	DeviceTypePetDoor:    "PetDoor",
	DeviceTypeFeeder:     "Feeder",
	DeviceTypeProgrammer: "Programmer",
	DeviceTypeCatFlap:    "CatFlap",
	DeviceTypeFeederLite: "FeederLite",
	DeviceTypeFelaqua:    "Felaqua",
}

func (d DeviceType) String() string { return enumName(deviceTypeNames, d) }
func (d DeviceType) Known() bool    { return enumKnown(deviceTypeNames, d) }

// ParseDeviceType resolves a device type name such as "CatFlap".
func ParseDeviceType(name string) (DeviceType, bool) {
	return enumParse(deviceTypeNames, name)
}

// LockState is the pet door lock mode, also used as the canonical lock mode
// stored in the registry for cat flaps.
type LockState uint8

const (
	LockUnlocked LockState = 0
	LockKeepIn   LockState = 1
	LockKeepOut  LockState = 2
	LockLocked   LockState = 3
	LockCurfew   LockState = 4
)

var lockStateNames = map[LockState]string{
	LockUnlocked: "Unlocked",
	LockKeepIn:   "KeepIn",
	LockKeepOut:  "KeepOut",
	LockLocked:   "Locked",
	LockCurfew:   "Curfew",
}

func LockStateFromWire(b byte) LockState { return LockState(b) }
func (s LockState) String() string       { return enumName(lockStateNames, s) }
func (s LockState) Known() bool          { return enumKnown(lockStateNames, s) }

// ParseLockState resolves a lock state name such as "KeepIn".
func ParseLockState(name string) (LockState, bool) {
	return enumParse(lockStateNames, name)
}

// CatFlapLockState is the lock byte cat flaps use in 0x11 and 0x0d messages.
type CatFlapLockState uint8

const (
	CatFlapKeepIn   CatFlapLockState = 3
	CatFlapLocked   CatFlapLockState = 4
	CatFlapKeepOut  CatFlapLockState = 5
	CatFlapUnlocked CatFlapLockState = 6
)

var catFlapLockNames = map[CatFlapLockState]string{
	CatFlapKeepIn:   "KeepIn",
	CatFlapLocked:   "Locked",
	CatFlapKeepOut:  "KeepOut",
	CatFlapUnlocked: "Unlocked",
}

func CatFlapLockStateFromWire(b byte) CatFlapLockState { return CatFlapLockState(b) }
func (s CatFlapLockState) String() string              { return enumName(catFlapLockNames, s) }
func (s CatFlapLockState) Known() bool                 { return enumKnown(catFlapLockNames, s) }

// LockState maps the cat flap lock byte onto the canonical lock mode.
func (s CatFlapLockState) LockState() (LockState, bool) {
	switch s {
	case CatFlapUnlocked:
		return LockUnlocked, true
	case CatFlapKeepIn:
		return LockKeepIn, true
	case CatFlapKeepOut:
		return LockKeepOut, true
	case CatFlapLocked:
		return LockLocked, true
	}
	return 0, false
}

// CatFlapLock maps a canonical lock mode onto the cat flap lock byte.
func (s LockState) CatFlapLock() (CatFlapLockState, bool) {
	switch s {
	case LockUnlocked:
		return CatFlapUnlocked, true
	case LockKeepIn:
		return CatFlapKeepIn, true
	case LockKeepOut:
		return CatFlapKeepOut, true
	case LockLocked:
		return CatFlapLocked, true
	}
	return 0, false
}

// TagLockState is the per-animal lock profile carried in tag provisioning.
// 02 and 03 are the tag specific profiles; other values reuse the cat flap
// lock byte names.
type TagLockState uint8

const (
	TagLockNormal TagLockState = 2
	TagLockKeepIn TagLockState = 3
)

func (s TagLockState) String() string {
	switch s {
	case TagLockNormal:
		return "Normal"
	case TagLockKeepIn:
		return "KeepIn"
	}
	return CatFlapLockState(s).String()
}

// ParseTagLockState resolves "Normal" or "KeepIn".
func ParseTagLockState(name string) (TagLockState, bool) {
	switch strings.ToLower(name) {
	case "normal":
		return TagLockNormal, true
	case "keepin":
		return TagLockKeepIn, true
	}
	return 0, false
}

// LockedOutState is the pet door "keep pets out" sub-state at register 40.
type LockedOutState uint8

var lockedOutNames = map[LockedOutState]string{
	2: "NORMAL",
	3: "LOCKED_IN",
}

func (s LockedOutState) String() string { return enumName(lockedOutNames, s) }
func (s LockedOutState) Known() bool    { return enumKnown(lockedOutNames, s) }

// FeederAction is the action byte of a 0x18 feed event.
type FeederAction uint8

const (
	FeederAnimalOpen   FeederAction = 0
	FeederAnimalClosed FeederAction = 1
	FeederManualOpen   FeederAction = 4
	FeederManualClosed FeederAction = 5
	FeederZeroBoth     FeederAction = 6
	FeederZeroLeft     FeederAction = 7
	FeederZeroRight    FeederAction = 8
)

var feederActionNames = map[FeederAction]string{
	FeederAnimalOpen:   "Animal_Open",
	FeederAnimalClosed: "Animal_Closed",
	FeederManualOpen:   "Manual_Open",
	FeederManualClosed: "Manual_Closed",
	FeederZeroBoth:     "Zero_Both",
	FeederZeroLeft:     "Zero_Left",
	FeederZeroRight:    "Zero_Right",
}

func (a FeederAction) String() string { return enumName(feederActionNames, a) }
func (a FeederAction) Known() bool    { return enumKnown(feederActionNames, a) }

// Manual reports whether the action was triggered by a person rather than
// an animal, in which case the chip field is meaningless.
func (a FeederAction) Manual() bool {
	return a >= FeederManualOpen && a <= FeederZeroRight
}

// CloseDelay is the feeder lid close delay in milliseconds.
type CloseDelay int32

var closeDelayNames = map[CloseDelay]string{
	0:     "Fast",
	4000:  "Normal",
	20000: "Slow",
}

func (d CloseDelay) String() string { return enumName(closeDelayNames, d) }
func (d CloseDelay) Known() bool    { return enumKnown(closeDelayNames, d) }

// BowlCount is the number of bowls a feeder is configured with.
type BowlCount int32

var bowlCountNames = map[BowlCount]string{
	1: "One",
	2: "Two",
}

func (b BowlCount) String() string { return enumName(bowlCountNames, b) }
func (b BowlCount) Known() bool    { return enumKnown(bowlCountNames, b) }

// CustomMode holds the bit flags of the UpdateState 0x14 custom mode.
type CustomMode int32

const (
	CustomGeniusCat CustomMode = 0x80
	CustomIntruder  CustomMode = 0x100
)

// Names lists the set flags, lowest bit first.
func (m CustomMode) Names() []string {
	var out []string
	if m&CustomGeniusCat != 0 {
		out = append(out, "GeniusCat")
	}
	if m&CustomIntruder != 0 {
		out = append(out, "Intruder")
	}
	return out
}

// HubLeds is the hub ear LED mode at register 18.
type HubLeds uint8

var hubLedNames = map[HubLeds]string{
	0x00: "Off",
	0x01: "Bright",
	0x04: "Dimmed",
	0x80: "FlashOff",
	0x81: "FlashBright",
	0x84: "FlashDimmed",
}

func (l HubLeds) String() string { return enumName(hubLedNames, l) }
func (l HubLeds) Known() bool    { return enumKnown(hubLedNames, l) }

// HubAdoption is the hub pairing mode at register 15.
type HubAdoption uint8

var hubAdoptionNames = map[HubAdoption]string{
	0: "Disabled",
	2: "Enabled",
}

func (a HubAdoption) String() string { return enumName(hubAdoptionNames, a) }
func (a HubAdoption) Known() bool    { return enumKnown(hubAdoptionNames, a) }

// CurfewState is the pet door curfew mode at register 519.
type CurfewState uint8

var curfewStateNames = map[CurfewState]string{
	1: "OFF",
	2: "ON",
	3: "STATUS",
}

func (s CurfewState) String() string { return enumName(curfewStateNames, s) }
func (s CurfewState) Known() bool    { return enumKnown(curfewStateNames, s) }

// ChipState is the enable byte of a provisioned tag.
type ChipState uint8

const (
	ChipEnabled  ChipState = 0
	ChipDisabled ChipState = 1
	ChipLock     ChipState = 2
)

var chipStateNames = map[ChipState]string{
	ChipEnabled:  "Enabled",
	ChipDisabled: "Disabled",
	ChipLock:     "LOCK",
}

func (s ChipState) String() string { return enumName(chipStateNames, s) }
func (s ChipState) Known() bool    { return enumKnown(chipStateNames, s) }

// PetDoorDirection is the movement byte of a pet door movement register.
type PetDoorDirection uint8

const (
	DoorLookedInOutside PetDoorDirection = 0x40
	DoorWentInside      PetDoorDirection = 0x61
	DoorWentOutside     PetDoorDirection = 0x62
	DoorCameInside      PetDoorDirection = 0x81
	DoorUnknownPet      PetDoorDirection = 0xd3
)

var petDoorDirectionNames = map[PetDoorDirection]string{
	DoorLookedInOutside: "LookedIn_Outside",
	DoorWentInside:      "Inside",
	DoorWentOutside:     "Outside",
	DoorCameInside:      "Inside",
	DoorUnknownPet:      "UnknownPet",
}

// Location is where a pet ends up after the movement. Only completed passes
// through the door move a pet; ok is false otherwise.
func (d PetDoorDirection) Location() (loc PetLocation, ok bool) {
	switch d {
	case DoorWentInside, DoorCameInside:
		return PetInside, true
	case DoorWentOutside:
		return PetOutside, true
	}
	return PetUnknown, false
}

func (d PetDoorDirection) Known() bool { return enumKnown(petDoorDirectionNames, d) }

func (d PetDoorDirection) String() string {
	if n, ok := petDoorDirectionNames[d]; ok {
		return n
	}
	return "Other " + HexByte(byte(d))
}

// CatFlapDirection is the two byte movement code of a 0x13 message.
type CatFlapDirection uint16

var catFlapDirectionNames = map[CatFlapDirection]string{
	0x0000: "Out",
	0x0101: "In",
	0x0200: "LookedOut",
	0x0201: "LookedIn",
	0x0102: "Status1",
	0x0202: "Status2",
}

func (d CatFlapDirection) String() string { return enumName(catFlapDirectionNames, d) }
func (d CatFlapDirection) Known() bool    { return enumKnown(catFlapDirectionNames, d) }

// ZeroScale is the trailing byte of a 0x0d zero scales command.
type ZeroScale uint8

var zeroScaleNames = map[ZeroScale]string{
	1: "ZeroLeft",
	2: "ZeroRight",
	3: "ZeroBoth",
}

func (z ZeroScale) String() string { return enumName(zeroScaleNames, z) }
func (z ZeroScale) Known() bool    { return enumKnown(zeroScaleNames, z) }

// PetLocation is where an animal was last seen.
type PetLocation uint8

const (
	PetOutside PetLocation = 0
	PetInside  PetLocation = 1
	PetUnknown PetLocation = 2
)

var petLocationNames = map[PetLocation]string{
	PetOutside: "Outside",
	PetInside:  "Inside",
	PetUnknown: "Unknown",
}

func (l PetLocation) String() string { return enumName(petLocationNames, l) }
