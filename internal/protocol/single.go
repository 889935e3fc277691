package protocol

import (
	"context"
	"strconv"
	"strings"
)

// Sub-message opcodes
const (
	OpcodeAck          = 0x00
	OpcodeQuery        = 0x01
	OpcodeSetTime      = 0x07
	OpcodeUpdateState  = 0x09
	OpcodeBattery      = 0x0c
	OpcodeZeroOrCurfew = 0x0d
	OpcodeTag          = 0x11
	OpcodeCurfew       = 0x12
	OpcodePetMovement  = 0x13
	OpcodeFeed         = 0x18
	OpcodeDrinking     = 0x1b
)

// UpdateState (0x09) sub-types
const (
	updateTraining   = 0x05
	updateLeftScale  = 0x0a
	updateRightScale = 0x0b
	updateBowlCount  = 0x0c
	updateCloseDelay = 0x0d
	update12         = 0x12
	updateCustomMode = 0x14
	updateZeroLeft   = 0x17
	updateZeroRight  = 0x18
)

// Sub-message layout
const (
	subHeaderSize     = 8
	zeroScalesSize    = 20 // 0x0d of exactly this length zeroes scales
	curfewLockOffset  = 29 // cat flap lock byte in the long 0x0d form
	tagMarkerOffset   = 14 // 0x11: chip type marker, or 0x07 for lock state
	tagMarkerLock     = 0x07
	tagLockOffset     = 15
	tagIndexOffset    = 16
	tagStateOffset    = 17
	tagLockStateFlag  = 0x02 // 0x11 with marker 0x07: 02 at [17] sets the flap lock
	curfewStart       = 16
	curfewRecordSize  = 9
	curfewMinRecord   = 5
	curfewActive      = 0x03
	movementDirection = 16
	movementChip      = 18
)

// decodeSingle decodes one sub-message. It never fails: anything it does not
// understand becomes an UnknownRecord carrying the raw hex.
func (c *Codec) decodeSingle(ctx context.Context, dev DeviceInfo, v []byte) Record {
	if len(v) < subHeaderSize {
		return &UnknownRecord{OpTag: tag(OpUnknown), Header: Header{Opcode: byteAt(v, 0)}, Message: Hex(v)}
	}
	h := DecodeHeader(v)

	switch h.Opcode {
	case OpcodeAck:
		return &AckRecord{OpTag: tag(OpAck), Header: h, Message: HexByte(byteAt(v, 8))}

	case OpcodeQuery:
		return &QueryRecord{OpTag: tag(OpQuery), Header: h, Type: HexByte(byteAt(v, 8)), SubData: Hex(v[min(9, len(v)):])}

	case OpcodeSetTime:
		return &SetTimeRecord{OpTag: tag(OpSetTime), Header: h, Type: Hex(v[8:])}

	case OpcodeUpdateState:
		return decodeUpdateState(h, v)

	case OpcodeBattery:
		raw := Int32LE(field(v, 8, 12))
		volts := float64(raw) / 1000
		c.writeBack("battery", dev.Address, c.registry.SetBattery(ctx, dev.Address, volts))
		return &BatteryRecord{OpTag: tag(OpBattery), Header: h, Battery: formatScaled(int64(raw), 1000)}

	case OpcodeZeroOrCurfew:
		if len(v) == zeroScalesSize {
			scale := ZeroScale(v[zeroScalesSize-1])
			if !scale.Known() {
				return unknown(h, v)
			}
			return &ZeroScalesRecord{OpTag: tag(OpZeroScales), Header: h, Scale: scale.String()}
		}
		lock := CatFlapLockState(byteAt(v, curfewLockOffset))
		if !lock.Known() {
			return unknown(h, v)
		}
		return &CurfewLockStateRecord{OpTag: tag(OpCurfewLockState), Header: h, LockState: lock.String()}

	case OpcodeTag:
		return c.decodeTag(ctx, dev, h, v)

	case OpcodeCurfew:
		return c.decodeCurfew(ctx, dev, h, v)

	case OpcodePetMovement:
		return c.decodeMovement(ctx, dev, h, v)

	case OpcodeFeed:
		return c.decodeFeed(ctx, dev, h, v)

	case OpcodeDrinking:
		return c.decodeDrinking(ctx, dev, h, v)
	}
	return unknown(h, v)
}

func unknown(h Header, v []byte) *UnknownRecord {
	return &UnknownRecord{OpTag: tag(OpUnknown), Header: h, Message: Hex(v)}
}

func decodeUpdateState(h Header, v []byte) *UpdateStateRecord {
	r := &UpdateStateRecord{OpTag: tag(OpUpdateState), Header: h, SubType: byteAt(v, 8)}
	raw := field(v, 9, 13)
	value := Int32LE(raw)

	switch r.SubType {
	case updateTraining:
		r.SubOperation = "Training"
		r.Mode = strconv.Itoa(int(value))
	case updateLeftScale:
		r.SubOperation = "SetLeftScale"
		r.Weight = formatWeightSetting(int64(value))
	case updateRightScale:
		r.SubOperation = "SetRightScale"
		r.Weight = formatWeightSetting(int64(value))
	case updateBowlCount:
		r.SubOperation = "SetBowlCount"
		if b := BowlCount(value); b.Known() {
			r.Bowls = b.String()
		} else {
			r.Message = Hex(raw)
		}
	case updateCloseDelay:
		r.SubOperation = "SetCloseDelay"
		if d := CloseDelay(value); d.Known() {
			r.Delay = d.String()
		} else {
			r.Message = Hex(raw)
		}
	case update12:
		// Meaning unknown; seen while setting scale targets.
		r.SubOperation = "Set12"
		r.Value = strconv.Itoa(int(value))
		r.Message = Hex(raw)
	case updateCustomMode:
		names := CustomMode(value).Names()
		r.SubOperation = strings.Join(append([]string{"Custom"}, names...), "-")
		r.Value = strconv.Itoa(int(value))
	case updateZeroLeft:
		r.SubOperation = "ZeroLeft"
		r.Weight = formatWeightSetting(int64(value))
	case updateZeroRight:
		r.SubOperation = "ZeroRight"
		r.Weight = formatWeightSetting(int64(value))
	default:
		r.SubOperation = "Unrecognized"
		r.Message = Hex(v[8:])
	}
	return r
}

// decodeTag handles 0x11, which both provisions tags and sets the cat flap
// lock mode depending on the marker byte.
func (c *Codec) decodeTag(ctx context.Context, dev DeviceInfo, h Header, v []byte) Record {
	marker := byteAt(v, tagMarkerOffset)
	lock := byteAt(v, tagLockOffset)
	index := int(byteAt(v, tagIndexOffset))
	state := byteAt(v, tagStateOffset)

	if marker == tagMarkerLock && state == tagLockStateFlag {
		flap := CatFlapLockState(lock)
		if mode, ok := flap.LockState(); ok {
			c.writeBack("lock mode", dev.Address, c.registry.SetLockMode(ctx, dev.Address, mode))
		}
		return &LockStateRecord{OpTag: tag(OpLockState), Header: h, LockState: flap.String(), Lock: flap, Offset: index}
	}

	var chip ChipID
	switch marker {
	case chipTypeFDXB, chipTypeHDX:
		var err error
		chip, err = DecodeChip(field(v, 8, 15))
		if err != nil {
			return unknown(h, v)
		}
	case tagMarkerLock:
		chip = ChipID{Text: NullChip}
	default:
		return unknown(h, v)
	}

	animal, _ := c.animal(ctx, chip)
	return &TagProvisionRecord{
		OpTag:     tag(OpTagProvision),
		Header:    h,
		Chip:      chip,
		Animal:    animal,
		LockState: TagLockState(lock).String(),
		Offset:    index,
		ChipState: ChipState(state).String(),
	}
}

// decodeCurfew keeps only active windows of a 0x12 curfew list.
func (c *Codec) decodeCurfew(ctx context.Context, dev DeviceInfo, h Header, v []byte) *CurfewRecord {
	r := &CurfewRecord{OpTag: tag(OpCurfew), Header: h, Curfew: []CurfewEntry{}}
	var windows []CurfewWindow

	rest := v[min(curfewStart, len(v)):]
	for len(rest) >= curfewMinRecord {
		rec := field(rest, 0, curfewRecordSize)
		if rec[8] == curfewActive {
			start := DecodeTimestamp(rec[0:4])
			end := DecodeTimestamp(rec[4:8])
			r.Curfew = append(r.Curfew, CurfewEntry{Start: start.String(), End: end.String(), State: int(rec[8])})
			windows = append(windows, CurfewWindow{
				Start: clockText([]byte{byte(start.Hour), byte(start.Minute)}),
				End:   clockText([]byte{byte(end.Hour), byte(end.Minute)}),
			})
		}
		rest = rest[min(curfewRecordSize, len(rest)):]
	}

	c.writeBack("curfew", dev.Address, c.registry.SetCurfew(ctx, dev.Address, len(windows) > 0, windows))
	return r
}

// decodeMovement handles 0x13, an animal at the cat flap.
func (c *Codec) decodeMovement(ctx context.Context, dev DeviceInfo, h Header, v []byte) Record {
	code := CatFlapDirection(uint16(byteAt(v, movementDirection))<<8 | uint16(byteAt(v, movementDirection+1)))
	chip, err := DecodeChip(field(v, movementChip, movementChip+chipFieldSize))
	if err != nil {
		return unknown(h, v)
	}
	animal, known := c.animal(ctx, chip)

	if known {
		var loc PetLocation
		switch code {
		case 0x0101:
			loc = PetInside
		case 0x0000:
			loc = PetOutside
		default:
			loc = PetUnknown
		}
		if loc != PetUnknown {
			c.writeBack("pet location", dev.Address,
				c.registry.SetPetLocation(ctx, chip.Text, dev.Address, loc, h.Timestamp.Time()))
		}
	}

	return &PetMovementRecord{
		OpTag:     tag(OpPetMovement),
		Header:    h,
		Chip:      chip,
		Animal:    animal,
		Direction: code.String(),
		Code:      code,
	}
}

// decodeFeed handles 0x18, a feeder lid opening or closing.
func (c *Codec) decodeFeed(ctx context.Context, dev DeviceInfo, h Header, v []byte) Record {
	action := FeederAction(byteAt(v, 15))
	if !action.Known() {
		return unknown(h, v)
	}

	r := &FeedRecord{
		OpTag:  tag(OpFeed),
		Header: h,
		Action: action.String(),
		Code:   action,
		Time:   strconv.Itoa(int(byteAt(v, 16))),
	}

	known := false
	if action.Manual() {
		r.Chip = ChipID{Text: NullChip}
		r.Animal = AnimalManual
	} else {
		chip, err := DecodeChip(field(v, 8, 15))
		if err != nil {
			return unknown(h, v)
		}
		r.Chip = chip
		r.Animal, known = c.animal(ctx, chip)
	}

	leftFrom := int64(Int32LE(field(v, 19, 23)))
	leftTo := int64(Int32LE(field(v, 23, 27)))
	rightFrom := int64(Int32LE(field(v, 27, 31)))
	rightTo := int64(Int32LE(field(v, 31, 35)))
	r.LeftFrom, r.LeftTo, r.LeftDelta = formatGrams(leftFrom), formatGrams(leftTo), formatGrams(leftTo-leftFrom)
	r.RightFrom, r.RightTo, r.RightDelta = formatGrams(rightFrom), formatGrams(rightTo), formatGrams(rightTo-rightFrom)

	r.BowlCount = 1
	if cfg, err := c.registry.FeederConfig(ctx, dev.Address); err == nil && cfg.BowlCount > 0 {
		r.BowlCount = cfg.BowlCount
	} else if err != nil {
		c.miss("feeder", dev.Address, err)
	}

	if action == FeederAnimalClosed && known {
		weights := []float64{float64(leftTo) / 100}
		if r.BowlCount > 1 {
			weights = append(weights, float64(rightTo)/100)
		}
		c.writeBack("bowl weights", dev.Address, c.registry.SetBowlWeights(ctx, dev.Address, weights))
		c.writeBack("feed history", dev.Address, c.registry.RecordFeed(ctx, FeedEvent{
			Device:     dev.Address,
			Chip:       r.Chip.Text,
			Animal:     r.Animal,
			At:         h.Timestamp.Time(),
			Seconds:    int(byteAt(v, 16)),
			LeftDelta:  float64(leftTo-leftFrom) / 100,
			RightDelta: float64(rightTo-rightFrom) / 100,
		}))
	}
	return r
}

// decodeDrinking handles 0x1b from the Felaqua water bowl.
func (c *Codec) decodeDrinking(ctx context.Context, dev DeviceInfo, h Header, v []byte) Record {
	action := FeederAction(byteAt(v, 8))
	if !action.Known() {
		return unknown(h, v)
	}

	from := int64(Int32LE(field(v, 12, 16)))
	to := int64(Int32LE(field(v, 16, 20)))
	r := &DrinkingRecord{
		OpTag:  tag(OpDrinking),
		Header: h,
		Action: action.String(),
		Time:   strconv.Itoa(int(Uint16LE(field(v, 9, 11)))),
		From:   formatGrams(from),
		To:     formatGrams(to),
		Delta:  formatGrams(to - from),
		Chip:   ChipID{Text: NullChip},
		Animal: AnimalEmpty,
	}
	if len(v) >= 27+chipFieldSize && !action.Manual() {
		if chip, err := DecodeChip(v[27 : 27+chipFieldSize]); err == nil {
			r.Chip = chip
			r.Animal, _ = c.animal(ctx, chip)
		}
	}

	c.writeBack("bowl weights", dev.Address, c.registry.SetBowlWeights(ctx, dev.Address, []float64{float64(to) / 100}))
	return r
}
