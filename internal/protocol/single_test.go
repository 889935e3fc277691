package protocol

import (
	"context"
	"strconv"
	"strings"
	"testing"
)

const ts = "b8 c8 42 54" // 2021-01-01 12:34:56

// decodeOne decodes a status message for address and returns its only record.
func decodeOne(t *testing.T, c *Codec, address, kind, hex string) Record {
	t.Helper()
	msg, err := c.DecodeMQTT(context.Background(), DefaultTopicPrefix+"/"+address, mqttMessage(kind, hex))
	if err != nil {
		t.Fatalf("DecodeMQTT() error = %v", err)
	}
	if len(msg.Records) != 1 {
		t.Fatalf("DecodeMQTT() returned %d records, want 1: %v", len(msg.Records), msg)
	}
	return msg.Records[0]
}

func TestDecodeBattery(t *testing.T) {
	reg := newFakeRegistry()
	c := newTestCodec(reg)

	tests := []struct {
		name    string
		address string
		kind    string
		hex     string
		want    string
		counter uint16
	}{
		{"feeder multi", testFeeder, "126", "18 0c 00 05 00 " + ts + " ae 17 00 00 00 00 00 00 00 00 00 00 00 00 00 00", "6.062", 5},
		{"cat flap single", testCatFlap, "127", "0c 00 05 00 " + ts + " 04 17 00 00", "5.892", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := decodeOne(t, c, tt.address, tt.kind, tt.hex).(*BatteryRecord)
			if !ok {
				t.Fatal("record is not a BatteryRecord")
			}
			if rec.Battery != tt.want {
				t.Errorf("Battery = %v, want %v", rec.Battery, tt.want)
			}
			if rec.Counter != tt.counter {
				t.Errorf("Counter = %v, want %v", rec.Counter, tt.counter)
			}
			if got := rec.Timestamp.String(); got != "2021-01-01 12:34:56" {
				t.Errorf("Timestamp = %v, want 2021-01-01 12:34:56", got)
			}
			if got := strconv.FormatFloat(reg.batteries[tt.address], 'f', -1, 64); got != tt.want {
				t.Errorf("registry battery = %v, want %v", reg.batteries[tt.address], tt.want)
			}
		})
	}
}

func TestDecodeAckQuerySetTime(t *testing.T) {
	c := newTestCodec(nil)

	ack, ok := decodeOne(t, c, testFeeder, "127", "00 00 0c 00 "+ts+" 0b 00 00").(*AckRecord)
	if !ok {
		t.Fatal("record is not an AckRecord")
	}
	if ack.Message != "0b" || ack.Counter != 12 {
		t.Errorf("Ack = %+v, want Message 0b counter 12", ack)
	}

	query, ok := decodeOne(t, c, testFeeder, "127", "01 00 01 01 "+ts+" 09 00 ff").(*QueryRecord)
	if !ok {
		t.Fatal("record is not a QueryRecord")
	}
	if query.Type != "09" || query.SubData != "00ff" || query.Counter != 257 {
		t.Errorf("Query = %+v, want Type 09 SubData 00ff counter 257", query)
	}

	set, ok := decodeOne(t, c, testFeeder, "127", "07 00 01 00 "+ts+" 00 00 00 00 07").(*SetTimeRecord)
	if !ok {
		t.Fatal("record is not a SetTimeRecord")
	}
	if set.Type != "0000000007" {
		t.Errorf("SetTime Type = %v, want 0000000007", set.Type)
	}
}

func TestDecodeUpdateState(t *testing.T) {
	c := newTestCodec(nil)

	tests := []struct {
		name   string
		value  string
		subop  string
		check  func(*UpdateStateRecord) string
		expect string
	}{
		{"left scale", "0a e8 03 00 00", "SetLeftScale", func(r *UpdateStateRecord) string { return r.Weight }, "10"},
		{"right scale", "0b c4 09 00 00", "SetRightScale", func(r *UpdateStateRecord) string { return r.Weight }, "25"},
		{"one bowl", "0c 01 00 00 00", "SetBowlCount", func(r *UpdateStateRecord) string { return r.Bowls }, "One"},
		{"two bowls", "0c 02 00 00 00", "SetBowlCount", func(r *UpdateStateRecord) string { return r.Bowls }, "Two"},
		{"fast delay", "0d 00 00 00 00", "SetCloseDelay", func(r *UpdateStateRecord) string { return r.Delay }, "Fast"},
		{"normal delay", "0d a0 0f 00 00", "SetCloseDelay", func(r *UpdateStateRecord) string { return r.Delay }, "Normal"},
		{"slow delay", "0d 20 4e 00 00", "SetCloseDelay", func(r *UpdateStateRecord) string { return r.Delay }, "Slow"},
		{"odd delay", "0d 01 00 00 00", "SetCloseDelay", func(r *UpdateStateRecord) string { return r.Message }, "01000000"},
		{"set12", "12 f4 01 00 00", "Set12", func(r *UpdateStateRecord) string { return r.Value }, "500"},
		{"intruder", "14 00 01 00 00", "Custom-Intruder", func(r *UpdateStateRecord) string { return r.Value }, "256"},
		{"genius cat", "14 80 00 00 00", "Custom-GeniusCat", func(r *UpdateStateRecord) string { return r.Value }, "128"},
		{"training", "05 02 00 00 00", "Training", func(r *UpdateStateRecord) string { return r.Mode }, "2"},
		{"unrecognized", "19 01 02 03 04", "Unrecognized", func(r *UpdateStateRecord) string { return r.Message }, "1901020304"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := decodeOne(t, c, testFeeder, "127", "09 00 12 01 "+ts+" "+tt.value).(*UpdateStateRecord)
			if !ok {
				t.Fatal("record is not an UpdateStateRecord")
			}
			if rec.Counter != 274 {
				t.Errorf("Counter = %v, want 274", rec.Counter)
			}
			if rec.SubOperation != tt.subop {
				t.Errorf("SubOperation = %v, want %v", rec.SubOperation, tt.subop)
			}
			if got := tt.check(rec); got != tt.expect {
				t.Errorf("value = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestDecodeZeroScalesAndCurfewLock(t *testing.T) {
	c := newTestCodec(nil)

	for wire, want := range map[string]string{"01": "ZeroLeft", "02": "ZeroRight", "03": "ZeroBoth"} {
		rec, ok := decodeOne(t, c, testFeeder, "127", "0d 00 12 00 "+ts+" 00 19 00 00 00 03 00 00 00 00 01 "+wire).(*ZeroScalesRecord)
		if !ok {
			t.Fatalf("%s: record is not a ZeroScalesRecord", wire)
		}
		if rec.Scale != want {
			t.Errorf("Scale = %v, want %v", rec.Scale, want)
		}
	}

	padding := strings.Repeat(" 00", 12)
	for wire, want := range map[string]string{"03": "KeepIn", "04": "Locked", "05": "KeepOut", "06": "Unlocked"} {
		hex := "1e 0d 00 01 00 " + ts + " ff ff ff ff" + padding + " fc 00 02 00 06 " + wire
		rec, ok := decodeOne(t, c, testCatFlap, "126", hex).(*CurfewLockStateRecord)
		if !ok {
			t.Fatalf("%s: record is not a CurfewLockStateRecord", wire)
		}
		if rec.LockState != want {
			t.Errorf("LockState = %v, want %v", rec.LockState, want)
		}
	}
}

func TestDecodeTagProvision(t *testing.T) {
	reg := newFakeRegistry().
		addPet("900.000123456788", "Cat").
		addPet("0123456789", "HDX_Tag")
	c := newTestCodec(reg)

	tests := []struct {
		name      string
		address   string
		hex       string
		animal    string
		lockState string
		offset    int
		chipState string
	}{
		{"feeder fdx-b", testFeeder, "11 00 0a 00 " + ts + " 14 cd 5b 07 00 e1 01 02 01 00", "Cat", "Normal", 1, "Enabled"},
		{"feeder hdx", testFeeder, "11 00 0a 00 " + ts + " 01 23 45 67 89 00 03 02 00 00", "HDX_Tag", "Normal", 0, "Enabled"},
		{"cat flap unknown chip", testCatFlap, "11 00 01 00 " + ts + " 16 cd 5b 07 00 e1 01 03 01 00", "900.000123456790", "KeepIn", 1, "Enabled"},
		{"cat flap disabled", testCatFlap, "11 00 01 00 " + ts + " 18 cd 5b 07 00 e1 01 02 03 01", "900.000123456792", "Normal", 3, "Disabled"},
		{"empty slot", testCatFlap, "11 00 01 00 " + ts + " 00 00 00 00 00 00 07 06 04 00", AnimalEmpty, "Unlocked", 4, "Enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := decodeOne(t, c, tt.address, "127", tt.hex).(*TagProvisionRecord)
			if !ok {
				t.Fatal("record is not a TagProvisionRecord")
			}
			if rec.Animal != tt.animal {
				t.Errorf("Animal = %v, want %v", rec.Animal, tt.animal)
			}
			if rec.LockState != tt.lockState {
				t.Errorf("LockState = %v, want %v", rec.LockState, tt.lockState)
			}
			if rec.Offset != tt.offset {
				t.Errorf("Offset = %v, want %v", rec.Offset, tt.offset)
			}
			if rec.ChipState != tt.chipState {
				t.Errorf("ChipState = %v, want %v", rec.ChipState, tt.chipState)
			}
		})
	}
}

func TestDecodeCatFlapLockState(t *testing.T) {
	tests := []struct {
		wire string
		want string
		mode LockState
	}{
		{"03", "KeepIn", LockKeepIn},
		{"04", "Locked", LockLocked},
		{"05", "KeepOut", LockKeepOut},
		{"06", "Unlocked", LockUnlocked},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			reg := newFakeRegistry()
			c := newTestCodec(reg)
			rec, ok := decodeOne(t, c, testCatFlap, "127", "11 00 01 00 "+ts+" 00 00 00 00 00 00 07 "+tt.wire+" 00 02").(*LockStateRecord)
			if !ok {
				t.Fatal("record is not a LockStateRecord")
			}
			if rec.LockState != tt.want || rec.Offset != 0 {
				t.Errorf("LockState = %v offset %d, want %v offset 0", rec.LockState, rec.Offset, tt.want)
			}
			if reg.locks[testCatFlap] != tt.mode {
				t.Errorf("registry lock mode = %v, want %v", reg.locks[testCatFlap], tt.mode)
			}
		})
	}
}

func TestDecodeCurfew(t *testing.T) {
	reg := newFakeRegistry()
	c := newTestCodec(reg)
	empty := " 00 00 42 00 00 00 42 00 06"

	hex := "12 00 01 00 " + ts + " 00 00 00 00 00 00 07 00" +
		" 80 07 42 54 80 17 42 54 03" +
		" c0 43 42 54 80 50 42 54 03" + empty + empty
	rec, ok := decodeOne(t, c, testCatFlap, "127", hex).(*CurfewRecord)
	if !ok {
		t.Fatal("record is not a CurfewRecord")
	}
	want := []CurfewEntry{
		{Start: "2021-01-01 00:30:00", End: "2021-01-01 01:30:00", State: 3},
		{Start: "2021-01-01 04:15:00", End: "2021-01-01 05:02:00", State: 3},
	}
	if len(rec.Curfew) != len(want) {
		t.Fatalf("len(Curfew) = %d, want %d", len(rec.Curfew), len(want))
	}
	for i := range want {
		if rec.Curfew[i] != want[i] {
			t.Errorf("Curfew[%d] = %+v, want %+v", i, rec.Curfew[i], want[i])
		}
	}
	windows := reg.curfews[testCatFlap]
	if len(windows) != 2 || windows[0] != (CurfewWindow{Start: "00:30", End: "01:30"}) || windows[1] != (CurfewWindow{Start: "04:15", End: "05:02"}) {
		t.Errorf("registry curfew = %+v", windows)
	}

	cleared := "12 00 02 00 " + ts + " 00 00 00 00 00 00 07 00" + empty + empty + empty + empty
	rec, ok = decodeOne(t, c, testCatFlap, "127", cleared).(*CurfewRecord)
	if !ok {
		t.Fatal("record is not a CurfewRecord")
	}
	if len(rec.Curfew) != 0 {
		t.Errorf("len(Curfew) = %d, want 0", len(rec.Curfew))
	}
	if len(reg.curfews[testCatFlap]) != 0 {
		t.Errorf("registry curfew = %+v, want cleared", reg.curfews[testCatFlap])
	}
}

func TestDecodePetMovement(t *testing.T) {
	const chip = "14 cd 5b 07 00 e1 01"

	tests := []struct {
		name      string
		direction string
		chip      string
		want      string
		animal    string
		location  PetLocation
		written   bool
	}{
		{"out", "00 00", chip, "Out", "Cat", PetOutside, true},
		{"in", "01 01", chip, "In", "Cat", PetInside, true},
		{"looked out", "02 00", chip, "LookedOut", "Cat", 0, false},
		{"looked in", "02 01", chip, "LookedIn", "Cat", 0, false},
		{"status 2", "02 02", chip, "Status2", "Cat", 0, false},
		{"status 1", "01 02", chip, "Status1", "Cat", 0, false},
		{"no chip", "02 02", "00 00 00 00 00 00 00", "Status2", AnimalEmpty, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newFakeRegistry().addPet("900.000123456788", "Cat")
			c := newTestCodec(reg)
			hex := "1e 13 00 01 01 " + ts + " 00 00 00 00 02 16 00 00 " + tt.direction + " " + tt.chip + " 00 00 00 00 00"
			rec, ok := decodeOne(t, c, testCatFlap, "126", hex).(*PetMovementRecord)
			if !ok {
				t.Fatal("record is not a PetMovementRecord")
			}
			if rec.Direction != tt.want {
				t.Errorf("Direction = %v, want %v", rec.Direction, tt.want)
			}
			if rec.Animal != tt.animal {
				t.Errorf("Animal = %v, want %v", rec.Animal, tt.animal)
			}
			loc, written := reg.locations["900.000123456788"]
			if written != tt.written || (written && loc != tt.location) {
				t.Errorf("registry location = %v (written %v), want %v (written %v)", loc, written, tt.location, tt.written)
			}
		})
	}
}

// feedHex builds a 0x18 feed sub-message (without the length byte).
func feedHex(counter uint16, chip string, action byte, secs byte, leftFrom, leftTo, rightFrom, rightTo int32) string {
	weight := func(v int32) string { return HexSpaced(PutUint32LE(uint32(v))) }
	return strings.Join([]string{
		"18 00", HexSpaced(PutUint16LE(counter)), ts,
		chip, HexByte(action), HexByte(secs), "00 00",
		weight(leftFrom), weight(leftTo), weight(rightFrom), weight(rightTo),
	}, " ")
}

func TestDecodeFeed(t *testing.T) {
	const chip = "14 cd 5b 07 00 e1 01"

	tests := []struct {
		name   string
		hex    string
		action string
		animal string
		secs   string
		left   [3]string
		right  [3]string
	}{
		{
			name:   "animal open",
			hex:    "18 00 c9 00 " + ts + " " + chip + " 00 00 00 00 79 fb ff ff 00 00 00 00 d0 00 00 00 00 00 00 00",
			action: "Animal_Open", animal: "Cat", secs: "0",
			left:  [3]string{"-11.59", "0.0", "11.59"},
			right: [3]string{"2.08", "0.0", "-2.08"},
		},
		{
			name:   "animal closed",
			hex:    feedHex(202, chip, 1, 11, -1159, -1140, 208, 209),
			action: "Animal_Closed", animal: "Cat", secs: "11",
			left:  [3]string{"-11.59", "-11.4", "0.19"},
			right: [3]string{"2.08", "2.09", "0.01"},
		},
		{
			name:   "manual open",
			hex:    feedHex(203, "00 00 00 00 00 00 00", 4, 0, 3769, 3773, 96, 83),
			action: "Manual_Open", animal: AnimalManual, secs: "0",
			left:  [3]string{"37.69", "37.73", "0.04"},
			right: [3]string{"0.96", "0.83", "-0.13"},
		},
		{
			name:   "manual closed",
			hex:    feedHex(204, "00 00 00 00 00 00 00", 5, 82, 3769, 58, 96, 6867),
			action: "Manual_Closed", animal: AnimalManual, secs: "82",
			left:  [3]string{"37.69", "0.58", "-37.11"},
			right: [3]string{"0.96", "68.67", "67.71"},
		},
		{
			name:   "zero both",
			hex:    feedHex(205, "00 00 00 00 00 00 00", 6, 0, 0, -1328, 0, -175),
			action: "Zero_Both", animal: AnimalManual, secs: "0",
			left:  [3]string{"0.0", "-13.28", "-13.28"},
			right: [3]string{"0.0", "-1.75", "-1.75"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newFakeRegistry().addPet("900.000123456788", "Cat")
			reg.feeders[testFeeder] = FeederConfig{BowlCount: 2}
			c := newTestCodec(reg)

			rec, ok := decodeOne(t, c, testFeeder, "127", tt.hex).(*FeedRecord)
			if !ok {
				t.Fatal("record is not a FeedRecord")
			}
			if rec.Action != tt.action || rec.Animal != tt.animal || rec.Time != tt.secs {
				t.Errorf("Feed = %s/%s/%s, want %s/%s/%s", rec.Action, rec.Animal, rec.Time, tt.action, tt.animal, tt.secs)
			}
			if got := [3]string{rec.LeftFrom, rec.LeftTo, rec.LeftDelta}; got != tt.left {
				t.Errorf("left = %v, want %v", got, tt.left)
			}
			if got := [3]string{rec.RightFrom, rec.RightTo, rec.RightDelta}; got != tt.right {
				t.Errorf("right = %v, want %v", got, tt.right)
			}
			if rec.BowlCount != 2 {
				t.Errorf("BowlCount = %d, want 2", rec.BowlCount)
			}
		})
	}
}

func TestDecodeFeedWritesHistory(t *testing.T) {
	reg := newFakeRegistry().addPet("900.000123456788", "Cat")
	c := newTestCodec(reg)

	decodeOne(t, c, testFeeder, "127", feedHex(202, "14 cd 5b 07 00 e1 01", 1, 11, -1159, -1140, 208, 209))

	if len(reg.feeds) != 1 {
		t.Fatalf("recorded %d feeds, want 1", len(reg.feeds))
	}
	if reg.feeds[0].Animal != "Cat" || reg.feeds[0].Seconds != 11 {
		t.Errorf("feed = %+v", reg.feeds[0])
	}
	// No feeder config: one bowl.
	if w := reg.bowls[testFeeder]; len(w) != 1 || w[0] != -11.4 {
		t.Errorf("bowl weights = %v, want [-11.4]", w)
	}
}

func TestDecodeFeedUnknownAction(t *testing.T) {
	c := newTestCodec(nil)
	rec := decodeOne(t, c, testFeeder, "127", feedHex(1, "14 cd 5b 07 00 e1 01", 0x0f, 0, 0, 0, 0, 0))
	if rec.Op() != OpUnknown {
		t.Errorf("Op() = %v, want %v", rec.Op(), OpUnknown)
	}
	if u := rec.(*UnknownRecord); !strings.HasPrefix(u.Message, "18000100") {
		t.Errorf("Message = %v, want raw hex", u.Message)
	}
}

func TestDecodeDrinking(t *testing.T) {
	reg := newFakeRegistry().addPet("900.000123456788", "Cat")
	c := newTestCodec(reg)

	hex := "1b 00 07 00 " + ts + " 01 0c 00 00 " +
		HexSpaced(PutUint32LE(25000)) + " " + HexSpaced(PutUint32LE(24250)) +
		" 00 00 00 00 00 00 00 " + "14 cd 5b 07 00 e1 01"
	rec, ok := decodeOne(t, c, testFelaqua, "127", hex).(*DrinkingRecord)
	if !ok {
		t.Fatal("record is not a DrinkingRecord")
	}
	if rec.Action != "Animal_Closed" || rec.Time != "12" {
		t.Errorf("Drinking = %s/%s, want Animal_Closed/12", rec.Action, rec.Time)
	}
	if rec.From != "250.0" || rec.To != "242.5" || rec.Delta != "-7.5" {
		t.Errorf("weights = %s -> %s (%s)", rec.From, rec.To, rec.Delta)
	}
	if rec.Animal != "Cat" {
		t.Errorf("Animal = %v, want Cat", rec.Animal)
	}
	if w := reg.bowls[testFelaqua]; len(w) != 1 || w[0] != 242.5 {
		t.Errorf("bowl weights = %v, want [242.5]", w)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	c := newTestCodec(nil)
	rec := decodeOne(t, c, testFeeder, "127", "42 00 01 00 "+ts+" aa bb")
	u, ok := rec.(*UnknownRecord)
	if !ok {
		t.Fatal("record is not an UnknownRecord")
	}
	if u.Message != "42000100b8c84254aabb" {
		t.Errorf("Message = %v", u.Message)
	}

	short := decodeOne(t, c, testFeeder, "127", "0c 00 01")
	if short.Op() != OpUnknown {
		t.Errorf("short sub-message Op() = %v, want Unknown", short.Op())
	}
}
