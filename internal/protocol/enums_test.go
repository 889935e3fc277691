package protocol

import "testing"

func TestEnumNames(t *testing.T) {
	tests := []struct {
		name  string
		value interface{ String() string }
		want  string
	}{
		{"device type", DeviceTypeCatFlap, "CatFlap"},
		{"unknown device type", DeviceType(0x42), "Unrecognized(0x42)"},
		{"lock state", LockKeepOut, "KeepOut"},
		{"cat flap lock", CatFlapUnlocked, "Unlocked"},
		{"tag lock normal", TagLockState(2), "Normal"},
		{"tag lock keepin", TagLockState(3), "KeepIn"},
		{"tag lock flap name", TagLockState(4), "Locked"},
		{"feeder action", FeederManualClosed, "Manual_Closed"},
		{"unknown feeder action", FeederAction(9), "Unrecognized(0x09)"},
		{"close delay", CloseDelay(4000), "Normal"},
		{"bowl count", BowlCount(2), "Two"},
		{"hub leds", HubLeds(0x84), "FlashDimmed"},
		{"adoption", HubAdoption(2), "Enabled"},
		{"curfew state", CurfewState(3), "STATUS"},
		{"chip state", ChipDisabled, "Disabled"},
		{"door direction", PetDoorDirection(0x61), "Inside"},
		{"door direction other", PetDoorDirection(0x99), "Other 99"},
		{"flap direction", CatFlapDirection(0x0201), "LookedIn"},
		{"zero scale", ZeroScale(3), "ZeroBoth"},
		{"locked out", LockedOutState(3), "LOCKED_IN"},
		{"pet location", PetInside, "Inside"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	if d, ok := ParseDeviceType("catflap"); !ok || d != DeviceTypeCatFlap {
		t.Errorf("ParseDeviceType(catflap) = %v, %v", d, ok)
	}
	if _, ok := ParseDeviceType("toaster"); ok {
		t.Error("ParseDeviceType(toaster) should fail")
	}
	if s, ok := ParseLockState("KEEPIN"); !ok || s != LockKeepIn {
		t.Errorf("ParseLockState(KEEPIN) = %v, %v", s, ok)
	}
	if s, ok := ParseTagLockState("normal"); !ok || s != TagLockNormal {
		t.Errorf("ParseTagLockState(normal) = %v, %v", s, ok)
	}
}

func TestCatFlapLockMapping(t *testing.T) {
	tests := []struct {
		mode LockState
		wire byte
	}{
		{LockUnlocked, 0x06},
		{LockKeepIn, 0x03},
		{LockKeepOut, 0x05},
		{LockLocked, 0x04},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			flap, ok := tt.mode.CatFlapLock()
			if !ok || byte(flap) != tt.wire {
				t.Errorf("CatFlapLock() = %02x, %v, want %02x", byte(flap), ok, tt.wire)
			}
			back, ok := CatFlapLockStateFromWire(tt.wire).LockState()
			if !ok || back != tt.mode {
				t.Errorf("LockState() = %v, %v, want %v", back, ok, tt.mode)
			}
		})
	}

	if _, ok := LockCurfew.CatFlapLock(); ok {
		t.Error("Curfew has no cat flap lock byte")
	}
}

func TestFeederActionManual(t *testing.T) {
	for a := FeederAction(0); a <= 9; a++ {
		want := a >= 4 && a <= 8
		if got := a.Manual(); got != want {
			t.Errorf("FeederAction(%d).Manual() = %v, want %v", a, got, want)
		}
	}
}

func TestCustomModeNames(t *testing.T) {
	if got := CustomMode(0x180).Names(); len(got) != 2 || got[0] != "GeniusCat" || got[1] != "Intruder" {
		t.Errorf("Names() = %v", got)
	}
	if got := CustomMode(0).Names(); len(got) != 0 {
		t.Errorf("Names() = %v, want none", got)
	}
}
