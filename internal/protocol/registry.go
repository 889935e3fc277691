package protocol

import (
	"context"
	"time"
)

// DeviceInfo is what the codec needs to know about a device.
type DeviceInfo struct {
	Address string
	Name    string
	Type    DeviceType
}

// FeederConfig is the stored configuration of a feeder.
type FeederConfig struct {
	BowlCount  int
	CloseDelay CloseDelay
	Targets    []int // target weight per bowl, grams
}

// CurfewWindow is one lock / unlock pair in "HH:MM" form.
type CurfewWindow struct {
	Start string
	End   string
}

// FeedEvent is one completed animal feed, stored as feeding history.
type FeedEvent struct {
	Device     string
	Chip       string
	Animal     string
	At         time.Time
	Seconds    int
	LeftDelta  float64
	RightDelta float64
}

// Registry is the device and pet store consulted while decoding and
// encoding. Lookups that find nothing return an error matching
// ErrRegistryMiss. Every write must be idempotent under retry.
type Registry interface {
	Device(ctx context.Context, address string) (DeviceInfo, error)
	PetByChip(ctx context.Context, chip string) (string, error)
	TagByIndex(ctx context.Context, address string, index int) (string, error)
	FeederConfig(ctx context.Context, address string) (FeederConfig, error)
	DoorLockMode(ctx context.Context, address string) (LockState, error)

	SetBattery(ctx context.Context, address string, volts float64) error
	SetLockMode(ctx context.Context, address string, mode LockState) error
	SetLedMode(ctx context.Context, address string, mode HubLeds) error
	SetAdoption(ctx context.Context, address string, mode HubAdoption) error
	SetCurfew(ctx context.Context, address string, enabled bool, windows []CurfewWindow) error
	SetPetLocation(ctx context.Context, chip, address string, location PetLocation, at time.Time) error
	SetBowlWeights(ctx context.Context, address string, grams []float64) error
	SetReceiveCounter(ctx context.Context, address string, counter uint16) error
	RecordFeed(ctx context.Context, event FeedEvent) error
}
