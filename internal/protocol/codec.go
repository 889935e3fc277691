package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"go.uber.org/zap"
)

// DefaultTopicPrefix is the MQTT topic the local hub broker uses.
const DefaultTopicPrefix = "pethublocal/messages"

// Names the decoder reports when an animal cannot be resolved
const (
	AnimalEmpty   = "Empty"
	AnimalManual  = "Manual"
	AnimalUnknown = "Unknown"
)

// CodecConfig configures a Codec.
type CodecConfig struct {
	// Verbose adds per-frame hex dumps at debug level.
	Verbose bool
	// Clock supplies "now" for command timestamps. Defaults to time.Now.
	Clock func() time.Time
	// Key is the XOR key for radio frames. MQTT messages do not need it.
	Key Key
	// TopicPrefix defaults to DefaultTopicPrefix.
	TopicPrefix string
	// Operations defaults to DefaultOperations().
	Operations *OperationTable
}

// Codec decodes and encodes hub protocol messages.
type Codec struct {
	cfg      CodecConfig
	registry Registry
	counters CounterStore
}

// NewCodec creates a codec. A nil registry behaves as an empty one and a nil
// counter store is replaced by in-memory counters.
func NewCodec(cfg CodecConfig, registry Registry, counters CounterStore) *Codec {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Operations == nil {
		cfg.Operations = DefaultOperations()
	}
	if registry == nil {
		registry = emptyRegistry{}
	}
	if counters == nil {
		counters = NewMemoryCounters()
	}
	return &Codec{cfg: cfg, registry: registry, counters: counters}
}

// Operations returns the command table the codec encodes from.
func (c *Codec) Operations() *OperationTable {
	return c.cfg.Operations
}

// device resolves an address, falling back to the bare address as the name.
func (c *Codec) device(ctx context.Context, address string) DeviceInfo {
	info, err := c.registry.Device(ctx, address)
	if err != nil {
		c.miss("device", address, err)
		return DeviceInfo{Address: address, Name: address}
	}
	if info.Address == "" {
		info.Address = address
	}
	if info.Name == "" {
		info.Name = address
	}
	return info
}

// animal resolves a chip to a pet name. Unknown chips keep their chip text
// so that newly seen animals remain identifiable.
func (c *Codec) animal(ctx context.Context, chip ChipID) (string, bool) {
	if chip.IsNull() {
		return AnimalEmpty, false
	}
	name, err := c.registry.PetByChip(ctx, chip.Text)
	if err != nil {
		c.miss("pet", chip.Text, err)
		return chip.Text, false
	}
	return name, true
}

func (c *Codec) miss(kind, key string, err error) {
	if errors.Is(err, ErrRegistryMiss) {
		logging.Debug("Registry miss", zap.String("kind", kind), zap.String("key", key))
		return
	}
	logging.Warn("Registry lookup failed", zap.String("kind", kind), zap.String("key", key), zap.Error(err))
}

// writeBack logs a failed registry update. Decoding never fails because of
// one.
func (c *Codec) writeBack(what, address string, err error) {
	if err != nil {
		logging.Warn("Registry write-back failed",
			zap.String("update", what),
			zap.String("device", address),
			zap.Error(err),
		)
	}
}

// recordReceive stores the header counter of a sub-message a device sent.
// Commands and the hub's own messages carry counters the hub assigned.
func (c *Codec) recordReceive(ctx context.Context, dev DeviceInfo, msg *DecodedMessage, sub []byte) {
	if msg.Kind != KindStatus || isHub(dev) || len(sub) < subHeaderSize {
		return
	}
	counter := DecodeHeader(sub).Counter
	c.writeBack("receive counter", dev.Address, c.registry.SetReceiveCounter(ctx, dev.Address, counter))
}

// emptyRegistry misses every lookup and discards every write.
type emptyRegistry struct{}

func (emptyRegistry) Device(_ context.Context, address string) (DeviceInfo, error) {
	return DeviceInfo{}, newError(ErrTypeRegistryMiss, "device %s", address)
}

func (emptyRegistry) PetByChip(_ context.Context, chip string) (string, error) {
	return "", newError(ErrTypeRegistryMiss, "chip %s", chip)
}

func (emptyRegistry) TagByIndex(_ context.Context, address string, index int) (string, error) {
	return "", newError(ErrTypeRegistryMiss, "tag %d on %s", index, address)
}

func (emptyRegistry) FeederConfig(_ context.Context, address string) (FeederConfig, error) {
	return FeederConfig{}, newError(ErrTypeRegistryMiss, "feeder %s", address)
}

func (emptyRegistry) DoorLockMode(_ context.Context, address string) (LockState, error) {
	return 0, newError(ErrTypeRegistryMiss, "door %s", address)
}

func (emptyRegistry) SetBattery(context.Context, string, float64) error       { return nil }
func (emptyRegistry) SetLockMode(context.Context, string, LockState) error    { return nil }
func (emptyRegistry) SetLedMode(context.Context, string, HubLeds) error       { return nil }
func (emptyRegistry) SetAdoption(context.Context, string, HubAdoption) error  { return nil }
func (emptyRegistry) SetBowlWeights(context.Context, string, []float64) error { return nil }
func (emptyRegistry) SetReceiveCounter(context.Context, string, uint16) error { return nil }
func (emptyRegistry) RecordFeed(context.Context, FeedEvent) error             { return nil }

func (emptyRegistry) SetCurfew(context.Context, string, bool, []CurfewWindow) error {
	return nil
}

func (emptyRegistry) SetPetLocation(context.Context, string, string, PetLocation, time.Time) error {
	return nil
}
