package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
)

// Operation names the kind of a decoded record. Every record carries one, so
// callers can always branch on it even when the remaining fields are empty.
type Operation string

// Sub-message operations
const (
	OpAck             Operation = "Ack"
	OpQuery           Operation = "Query"
	OpSetTime         Operation = "SetTime"
	OpUpdateState     Operation = "UpdateState"
	OpBattery         Operation = "Battery"
	OpTagProvision    Operation = "TagProvision"
	OpLockState       Operation = "LockState"
	OpCurfewLockState Operation = "CurfewLockState"
	OpCurfew          Operation = "Curfew"
	OpPetMovement     Operation = "PetMovement"
	OpFeed            Operation = "Feed"
	OpDrinking        Operation = "Drinking"
	OpZeroScales      Operation = "ZeroScales"
	OpUnknown         Operation = "Unknown"
)

// Register status operations
const (
	OpAdoption       Operation = "Adoption"
	OpLedMode        Operation = "LedMode"
	OpBatteryAndTime Operation = "BatteryandTime"
	OpLockedOutState Operation = "LockedOutState"
	OpChipCount      Operation = "ProvChipCount"
	OpProvChip       Operation = "ProvChip"
	OpOther          Operation = "Other"
)

// Hub envelope operations
const (
	OpBoot   Operation = "Boot"
	OpUptime Operation = "Uptime"
	OpDump   Operation = "Dump"
	OpEight  Operation = "8"
	OpError  Operation = "ERROR"
)

// Record is one decoded sub-message or register report.
type Record interface {
	Op() Operation
	String() string
}

// OpTag carries the operation name of a record.
type OpTag struct {
	Operation Operation `json:"Operation"`
}

func (t OpTag) Op() Operation { return t.Operation }

func tag(op Operation) OpTag { return OpTag{Operation: op} }

// Header is the fixed prefix of every feeder / cat flap sub-message.
type Header struct {
	Opcode    byte            `json:"msg"`
	Counter   uint16          `json:"counter"`
	Timestamp DeviceTimestamp `json:"frametimestamp"`
}

// DecodeHeader reads the opcode, counter and timestamp of a sub-message.
func DecodeHeader(b []byte) Header {
	return Header{
		Opcode:    byteAt(b, 0),
		Counter:   Uint16LE(field(b, 2, 4)),
		Timestamp: DecodeTimestamp(field(b, 4, 8)),
	}
}

func (h Header) String() string {
	return fmt.Sprintf("msg=%s, counter=%d, ts=%s", HexByte(h.Opcode), h.Counter, h.Timestamp)
}

// AckRecord (opcode 0x00) acknowledges the sub-message type in Message.
type AckRecord struct {
	OpTag
	Header
	Message string `json:"Message"`
}

func (r *AckRecord) String() string {
	return fmt.Sprintf("Ack{%s, ack=%s}", r.Header, r.Message)
}

// QueryRecord (opcode 0x01) requests the data named by Type.
type QueryRecord struct {
	OpTag
	Header
	Type    string `json:"Type"`
	SubData string `json:"SubData"`
}

func (r *QueryRecord) String() string {
	return fmt.Sprintf("Query{%s, type=%s, subdata=%s}", r.Header, r.Type, r.SubData)
}

// SetTimeRecord (opcode 0x07) carries the hub's time sync payload.
type SetTimeRecord struct {
	OpTag
	Header
	Type string `json:"Type"`
}

func (r *SetTimeRecord) String() string {
	return fmt.Sprintf("SetTime{%s, type=%s}", r.Header, r.Type)
}

// UpdateStateRecord (opcode 0x09) changes one feeder setting. Only the field
// matching SubOperation is populated; Message keeps the raw value bytes for
// sub-types that are not understood.
type UpdateStateRecord struct {
	OpTag
	Header
	SubType      byte   `json:"-"`
	SubOperation string `json:"SubOperation"`
	Mode         string `json:"Mode,omitempty"`
	Weight       string `json:"Weight,omitempty"`
	Bowls        string `json:"Bowls,omitempty"`
	Delay        string `json:"Delay,omitempty"`
	Value        string `json:"Value,omitempty"`
	Message      string `json:"Message,omitempty"`
}

func (r *UpdateStateRecord) String() string {
	parts := []string{r.Header.String(), "subop=" + r.SubOperation}
	for _, kv := range [][2]string{
		{"mode", r.Mode}, {"weight", r.Weight}, {"bowls", r.Bowls},
		{"delay", r.Delay}, {"value", r.Value}, {"raw", r.Message},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return "UpdateState{" + strings.Join(parts, ", ") + "}"
}

// BatteryRecord (opcode 0x0c) reports the battery voltage.
type BatteryRecord struct {
	OpTag
	Header
	Battery string `json:"Battery"`
}

func (r *BatteryRecord) String() string {
	return fmt.Sprintf("Battery{%s, volts=%s}", r.Header, r.Battery)
}

// TagProvisionRecord (opcode 0x11) describes one provisioned tag slot.
type TagProvisionRecord struct {
	OpTag
	Header
	Chip      ChipID `json:"-"`
	Animal    string `json:"Animal"`
	LockState string `json:"LockState"`
	Offset    int    `json:"Offset"`
	ChipState string `json:"ChipState"`
}

func (r *TagProvisionRecord) String() string {
	return fmt.Sprintf("TagProvision{%s, offset=%d, animal=%s, lock=%s, state=%s}",
		r.Header, r.Offset, r.Animal, r.LockState, r.ChipState)
}

// LockStateRecord (opcode 0x11, marker 0x07) sets the cat flap lock mode.
type LockStateRecord struct {
	OpTag
	Header
	LockState string           `json:"LockState"`
	Lock      CatFlapLockState `json:"-"`
	Offset    int              `json:"Offset"`
}

func (r *LockStateRecord) String() string {
	return fmt.Sprintf("LockState{%s, lock=%s}", r.Header, r.LockState)
}

// CurfewLockStateRecord (opcode 0x0d, long form) reports the cat flap lock
// mode while a curfew is configured.
type CurfewLockStateRecord struct {
	OpTag
	Header
	LockState string `json:"LockState"`
}

func (r *CurfewLockStateRecord) String() string {
	return fmt.Sprintf("CurfewLockState{%s, lock=%s}", r.Header, r.LockState)
}

// CurfewEntry is one active curfew window.
type CurfewEntry struct {
	Start string `json:"Start"`
	End   string `json:"End"`
	State int    `json:"State"`
}

// CurfewRecord (opcode 0x12) lists the active curfew windows.
type CurfewRecord struct {
	OpTag
	Header
	Curfew []CurfewEntry `json:"Curfew"`
}

func (r *CurfewRecord) String() string {
	windows := make([]string, len(r.Curfew))
	for i, c := range r.Curfew {
		windows[i] = c.Start + " -> " + c.End
	}
	return fmt.Sprintf("Curfew{%s, windows=[%s]}", r.Header, strings.Join(windows, "; "))
}

// PetMovementRecord (opcode 0x13) reports an animal passing a cat flap.
type PetMovementRecord struct {
	OpTag
	Header
	Chip      ChipID           `json:"-"`
	Animal    string           `json:"Animal"`
	Direction string           `json:"Direction"`
	Code      CatFlapDirection `json:"-"`
}

func (r *PetMovementRecord) String() string {
	return fmt.Sprintf("PetMovement{%s, animal=%s, direction=%s}", r.Header, r.Animal, r.Direction)
}

// FeedRecord (opcode 0x18) reports a feeder lid event with scale readings in
// grams.
type FeedRecord struct {
	OpTag
	Header
	Chip       ChipID       `json:"-"`
	Animal     string       `json:"Animal"`
	Action     string       `json:"Action"`
	Code       FeederAction `json:"-"`
	Time       string       `json:"Time"`
	LeftFrom   string       `json:"LeftFrom"`
	LeftTo     string       `json:"LeftTo"`
	LeftDelta  string       `json:"LeftDelta"`
	RightFrom  string       `json:"RightFrom"`
	RightTo    string       `json:"RightTo"`
	RightDelta string       `json:"RightDelta"`
	BowlCount  int          `json:"BowlCount"`
}

func (r *FeedRecord) String() string {
	return fmt.Sprintf("Feed{%s, action=%s, animal=%s, secs=%s, left=%s->%s (%s), right=%s->%s (%s), bowls=%d}",
		r.Header, r.Action, r.Animal, r.Time,
		r.LeftFrom, r.LeftTo, r.LeftDelta, r.RightFrom, r.RightTo, r.RightDelta, r.BowlCount)
}

// DrinkingRecord (opcode 0x1b) reports a water bowl event.
type DrinkingRecord struct {
	OpTag
	Header
	Chip   ChipID `json:"-"`
	Animal string `json:"Animal"`
	Action string `json:"Action"`
	Time   string `json:"Time"`
	From   string `json:"From"`
	To     string `json:"To"`
	Delta  string `json:"Delta"`
}

func (r *DrinkingRecord) String() string {
	return fmt.Sprintf("Drinking{%s, action=%s, animal=%s, secs=%s, %s->%s (%s)}",
		r.Header, r.Action, r.Animal, r.Time, r.From, r.To, r.Delta)
}

// ZeroScalesRecord (opcode 0x0d, short form) zeroes one or both scales.
type ZeroScalesRecord struct {
	OpTag
	Header
	Scale string `json:"Scale"`
}

func (r *ZeroScalesRecord) String() string {
	return fmt.Sprintf("ZeroScales{%s, scale=%s}", r.Header, r.Scale)
}

// UnknownRecord keeps the raw hex of a sub-message that could not be decoded.
type UnknownRecord struct {
	OpTag
	Header
	Message string `json:"Message"`
}

func (r *UnknownRecord) String() string {
	return fmt.Sprintf("Unknown{%s, raw=%s}", r.Header, r.Message)
}

// RegisterRecord is a decoded register status report. Fields is ordered the
// way the report is usually read; only the keys meaningful for the offset are
// present.
type RegisterRecord struct {
	OpTag
	Offset int               `json:"Offset"`
	Length int               `json:"Length"`
	Fields map[string]string `json:"Fields,omitempty"`
	Raw    string            `json:"Raw"`
}

// Field returns a named field or "".
func (r *RegisterRecord) Field(name string) string {
	return r.Fields[name]
}

func (r *RegisterRecord) String() string {
	keys := registerFieldOrder[r.Operation]
	parts := []string{fmt.Sprintf("offset=%d", r.Offset)}
	for _, k := range keys {
		if v, ok := r.Fields[k]; ok {
			parts = append(parts, strings.ToLower(k)+"="+v)
		}
	}
	if r.Operation == OpOther {
		parts = append(parts, "raw="+r.Raw)
	}
	return string(r.Operation) + "{" + strings.Join(parts, ", ") + "}"
}

var registerFieldOrder = map[Operation][]string{
	OpAdoption:       {"Adoption"},
	OpLedMode:        {"LedMode"},
	OpBatteryAndTime: {"Battery", "Time"},
	OpSetTime:        {"Time"},
	OpLockState:      {"LockState"},
	OpLockedOutState: {"LockedOut"},
	OpChipCount:      {"ChipCount"},
	OpProvChip:       {"PetOffset", "Chip"},
	OpCurfew:         {"CurfewState", "CurfewOn", "CurfewOff"},
	OpPetMovement:    {"PetOffset", "Animal", "Direction", "State"},
}

// HubRecord is an informational hub envelope message (boot, uptime, dump).
type HubRecord struct {
	OpTag
	Message   string `json:"Message,omitempty"`
	Uptime    string `json:"Uptime,omitempty"`
	TS        string `json:"TS,omitempty"`
	Reconnect string `json:"Reconnect,omitempty"`
}

func (r *HubRecord) String() string {
	if r.Operation == OpUptime {
		return fmt.Sprintf("Uptime{minutes=%s, ts=%s, reconnects=%s}", r.Uptime, r.TS, r.Reconnect)
	}
	return fmt.Sprintf("%s{%s}", r.Operation, r.Message)
}

// MessageKind is the direction of a decoded message.
type MessageKind string

const (
	KindCommand MessageKind = "Command"
	KindStatus  MessageKind = "Status"
)

// DecodedMessage is the result of decoding one frame or MQTT message.
// Operations always has one entry per record, in record order.
type DecodedMessage struct {
	Device     string      `json:"device"`
	Address    string      `json:"address"`
	Kind       MessageKind `json:"operation"`
	Timestamp  time.Time   `json:"timestamp"`
	Records    []Record    `json:"message"`
	Operations []Operation `json:"ops"`
}

func (m *DecodedMessage) add(r Record) {
	m.Records = append(m.Records, r)
	m.Operations = append(m.Operations, r.Op())
	logging.LogRecord(m.Device, string(r.Op()), r)
}

func (m *DecodedMessage) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", m.Timestamp.Format(TimestampLayout), m.Kind, m.Device)
	for _, r := range m.Records {
		sb.WriteString("\n  ")
		sb.WriteString(r.String())
	}
	return sb.String()
}
