package protocol

import (
	"context"
	"strings"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"go.uber.org/zap"
)

// Radio frame types, at byte 2 of a deobfuscated frame
const (
	FrameTypeMulti    = 0x2a // device to hub, several sub-messages
	FrameTypeSingle   = 0x2d // hub to device, one sub-message
	FrameTypeRegister = 0x3c // pet door register status
)

// MinRadioFrame is the shortest deobfuscated frame that carries a payload.
const MinRadioFrame = 9

// Radio frame layout
const (
	frameTypeOffset   = 2
	frameLengthOffset = 4
	framePayloadStart = 6
)

// RawFrame is one unit of wire data as received from a transport.
type RawFrame struct {
	Source      string
	Destination string
	Topic       string
	Received    time.Time
	Data        []byte
}

// ReverseMAC converts a colon separated radio address, least significant
// byte first, into the upper case form the hub uses in topics.
func ReverseMAC(mac string) string {
	parts := strings.Split(mac, ":")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.ToUpper(strings.Join(parts, ""))
}

// DecodeRadio removes the XOR layer from a sniffed radio frame and decodes
// it. Frames too short to hold a header return ErrMalformedFrame; callers
// drop them and carry on.
func (c *Codec) DecodeRadio(ctx context.Context, f RawFrame) (*DecodedMessage, error) {
	frame := Deobfuscate(f.Data, c.cfg.Key)
	if c.cfg.Verbose {
		logging.LogFrame("rx", f.Source, frame)
	}
	if len(frame) < MinRadioFrame {
		logging.Warn("Dropping short frame",
			zap.String("source", f.Source),
			zap.String("hex", Hex(frame)),
		)
		return nil, newError(ErrTypeMalformedFrame, "frame from %s is %d bytes, need %d", f.Source, len(frame), MinRadioFrame)
	}

	received := f.Received
	if received.IsZero() {
		received = c.cfg.Clock().UTC()
	}
	dev := c.device(ctx, f.Source)
	msg := &DecodedMessage{
		Device:    dev.Name,
		Address:   dev.Address,
		Kind:      KindStatus,
		Timestamp: received,
	}

	end := int(frame[frameLengthOffset]) + 1
	var payload []byte
	if end > framePayloadStart {
		payload = frame[framePayloadStart:min(end, len(frame))]
	}

	switch frame[frameTypeOffset] {
	case FrameTypeMulti:
		c.decodeMulti(ctx, dev, payload, msg)
	case FrameTypeSingle:
		msg.Kind = KindCommand
		msg.add(c.decodeSingle(ctx, dev, payload))
	case FrameTypeRegister:
		offset := int(Uint16BE(payload))
		var value []byte
		if len(payload) > 3 {
			value = payload[2 : len(payload)-1]
		}
		msg.add(c.decodeRegister(ctx, dev, offset, value, received))
	default:
		msg.add(&UnknownRecord{
			OpTag:   tag(OpUnknown),
			Header:  Header{Opcode: frame[frameTypeOffset]},
			Message: Hex(frame),
		})
	}
	return msg, nil
}

// decodeMulti walks a multi-message payload: each sub-message is prefixed
// with its length. A truncated last sub-message is decoded as far as it goes.
// Status payloads record the counter of the last complete sub-message.
func (c *Codec) decodeMulti(ctx context.Context, dev DeviceInfo, payload []byte, msg *DecodedMessage) {
	var last []byte
	rest := payload
	for len(rest) > 2 {
		n := min(int(rest[0])+1, len(rest))
		sub := rest[1:n]
		msg.add(c.decodeSingle(ctx, dev, sub))
		if len(sub) >= subHeaderSize {
			last = sub
		}
		rest = rest[n:]
	}
	c.recordReceive(ctx, dev, msg, last)
}

// DecodeMulti decodes a multi-message payload for the device at address.
func (c *Codec) DecodeMulti(ctx context.Context, address string, payload []byte) *DecodedMessage {
	dev := c.device(ctx, address)
	msg := &DecodedMessage{Device: dev.Name, Address: dev.Address, Kind: KindStatus, Timestamp: c.cfg.Clock().UTC()}
	c.decodeMulti(ctx, dev, payload, msg)
	return msg
}

// DecodeSingle decodes one sub-message for the device at address.
func (c *Codec) DecodeSingle(ctx context.Context, address string, sub []byte) Record {
	return c.decodeSingle(ctx, c.device(ctx, address), sub)
}
