package protocol

import (
	"context"
	"errors"
	"testing"
)

// radioFrame wraps a payload in a deobfuscated radio frame header with a
// two byte trailer.
func radioFrame(typ byte, payload []byte) []byte {
	f := []byte{0x41, 0x88, typ, 0x00, byte(framePayloadStart - 1 + len(payload)), 0x00}
	f = append(f, payload...)
	return append(f, 0xaa, 0xbb)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := ParseHex(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newRadioCodec(t *testing.T, reg *fakeRegistry) *Codec {
	t.Helper()
	key, err := ParseKey(testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestCodec(reg)
	c.cfg.Key = key
	return c
}

func TestReverseMAC(t *testing.T) {
	if got := ReverseMAC("01:00:00:00:00:00:00:00"); got != "0000000000000001" {
		t.Errorf("ReverseMAC() = %v", got)
	}
	if got := ReverseMAC("ab:cd"); got != "CDAB" {
		t.Errorf("ReverseMAC() = %v, want CDAB", got)
	}
}

func TestDecodeRadioMulti(t *testing.T) {
	c := newRadioCodec(t, nil)
	subs := []string{
		"0c 00 05 00 " + ts + " ae 17 00 00",
		"00 00 06 00 " + ts + " 0b 00 00",
		"42 00 07 00 " + ts,
	}
	var payload []byte
	for _, s := range subs {
		b := mustHex(t, s)
		payload = append(payload, byte(len(b)))
		payload = append(payload, b...)
	}

	msg, err := c.DecodeRadio(context.Background(), RawFrame{
		Source: testFeeder,
		Data:   Obfuscate(radioFrame(FrameTypeMulti, payload), c.cfg.Key),
	})
	if err != nil {
		t.Fatalf("DecodeRadio() error = %v", err)
	}
	want := []Operation{OpBattery, OpAck, OpUnknown}
	if len(msg.Records) != len(want) || len(msg.Operations) != len(want) {
		t.Fatalf("got %d records / %d ops, want %d", len(msg.Records), len(msg.Operations), len(want))
	}
	for i, op := range want {
		if msg.Operations[i] != op || msg.Records[i].Op() != op {
			t.Errorf("record %d = %v, want %v", i, msg.Operations[i], op)
		}
	}
	if msg.Kind != KindStatus || msg.Device != "Feeder" {
		t.Errorf("message = %s/%s, want Status/Feeder", msg.Kind, msg.Device)
	}
}

func TestDecodeRadioSingle(t *testing.T) {
	c := newRadioCodec(t, nil)
	sub := mustHex(t, "09 00 12 01 "+ts+" 0a e8 03 00 00")

	msg, err := c.DecodeRadio(context.Background(), RawFrame{
		Source: testFeeder,
		Data:   Obfuscate(radioFrame(FrameTypeSingle, sub), c.cfg.Key),
	})
	if err != nil {
		t.Fatalf("DecodeRadio() error = %v", err)
	}
	if msg.Kind != KindCommand {
		t.Errorf("Kind = %v, want Command", msg.Kind)
	}
	rec, ok := msg.Records[0].(*UpdateStateRecord)
	if !ok || rec.Weight != "10" {
		t.Errorf("record = %v, want SetLeftScale 10", msg.Records[0])
	}
}

func TestDecodeRadioRegister(t *testing.T) {
	c := newRadioCodec(t, nil)
	// offset 36 big-endian, then length and value, then one trailing byte
	payload := mustHex(t, "00 24 01 03 ff")

	msg, err := c.DecodeRadio(context.Background(), RawFrame{
		Source: testPetDoor,
		Data:   Obfuscate(radioFrame(FrameTypeRegister, payload), c.cfg.Key),
	})
	if err != nil {
		t.Fatalf("DecodeRadio() error = %v", err)
	}
	rec, ok := msg.Records[0].(*RegisterRecord)
	if !ok {
		t.Fatalf("record is %T", msg.Records[0])
	}
	if rec.Offset != RegLockState || rec.Field("LockState") != "Locked" {
		t.Errorf("record = %v, want LockState Locked at 36", rec)
	}
}

func TestDecodeRadioUnknownType(t *testing.T) {
	c := newRadioCodec(t, nil)
	msg, err := c.DecodeRadio(context.Background(), RawFrame{
		Source: testFeeder,
		Data:   Obfuscate(radioFrame(0x77, []byte{1, 2, 3}), c.cfg.Key),
	})
	if err != nil {
		t.Fatalf("DecodeRadio() error = %v", err)
	}
	if msg.Operations[0] != OpUnknown {
		t.Errorf("Operations = %v, want [Unknown]", msg.Operations)
	}
}

func TestDecodeRadioMalformed(t *testing.T) {
	c := newRadioCodec(t, nil)
	for n := 0; n < MinRadioFrame; n++ {
		_, err := c.DecodeRadio(context.Background(), RawFrame{Source: "x", Data: make([]byte, n)})
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("DecodeRadio(%d bytes) error = %v, want ErrMalformedFrame", n, err)
		}
	}
}

func TestDecodeMultiTruncated(t *testing.T) {
	c := newTestCodec(nil)
	// The length byte claims more than is present: the sub-message is decoded
	// as far as it goes rather than dropped.
	payload := append([]byte{0x20}, mustHex(t, "00 00 01 00 "+ts+" 0b")...)
	msg := c.DecodeMulti(context.Background(), testFeeder, payload)
	if len(msg.Records) != 1 || msg.Operations[0] != OpAck {
		t.Errorf("Operations = %v, want [Ack]", msg.Operations)
	}
}

func TestDecodeRecordsReceiveCounter(t *testing.T) {
	battery := func(counter string) string { return "0c 00 " + counter + " " + ts + " ae 17 00 00" }

	tests := []struct {
		name    string
		address string
		decode  func(t *testing.T, c *Codec, address string) error
		want    uint16
		stored  bool
	}{
		{"mqtt multi keeps last", testFeeder, func(t *testing.T, c *Codec, address string) error {
			_, err := c.DecodeMQTT(context.Background(), DefaultTopicPrefix+"/"+address,
				mqttMessage("126", "0c "+battery("05 00")+" 0c "+battery("07 01")))
			return err
		}, 0x0107, true},
		{"mqtt single", testCatFlap, func(t *testing.T, c *Codec, address string) error {
			_, err := c.DecodeMQTT(context.Background(), DefaultTopicPrefix+"/"+address,
				mqttMessage("127", battery("2a 00")))
			return err
		}, 42, true},
		{"radio multi", testFeeder, func(t *testing.T, c *Codec, address string) error {
			sub := mustHex(t, battery("09 00"))
			payload := append([]byte{byte(len(sub))}, sub...)
			_, err := c.DecodeRadio(context.Background(), RawFrame{
				Source: address,
				Data:   Obfuscate(radioFrame(FrameTypeMulti, payload), c.cfg.Key),
			})
			return err
		}, 9, true},
		{"command is not recorded", testFeeder, func(t *testing.T, c *Codec, address string) error {
			_, err := c.DecodeMQTT(context.Background(), DefaultTopicPrefix+"/"+address,
				"5ff08e80 "+commandMarker+" 127 "+battery("05 00"))
			return err
		}, 0, false},
		{"radio single is a command", testFeeder, func(t *testing.T, c *Codec, address string) error {
			_, err := c.DecodeRadio(context.Background(), RawFrame{
				Source: address,
				Data:   Obfuscate(radioFrame(FrameTypeSingle, mustHex(t, battery("05 00"))), c.cfg.Key),
			})
			return err
		}, 0, false},
		{"hub messages are not recorded", HubAddress, func(t *testing.T, c *Codec, address string) error {
			_, err := c.DecodeMQTT(context.Background(), DefaultTopicPrefix, mqttMessage("127", battery("05 00")))
			return err
		}, 0, false},
		{"short sub-message", testFeeder, func(t *testing.T, c *Codec, address string) error {
			_, err := c.DecodeMQTT(context.Background(), DefaultTopicPrefix+"/"+address, mqttMessage("127", "0c 00 05"))
			return err
		}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newFakeRegistry()
			c := newRadioCodec(t, reg)

			if err := tt.decode(t, c, tt.address); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			got, stored := reg.counters[tt.address]
			if stored != tt.stored {
				t.Fatalf("receive counter stored = %v, want %v", stored, tt.stored)
			}
			if got != tt.want {
				t.Errorf("receive counter = %d, want %d", got, tt.want)
			}
		})
	}
}
