// Package protocol implements the Sure Petcare hub wire protocol.
//
// This package decodes and encodes the messages exchanged between the hub,
// the cloud and the peripheral devices (pet door, cat flap, feeder and the
// Felaqua water bowl). It covers the radio layer as seen by an 802.15.4
// sniffer as well as the MQTT text layer the hub speaks to its broker.
//
// # Frame Layers
//
// Radio frames are XOR-obfuscated against a fixed key that is loaded once at
// startup (see LoadKey). After removing the XOR layer the frame looks like:
//
//	[0-1]   unknown header bytes
//	[2]     frame type (0x2a multi, 0x2d single, 0x3c register status)
//	[3]     unknown
//	[4]     payload end offset
//	[5]     unknown
//	[6..]   payload (frame[6 : frame[4]+1])
//
// MQTT messages carry the same payloads as space separated hex after a text
// envelope:
//
//	<hex unix ts> <counter|1000> <kind> <payload...>
//
// where kind 126 is a multi-message frame, 127 a single message, 132 a
// register status report and 2 a register write. A counter of 1000 marks a
// command sent by the hub, anything else a status report from a device.
//
// # Sub-messages
//
// Feeders, cat flaps and the Felaqua speak in sub-messages:
//
//	[0]     opcode
//	[1]     unknown
//	[2-3]   device counter (little-endian uint16)
//	[4-7]   device timestamp (packed 6/4/5/5/6/6 bits, little-endian)
//	[8..]   opcode specific data
//
// Pet doors and the hub instead expose a sparse register file: a status
// report carries a byte offset and the bytes stored there.
//
// # Usage Example - Decoding
//
//	key, err := protocol.LoadKey("/etc/pethublocal/xor.key")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	codec := protocol.NewCodec(protocol.CodecConfig{Key: key}, reg, counters)
//
//	msg, err := codec.DecodeMQTT(ctx, "pethublocal/messages/4444444444444444",
//	    "5fef6320 0050 126 18 0c 00 05 00 b8 c8 42 54 ae 17 00 00 ...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range msg.Records {
//	    fmt.Println(rec)
//	}
//
// # Usage Example - Encoding
//
//	cmd, err := codec.Generate(ctx, "4444444444444444", "SetLeftScale", "10")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// cmd.Topic:   pethublocal/messages/4444444444444444
//	// cmd.Message: 5fef6320 1000 127 09 00 05 00 b8 c8 42 54 0a e8 03 00 00
//
// # Side Effects
//
// Decoding is pure except for a handful of write-backs into the Registry
// (battery readings, lock modes, LED modes, curfews, pet locations and bowl
// weights) and the device counter increment performed by Generate. Both are
// serialized per device by the Registry and CounterStore implementations.
//
// # Thread Safety
//
// A Codec holds no mutable state of its own and may be shared between
// goroutines.
package protocol
