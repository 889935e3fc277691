package capture

import (
	"encoding/binary"
	"errors"
)

// MQTT control packet types
const (
	packetPublish = 3
)

const maxRemainingLengthBytes = 4

var errBadLength = errors.New("malformed mqtt remaining length")

// Publish is one MQTT PUBLISH packet.
type Publish struct {
	Topic    string
	Message  string
	QoS      byte
	Retain   bool
	PacketID uint16
}

// remainingLength decodes the variable length integer after the first
// header byte. n is the number of bytes it used; n == 0 means more data is
// needed.
func remainingLength(b []byte) (length, n int, err error) {
	mult := 1
	for i := 0; i < maxRemainingLengthBytes; i++ {
		if i >= len(b) {
			return 0, 0, nil
		}
		length += int(b[i]&0x7f) * mult
		if b[i]&0x80 == 0 {
			return length, i + 1, nil
		}
		mult *= 128
	}
	return 0, 0, errBadLength
}

// parsePackets splits a TCP stream buffer into MQTT packets, keeping the
// PUBLISH ones. The incomplete tail is returned for the next segment. A
// corrupt stream drops the whole buffer.
func parsePackets(buf []byte) ([]Publish, []byte) {
	var out []Publish
	for len(buf) >= 2 {
		length, n, err := remainingLength(buf[1:])
		if err != nil {
			return out, nil
		}
		if n == 0 {
			break
		}
		total := 1 + n + length
		if total > len(buf) {
			break
		}

		header := buf[0]
		body := buf[1+n : total]
		buf = buf[total:]

		if header>>4 != packetPublish {
			continue
		}
		if p, ok := parsePublish(header, body); ok {
			out = append(out, p)
		}
	}
	if len(buf) == 0 {
		return out, nil
	}
	rest := make([]byte, len(buf))
	copy(rest, buf)
	return out, rest
}

func parsePublish(header byte, body []byte) (Publish, bool) {
	p := Publish{
		QoS:    (header >> 1) & 0x03,
		Retain: header&0x01 != 0,
	}
	if len(body) < 2 {
		return p, false
	}
	topicLen := int(binary.BigEndian.Uint16(body))
	body = body[2:]
	if topicLen > len(body) {
		return p, false
	}
	p.Topic = string(body[:topicLen])
	body = body[topicLen:]

	if p.QoS > 0 {
		if len(body) < 2 {
			return p, false
		}
		p.PacketID = binary.BigEndian.Uint16(body)
		body = body[2:]
	}
	p.Message = string(body)
	return p, true
}
