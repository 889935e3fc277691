package protocol

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"go.uber.org/zap"
)

// HubAddress is the registry address used for messages the hub publishes
// about itself, on the bare messages topic.
const HubAddress = "hub"

// commandMarker is the second field of every message the hub is asked to
// send. Anything else there is a status report.
const commandMarker = "1000"

// MQTT message types, the third field of a hub message
const (
	mqttMulti       = "126"
	mqttSingle      = "127"
	mqttRegister    = "132"
	mqttRegWrite    = "2"
	mqttDump        = "3"
	mqttEight       = "8"
	mqttUptime      = "10"
	mqttHubBootText = "Hub"
)

var cloudTopic = regexp.MustCompile(`^.*messages`)

// RewriteTopic replaces the cloud prefix of a hub topic with prefix, leaving
// the device suffix in place.
func RewriteTopic(topic, prefix string) string {
	return cloudTopic.ReplaceAllLiteralString(topic, prefix)
}

// DecodeMQTT decodes one message the hub published on topic. The last topic
// segment is the device address; a bare ".../messages" topic is the hub.
func (c *Codec) DecodeMQTT(ctx context.Context, topic, message string) (*DecodedMessage, error) {
	if c.cfg.Verbose {
		logging.LogMQTT("rx", topic, message)
	}
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return nil, newError(ErrTypeMalformedFrame, "empty message on %s", topic)
	}

	address := topic
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		address = topic[i+1:]
	}
	if address == "messages" || address == "" {
		address = HubAddress
	}
	dev := c.device(ctx, address)
	if address == HubAddress && dev.Type == DeviceTypeUnknown {
		dev.Type = DeviceTypeHub
		if dev.Name == address {
			dev.Name = DeviceTypeHub.String()
		}
	}

	msg := &DecodedMessage{
		Device:    dev.Name,
		Address:   dev.Address,
		Kind:      KindStatus,
		Timestamp: c.messageTime(fields[0]),
	}

	// The last will and the boot banner start with the word Hub.
	if fields[0] == mqttHubBootText || (len(fields) > 2 && fields[2] == mqttHubBootText) {
		msg.add(&HubRecord{OpTag: tag(OpBoot), Message: message})
		return msg, nil
	}
	if len(fields) < 3 {
		logging.Warn("Dropping short message", zap.String("topic", topic), zap.String("message", message))
		return nil, newError(ErrTypeMalformedFrame, "message on %s has %d fields, need 3", topic, len(fields))
	}
	if fields[1] == commandMarker {
		msg.Kind = KindCommand
	}

	switch fields[2] {
	case mqttMulti:
		payload, err := parseHexFields(fields[3:])
		if err != nil {
			return nil, err
		}
		c.decodeMulti(ctx, dev, payload, msg)

	case mqttSingle:
		sub, err := parseHexFields(fields[3:])
		if err != nil {
			return nil, err
		}
		msg.add(c.decodeSingle(ctx, dev, sub))
		c.recordReceive(ctx, dev, msg, sub)

	case mqttRegister:
		// 132 <counter> <offset> <length> <hex...>
		if len(fields) < 6 {
			return nil, newError(ErrTypeMalformedFrame, "register report on %s is truncated", topic)
		}
		rec, err := c.registerFields(ctx, dev, fields[4], fields[5], fields[6:], msg.Timestamp)
		if err != nil {
			return nil, err
		}
		msg.add(rec)

	case mqttRegWrite:
		// 2 <offset> <length> <hex...>
		if len(fields) < 5 {
			return nil, newError(ErrTypeMalformedFrame, "register write on %s is truncated", topic)
		}
		rec, err := c.registerFields(ctx, dev, fields[3], fields[4], fields[5:], msg.Timestamp)
		if err != nil {
			return nil, err
		}
		msg.add(rec)

	case mqttDump:
		target := ""
		if len(fields) > 4 {
			target = fields[4]
		}
		msg.add(&HubRecord{OpTag: tag(OpDump), Message: "Dump to " + target})

	case mqttEight:
		msg.add(&HubRecord{OpTag: tag(OpEight), Message: message})

	case mqttUptime:
		msg.add(decodeUptime(fields))

	default:
		msg.add(&HubRecord{OpTag: tag(OpError), Message: message})
	}
	return msg, nil
}

// messageTime converts the hex unix timestamp leading every message. The
// boot banner has none, in which case now is used.
func (c *Codec) messageTime(field string) time.Time {
	secs, err := strconv.ParseInt(field, 16, 64)
	if err != nil {
		return c.cfg.Clock().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// registerFields builds the length-prefixed register value from the decimal
// offset and length fields and the hex value fields.
func (c *Codec) registerFields(ctx context.Context, dev DeviceInfo, offsetField, lengthField string, hexFields []string, at time.Time) (Record, error) {
	offset, err := strconv.Atoi(offsetField)
	if err != nil {
		return nil, wrapError(ErrTypeMalformedFrame, err, "register offset %q", offsetField)
	}
	length, err := strconv.Atoi(lengthField)
	if err != nil || length < 0 || length > 0xff {
		return nil, newError(ErrTypeMalformedFrame, "register length %q", lengthField)
	}
	value, err := parseHexFields(hexFields)
	if err != nil {
		return nil, err
	}
	data := append([]byte{byte(length)}, value...)
	return c.decodeRegister(ctx, dev, offset, data, at), nil
}

func parseHexFields(fields []string) ([]byte, error) {
	b, err := ParseHex(strings.Join(fields, ""))
	if err != nil {
		return nil, wrapError(ErrTypeMalformedFrame, err, "payload")
	}
	return b, nil
}

// decodeUptime reads "10 <minutes> <date> <hh> <mm> <ss> <x> <reconnects>".
// The clock fields are hex.
func decodeUptime(fields []string) *HubRecord {
	at := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	r := &HubRecord{OpTag: tag(OpUptime), Reconnect: at(9)}
	if minutes, err := strconv.Atoi(at(3)); err == nil {
		r.Uptime = strconv.Itoa(minutes)
	} else {
		r.Uptime = at(3)
	}
	clock := make([]string, 0, 3)
	for i := 5; i < 8; i++ {
		v, err := strconv.ParseUint(at(i), 16, 8)
		if err != nil {
			clock = append(clock, at(i))
			continue
		}
		clock = append(clock, fmt.Sprintf("%02d", v))
	}
	r.TS = at(4) + "-" + strings.Join(clock, ":")
	return r
}
