package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/plambrechtsen/pethublocal/internal/logging"
	"go.uber.org/zap"
)

// DefaultPort is the plaintext MQTT port.
const DefaultPort = 1883

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Message is a PUBLISH seen in a capture.
type Message struct {
	Publish
	Time   time.Time
	Stream string // "src:port->dst:port"
}

func (m Message) String() string {
	return fmt.Sprintf("Message{time=%s, stream=%s, topic=%s, message=%q}",
		m.Time.UTC().Format(time.RFC3339), m.Stream, m.Topic, m.Message)
}

// Options selects what Extract keeps.
type Options struct {
	// Port is the MQTT TCP port on either side of the stream. 0 keeps every
	// TCP stream.
	Port uint16
}

// ExtractFile is Extract on a pcap or pcapng file.
func ExtractFile(path string, opts Options) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap file: %w", err)
	}
	defer f.Close()
	return Extract(f, opts)
}

func openSource(r io.Reader) (gopacket.PacketDataSource, layers.LinkType, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, 0, fmt.Errorf("read pcap header: %w", err)
	}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, fmt.Errorf("open pcapng: %w", err)
		}
		return ng, ng.LinkType(), nil
	}
	rd, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, 0, fmt.Errorf("open pcap: %w", err)
	}
	return rd, rd.LinkType(), nil
}

// Extract reads a capture and returns every MQTT PUBLISH in it. TCP payloads
// are concatenated per direction, so a PUBLISH split across segments is
// still found.
func Extract(r io.Reader, opts Options) ([]Message, error) {
	src, linkType, err := openSource(r)
	if err != nil {
		return nil, err
	}

	var messages []Message
	packetSource := gopacket.NewPacketSource(src, linkType)
	streams := make(map[string][]byte)

	for packet := range packetSource.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, _ := tcpLayer.(*layers.TCP)
		if opts.Port != 0 && uint16(tcp.SrcPort) != opts.Port && uint16(tcp.DstPort) != opts.Port {
			continue
		}
		if len(tcp.Payload) == 0 {
			continue
		}

		key := streamKey(packet.NetworkLayer(), tcp)
		streams[key] = append(streams[key], tcp.Payload...)
		parsed, remaining := parsePackets(streams[key])
		streams[key] = remaining

		for _, p := range parsed {
			m := Message{Publish: p, Time: packet.Metadata().Timestamp, Stream: key}
			logging.Debug("MQTT publish in capture",
				zap.String("stream", key),
				zap.String("topic", p.Topic),
			)
			messages = append(messages, m)
		}
	}

	for key, rest := range streams {
		if len(rest) > 0 {
			logging.LogRawBytes("Capture ended mid packet on "+key, rest)
		}
	}
	return messages, nil
}

func streamKey(netLayer gopacket.NetworkLayer, tcp *layers.TCP) string {
	if netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		return fmt.Sprintf("%s:%d->%s:%d", src, tcp.SrcPort, dst, tcp.DstPort)
	}
	return fmt.Sprintf("unknown:%d->unknown:%d", tcp.SrcPort, tcp.DstPort)
}
