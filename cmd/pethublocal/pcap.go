package main

import (
	"errors"
	"fmt"

	"github.com/plambrechtsen/pethublocal/internal/capture"
	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pcapPort uint16

func init() {
	pcapCmd.Flags().Uint16Var(&pcapPort, "port", capture.DefaultPort, "MQTT TCP port (0 for every TCP stream)")
	rootCmd.AddCommand(pcapCmd)
}

var pcapCmd = &cobra.Command{
	Use:   "pcap <file>",
	Short: "Decode the hub MQTT messages in a capture",
	Long: `Read a pcap or pcapng capture of the hub's MQTT traffic, reassemble each TCP
stream and decode every PUBLISH in order. The capture must already be
decrypted; TLS traffic to the vendor broker cannot be read.

Cloud topics are rewritten to the local topic prefix before decoding.
Messages that fail to decode are logged and skipped.`,
	Example: `  pethublocal pcap hub.pcapng
  pethublocal pcap --port 8883 hub.pcap --json | jq .`,
	Args: cobra.ExactArgs(1),
	RunE: runPcap,
}

func runPcap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	messages, err := capture.ExtractFile(args[0], capture.Options{Port: pcapPort})
	if err != nil {
		return err
	}

	codec, _, closeStore, err := newCodec(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	printer := newPrinter()
	skipped := 0
	for _, m := range messages {
		topic := protocol.RewriteTopic(m.Topic, cfg.Topic)
		msg, err := codec.DecodeMQTT(ctx, topic, m.Message)
		if errors.Is(err, protocol.ErrMalformedFrame) {
			logging.Warn("Skipping malformed message",
				zap.String("stream", m.Stream),
				zap.String("topic", m.Topic),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", m, err)
		}
		if err := printer.Message(msg); err != nil {
			return err
		}
	}

	logging.Info("Capture decoded",
		zap.String("file", args[0]),
		zap.Int("messages", len(messages)),
		zap.Int("skipped", skipped),
	)
	return nil
}
