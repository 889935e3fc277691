package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/plambrechtsen/pethublocal/internal/sniffer"
	"github.com/spf13/cobra"
)

func init() {
	decodeCmd.AddCommand(decodeMQTTCmd)
	decodeCmd.AddCommand(decodeRadioCmd)
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a single hub message",
}

var decodeMQTTCmd = &cobra.Command{
	Use:   "mqtt <topic> <message>...",
	Short: "Decode an MQTT message from or to the hub",
	Long: `Decode one MQTT message. The message may be quoted or given as separate
arguments, which are joined with spaces. Cloud topics of the form
prod/<id>/messages/<mac> are rewritten to the local topic first.`,
	Example: `  pethublocal decode mqtt pethublocal/messages "5ff08e80 0 10 1234 20210101 0c 22 38 1 3"
  pethublocal decode mqtt pethublocal/messages/0000000000000003 5ff08e80 1000 2 36 1 02`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDecodeMQTT,
}

func runDecodeMQTT(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	codec, _, closeStore, err := newCodec(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	topic := protocol.RewriteTopic(args[0], cfg.Topic)
	msg, err := codec.DecodeMQTT(ctx, topic, strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	return newPrinter().Message(msg)
}

var decodeRadioCmd = &cobra.Command{
	Use:   "radio <src> <dst> <hex>...",
	Short: "Decode an obfuscated 802.15.4 frame",
	Long: `Decode one radio frame as captured by a sniffer. Addresses are given least
significant byte first, as the sniffer prints them. The payload is hex and
may be split across arguments.`,
	Example: `  pethublocal decode radio 01:00:00:00:00:00:00:00 ff:ee:dd:cc:bb:aa:00:00 4188...`,
	Args:    cobra.MinimumNArgs(3),
	RunE:    runDecodeRadio,
}

func runDecodeRadio(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	codec, _, closeStore, err := newCodec(ctx, true)
	if err != nil {
		return err
	}
	defer closeStore()

	line := fmt.Sprintf("Src=%s Dst=%s Payload=%s", args[0], args[1], strings.Join(args[2:], ""))
	frame, err := sniffer.ParseLine(line, time.Now().UTC())
	if err != nil {
		return err
	}
	msg, err := codec.DecodeRadio(ctx, frame)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	return newPrinter().Message(msg)
}
