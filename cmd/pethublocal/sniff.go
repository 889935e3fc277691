package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/plambrechtsen/pethublocal/internal/sniffer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Sniffer flags, shared with serve
var (
	serialPort string
	serialBaud int
	listPorts  bool
)

func init() {
	addSerialFlags(sniffCmd)
	sniffCmd.Flags().BoolVar(&listPorts, "list", false, "List serial ports and exit")
	rootCmd.AddCommand(sniffCmd)
}

func addSerialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serialPort, "serial", "", "Sniffer serial port (default from config; stdin when unset)")
	cmd.Flags().IntVar(&serialBaud, "baud", 0, "Sniffer baud rate (default from config)")
}

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Decode radio frames from an 802.15.4 sniffer",
	Long: `Read radio frames from an 802.15.4 sniffer and decode each one.

With a serial port the sniffer's console output ("Src=... Dst=...
Payload=...") is read directly. Without one, lines are read from stdin and
may be console lines or tshark TSV (time, source, destination, payload).`,
	Example: `  # Wemos sniffer on USB serial
  pethublocal sniff --serial /dev/ttyUSB0

  # Replay a tshark export
  tshark -r radio.pcap -T fields -e frame.time_epoch -e wpan.src64 -e wpan.dst64 -e data.data | pethublocal sniff

  # Which ports are there?
  pethublocal sniff --list`,
	Args: cobra.NoArgs,
	RunE: runSniff,
}

func runSniff(cmd *cobra.Command, args []string) error {
	if listPorts {
		ports, err := sniffer.Ports()
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(ports))
		for _, p := range ports {
			rows = append(rows, []string{p})
		}
		return newPrinter().Table([]string{"port"}, rows)
	}

	ctx, stop := signalContext()
	defer stop()

	codec, _, closeStore, err := newCodec(ctx, true)
	if err != nil {
		return err
	}
	defer closeStore()

	source, closeSource, err := openSniffer()
	if err != nil {
		return err
	}
	defer closeSource()

	printer := newPrinter()
	err = sniffer.Run(ctx, source, func(ctx context.Context, f protocol.RawFrame) error {
		msg, ok := decodeFrame(ctx, codec, f)
		if !ok {
			return nil
		}
		return printer.Message(msg)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openSniffer opens the configured serial port, or stdin when there is none.
func openSniffer() (io.Reader, func(), error) {
	port := serialPort
	if port == "" {
		port = cfg.Serial.Port
	}
	if port == "" {
		logging.Info("Reading sniffer lines from stdin")
		return os.Stdin, func() {}, nil
	}

	baud := serialBaud
	if baud == 0 {
		baud = cfg.Serial.Baud
	}
	p, err := sniffer.OpenSerial(port, baud)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

// decodeFrame decodes one radio frame, logging and dropping malformed ones.
func decodeFrame(ctx context.Context, codec *protocol.Codec, f protocol.RawFrame) (*protocol.DecodedMessage, bool) {
	msg, err := codec.DecodeRadio(ctx, f)
	if err != nil {
		logging.Warn("Dropping radio frame",
			zap.String("source", f.Source),
			zap.Error(err),
		)
		return nil, false
	}
	return msg, true
}
