package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/plambrechtsen/pethublocal/internal/discovery"
	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/plambrechtsen/pethublocal/internal/server"
	"github.com/plambrechtsen/pethublocal/internal/sniffer"
	"github.com/plambrechtsen/pethublocal/internal/ui"
	"github.com/plambrechtsen/pethublocal/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Input formats for serve
const (
	inputRadio = "radio"
	inputMQTT  = "mqtt"
)

// Serve flags
var (
	listenAddr  string
	advertise   bool
	certPath    string
	tlsKeyPath  string
	inputFormat string
	echo        bool
)

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Feed listen address (default from config)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the feed over mDNS")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&tlsKeyPath, "tls-key", "", "TLS private key file")
	serveCmd.Flags().StringVar(&inputFormat, "input", inputRadio, "Input format: radio (sniffer) or mqtt (\"topic message\" lines)")
	serveCmd.Flags().BoolVar(&echo, "echo", false, "Also print decoded messages to stdout")
	addSerialFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Decode a live stream and publish it on a websocket feed",
	Long: `Decode hub traffic as it arrives and publish every decoded message as JSON
on a websocket feed at /feed. /healthz reports the number of connected
clients.

The input is either a radio sniffer (as for 'sniff') or MQTT lines of the
form "topic message" on stdin, which is what 'mosquitto_sub -v' prints.`,
	Example: `  # Feed from a serial sniffer, announced over mDNS
  pethublocal serve --serial /dev/ttyUSB0 --advertise

  # Feed from the local broker
  mosquitto_sub -v -t 'pethublocal/#' | pethublocal serve --input mqtt`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if inputFormat != inputRadio && inputFormat != inputMQTT {
		return fmt.Errorf("unknown input format %q", inputFormat)
	}

	ctx, stop := signalContext()
	defer stop()

	codec, _, closeStore, err := newCodec(ctx, inputFormat == inputRadio)
	if err != nil {
		return err
	}
	defer closeStore()

	listen := listenAddr
	if listen == "" {
		listen = cfg.Feed.Listen
	}
	srv, err := server.New(&server.Config{Listen: listen, CertPath: certPath, KeyPath: tlsKeyPath})
	if err != nil {
		return err
	}
	addr, err := srv.Listen()
	if err != nil {
		return err
	}

	if advertise || cfg.Feed.Advertise {
		tcp, ok := addr.(*net.TCPAddr)
		if !ok {
			return fmt.Errorf("cannot advertise non-TCP address %s", addr)
		}
		ad, err := discovery.Advertise(cfg.Feed.Service, tcp.Port, map[string]string{"version": version.Version})
		if err != nil {
			return err
		}
		defer ad.Shutdown()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(ctx)
	}()

	var printer *ui.Printer
	if echo {
		printer = newPrinter()
	}
	publish := func(msg *protocol.DecodedMessage) error {
		if err := srv.Publish(msg); err != nil {
			return err
		}
		if printer != nil {
			return printer.Message(msg)
		}
		return nil
	}

	inputErr := make(chan error, 1)
	go func() {
		inputErr <- readInput(ctx, codec, publish)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-inputErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Input stopped", zap.Error(err))
		} else {
			logging.Info("Input finished, serving until interrupted")
		}
		return <-serveErr
	}
}

// readInput decodes the configured input until it ends or ctx is done.
func readInput(ctx context.Context, codec *protocol.Codec, publish func(*protocol.DecodedMessage) error) error {
	if inputFormat == inputMQTT {
		return readMQTTLines(ctx, os.Stdin, codec, publish)
	}

	source, closeSource, err := openSniffer()
	if err != nil {
		return err
	}
	defer closeSource()
	return sniffer.Run(ctx, source, func(ctx context.Context, f protocol.RawFrame) error {
		if msg, ok := decodeFrame(ctx, codec, f); ok {
			return publish(msg)
		}
		return nil
	})
}

// readMQTTLines decodes "topic message" lines. Lines without a message and
// messages that fail to decode are logged and skipped.
func readMQTTLines(ctx context.Context, r io.Reader, codec *protocol.Codec, publish func(*protocol.DecodedMessage) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		topic, message, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok {
			continue
		}
		msg, err := codec.DecodeMQTT(ctx, protocol.RewriteTopic(topic, cfg.Topic), message)
		if err != nil {
			logging.Warn("Skipping MQTT line", zap.String("topic", topic), zap.Error(err))
			continue
		}
		if err := publish(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}
