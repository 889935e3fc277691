package sniffer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	defaultSerialReadTimeout = 300 * time.Millisecond
	maxLineLength            = 4096
)

// Handler receives each parsed frame. Returning an error stops Run.
type Handler func(ctx context.Context, f protocol.RawFrame) error

// OpenSerial opens the sniffer console. The read timeout lets Run notice a
// cancelled context while the radio is quiet.
func OpenSerial(portName string, baudRate int) (serial.Port, error) {
	if portName == "" {
		return nil, errors.New("serial port is empty")
	}
	if baudRate <= 0 {
		return nil, fmt.Errorf("invalid serial baud rate: %d", baudRate)
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	logging.Info("Serial sniffer opened", zap.String("port", portName), zap.Int("baud", baudRate))
	return port, nil
}

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Run reads lines from r until EOF or cancellation and hands every parsed
// frame to handle. Unparseable lines are logged and skipped. A reader that
// returns no data without an error (a serial port hitting its read timeout)
// is polled again.
func Run(ctx context.Context, r io.Reader, handle Handler) error {
	buf := make([]byte, 512)
	var pending []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := string(pending[:idx])
				pending = pending[idx+1:]
				if herr := dispatch(ctx, line, handle); herr != nil {
					return herr
				}
			}
			if len(pending) > maxLineLength {
				logging.Warn("Discarding overlong sniffer line", zap.Int("bytes", len(pending)))
				pending = nil
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				return dispatch(ctx, string(pending), handle)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read sniffer: %w", err)
		}
	}
}

func dispatch(ctx context.Context, line string, handle Handler) error {
	f, err := ParseLine(line, time.Now().UTC())
	if errors.Is(err, ErrNoFrame) {
		return nil
	}
	if err != nil {
		logging.Debug("Skipping sniffer line", zap.String("line", line), zap.Error(err))
		return nil
	}
	return handle(ctx, f)
}
