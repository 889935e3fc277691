package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar selects the level when none is passed to Initialize.
// Unset means silent.
const LogLevelEnvVar = "PETHUB_LOG_LEVEL"

// maxDump caps how many payload bytes a single log line carries.
const maxDump = 256

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

// Initialize builds the global logger. An empty level falls back to
// PETHUB_LOG_LEVEL, and if that is empty too logging stays silent.
// Unrecognised levels log at info.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		setLogger(zap.NewNop())
		return nil
	}

	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	setLogger(built)
	return nil
}

func setLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// GetLogger returns the global logger, silent until Initialize is called.
func GetLogger() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs and exits. Only the CLI may call it.
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogConnection logs a feed client coming or going.
func LogConnection(remoteAddr string, event string) {
	Info("Feed client",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogFrame logs a deobfuscated radio frame. direction is "rx" or "tx".
func LogFrame(direction string, source string, data []byte) {
	Debug("Radio frame",
		zap.String("direction", direction),
		zap.String("source", source),
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
	)
}

// LogMQTT logs a hub MQTT topic and message.
func LogMQTT(direction string, topic string, message string) {
	Debug("MQTT message",
		zap.String("direction", direction),
		zap.String("topic", topic),
		zap.String("message", message),
	)
}

// LogRecord logs one decoded record for a device.
func LogRecord(device string, op string, record fmt.Stringer) {
	Debug("Decoded record",
		zap.String("device", device),
		zap.String("op", op),
		zap.Stringer("record", record),
	)
}

// LogWebSocketMessage logs a frame written to or read from a feed client.
// Text frames carry their content, others a hex dump.
func LogWebSocketMessage(remoteAddr string, direction string, messageType int, data []byte) {
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("message_type", frameTypeName(messageType)),
		zap.Int("length", len(data)),
	}
	if messageType == textFrame {
		fields = append(fields, zap.String("content", truncate(string(data))))
	} else {
		fields = append(fields, zap.String("hex", hexDump(data)))
	}
	Debug("WebSocket message", fields...)
}

// LogRawBytes logs bytes that could not be interpreted.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// RFC 6455 opcodes
const (
	textFrame   = 1
	binaryFrame = 2
	closeFrame  = 8
	pingFrame   = 9
	pongFrame   = 10
)

func frameTypeName(msgType int) string {
	switch msgType {
	case textFrame:
		return "text"
	case binaryFrame:
		return "binary"
	case closeFrame:
		return "close"
	case pingFrame:
		return "ping"
	case pongFrame:
		return "pong"
	}
	return fmt.Sprintf("unknown(%d)", msgType)
}

func truncate(s string) string {
	if len(s) > maxDump {
		return s[:maxDump] + "..."
	}
	return s
}

func hexDump(data []byte) string {
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7e {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}

// Sync flushes buffered entries. Call it before exit.
func Sync() {
	_ = GetLogger().Sync()
}
