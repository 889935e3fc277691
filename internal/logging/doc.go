// Package logging provides structured logging for pethublocal.
//
// This package wraps the zap logger with convenience functions for the
// logging patterns used by the codec, the transports and the feed server.
//
// # Log Levels
//
//   - Debug: frame hex dumps, MQTT messages, decoded records, registry misses
//   - Info: feed clients, startup
//   - Warn: dropped frames, failed registry write-backs
//   - Error: transport failures
//
// Logging is silent unless a level is passed to Initialize or set in the
// PETHUB_LOG_LEVEL environment variable.
//
// # Specialized Logging
//
//	logging.LogFrame("rx", "7A3D1A0000B8C8D0", payload)
//	logging.LogMQTT("rx", topic, message)
//	logging.LogRecord(device, string(rec.Op()), rec)
//	logging.LogConnection(remoteAddr, "feed_client_connected")
//	logging.LogWebSocketMessage(remoteAddr, "sent", websocket.TextMessage, data)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
