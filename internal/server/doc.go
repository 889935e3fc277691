// Package server publishes decoded hub messages to websocket clients.
//
// Every message handed to Server.Publish is encoded once as JSON and fanned
// out to all connected clients. Clients only listen; anything they send is
// read and discarded so that control frames (ping, close) are processed.
//
// # Endpoints
//
//	GET /feed     websocket upgrade, one JSON text frame per decoded message
//	GET /healthz  "ok" plus the number of connected clients
//
// # Slow Clients
//
// Each client has a bounded send queue. A client whose queue is full is
// disconnected rather than allowed to hold up the other clients.
//
// # TLS
//
// When Config.CertPath and Config.KeyPath are set the feed is served over
// TLS 1.2 or newer.
package server
