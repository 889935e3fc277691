package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

func startTestServer(t *testing.T) (*Server, string, context.CancelFunc, <-chan error) {
	t.Helper()
	s, err := New(&Config{Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	addr, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(cancel)
	return s, addr.String(), cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestFeedPublish(t *testing.T) {
	s, addr, cancel, done := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/feed", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return s.GetActiveConnections() == 1 })

	codec := protocol.NewCodec(protocol.CodecConfig{}, nil, nil)
	msg, err := codec.DecodeMQTT(context.Background(), protocol.DefaultTopicPrefix, "5ff08e80 0 10 1234 20210101 0c 22 38 1 3")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Publish(msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if typ != websocket.TextMessage {
		t.Errorf("message type = %d, want text", typ)
	}

	var got struct {
		Device string   `json:"device"`
		Kind   string   `json:"operation"`
		Ops    []string `json:"ops"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("feed message is not JSON: %v", err)
	}
	if got.Device != "Hub" || got.Kind != "Status" || len(got.Ops) != 1 || got.Ops[0] != "Uptime" {
		t.Errorf("feed message = %s", data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if n := s.GetActiveConnections(); n != 0 {
		t.Errorf("GetActiveConnections() = %d after shutdown", n)
	}
}

func TestFeedHealth(t *testing.T) {
	_, addr, _, _ := startTestServer(t)

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "ok 0") {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestFeedClientDisconnect(t *testing.T) {
	s, addr, _, _ := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/feed", nil)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return s.GetActiveConnections() == 1 })
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitFor(t, func() bool { return s.GetActiveConnections() == 0 })

	// publishing with nobody listening is fine
	s.Broadcast([]byte(`{}`))
}

func TestNewTLSMissingFiles(t *testing.T) {
	if _, err := New(&Config{Listen: ":0", CertPath: "missing.pem", KeyPath: "missing.key"}); err == nil {
		t.Error("New() with missing certificate should fail")
	}
	if info := GetTLSInfo(nil); info["enabled"] != false {
		t.Errorf("GetTLSInfo(nil) = %v", info)
	}
}
