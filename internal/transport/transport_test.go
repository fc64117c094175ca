// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"visualizer/internal/analysis"
	applog "visualizer/internal/log"

	"github.com/gorilla/websocket"
)

func testFrame(seq uint64) *analysis.Frame {
	return &analysis.Frame{
		Seq:    seq,
		Bands:  []analysis.BandLevel{{Level: 0.5, Peak: 0.75}, {Level: 0.25, Peak: 0.25}},
		Column: []analysis.RGB{{R: 255, G: 16}},
		Phase:  []analysis.PhasePoint{{Side: 0.1, Mid: 0.2}},
		Meter:  analysis.MeterReading{Level: 0.4, Peak: 0.6, Zone: analysis.ZoneSafe},
		Onset:  true,
	}
}

func TestSummary(t *testing.T) {
	got := Summary(testFrame(7))
	want := "seq=7 meter=0.40/0.60[safe] bands=0.50,0.25 onset"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestLoggingTransportEvery(t *testing.T) {
	var buf bytes.Buffer
	lt := NewLoggingTransport(applog.New(&buf, applog.LevelDebug), 3)
	for i := range 7 {
		if err := lt.Send(testFrame(uint64(i))); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if n := strings.Count(buf.String(), "seq="); n != 2 {
		t.Errorf("logged %d frames, want 2:\n%s", n, buf.String())
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", applog.Discard())
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := wst.Send(testFrame(42)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var got struct {
		Seq    uint64               `json:"seq"`
		Bands  []analysis.BandLevel `json:"bands"`
		Column []string             `json:"column"`
		Meter  struct {
			Zone string `json:"zone"`
		} `json:"meter"`
		Onset bool `json:"onset"`
	}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("Unmarshal %s: %v", msg, err)
	}
	if got.Seq != 42 || len(got.Bands) != 2 || got.Bands[0].Peak != 0.75 {
		t.Errorf("frame = %+v", got)
	}
	if len(got.Column) != 1 || got.Column[0] != "#ff1000" {
		t.Errorf("column = %v, want [#ff1000]", got.Column)
	}
	if got.Meter.Zone != "safe" || !got.Onset {
		t.Errorf("meter zone %q onset %v", got.Meter.Zone, got.Onset)
	}
}

func TestWebSocketCloseIdempotent(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Sending after close must not block or panic.
	for i := range broadcastQueue + 10 {
		wst.Send(testFrame(uint64(i)))
	}
}

func TestWebSocketRejectsClientsAfterClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	wst.Close()

	// An upgrade that was already in flight when Close ran.
	srv := httptest.NewServer(http.HandlerFunc(wst.handleWebSocket))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection accepted after Close stayed open")
	}
	if n := wst.Clients(); n != 0 {
		t.Errorf("Clients() = %d after Close, want 0", n)
	}
}

func TestWebSocketStalledClientDoesNotBlock(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()
	url := "ws://" + wst.Addr().String() + "/ws"

	// This client never reads, so a large enough frame fills the socket
	// buffers and the broadcaster waits on the write deadline.
	stalled, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer stalled.Close()
	waitForClients(t, wst, 1)

	big := testFrame(1)
	big.Bands = make([]analysis.BandLevel, 1<<19)
	for i := range big.Bands {
		big.Bands[i] = analysis.BandLevel{Level: 0.123456789, Peak: 0.987654321}
	}
	wst.Send(big)
	wst.Send(big)
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	other, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer other.Close()
	waitForClients(t, wst, 2)
	if d := time.Since(start); d > writeTimeout/2 {
		t.Errorf("second client took %s to register", d)
	}
}

func waitForClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", wst.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
