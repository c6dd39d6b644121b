package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/notefold/notefold-backend/internal/service"
	ws "github.com/notefold/notefold-backend/internal/websocket"
)

// Completion events and pongs land on the same connection; this drives both
// at once and checks every frame arrives. gorilla/websocket panics on
// concurrent writers, so interleaved writes from two goroutines would blow
// up here.
func TestWriteLoopInterleavesCompletionsAndPongs(t *testing.T) {
	h := &WSHandler{
		log:      zerolog.Nop(),
		upgrader: buildUpgrader(nil),
	}

	events := make(chan *redis.Message)
	pings := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		h.writeLoop(ctx, conn, events, pings, zerolog.Nop())
	}))
	// Server shutdown waits for the handler, so the loop must be cancelled first.
	defer srv.Close()
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	const n = 25
	go func() {
		for i := 0; i < n; i++ {
			raw, _ := json.Marshal(service.PersistCompletionPayload{
				SubmissionID: "7c4d3f1a-0000-0000-0000-000000000000",
				AuthorID:     i,
				Score:        1,
				CompletedOn:  time.Now(),
			})
			events <- &redis.Message{Payload: string(raw)}
		}
	}()
	go func() {
		for i := 0; i < n; i++ {
			pings <- struct{}{}
		}
	}()

	completed, pongs := 0, 0
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	for completed+pongs < 2*n {
		var frame struct {
			Event ws.Event `json:"event"`
		}
		if err := client.ReadJSON(&frame); err != nil {
			t.Fatalf("read after %d completions and %d pongs: %v", completed, pongs, err)
		}
		switch frame.Event {
		case ws.EventCompleted:
			completed++
		case ws.EventPong:
			pongs++
		default:
			t.Fatalf("unexpected event %q", frame.Event)
		}
	}

	if completed != n || pongs != n {
		t.Errorf("expected %d completions and %d pongs, got %d and %d", n, n, completed, pongs)
	}
}

// A malformed monitor payload is skipped; the loop keeps forwarding.
func TestWriteLoopSkipsBadPayload(t *testing.T) {
	h := &WSHandler{
		log:      zerolog.Nop(),
		upgrader: buildUpgrader(nil),
	}

	events := make(chan *redis.Message, 2)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		h.writeLoop(ctx, conn, events, nil, zerolog.Nop())
	}))
	defer srv.Close()
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	events <- &redis.Message{Payload: "{not json"}
	raw, _ := json.Marshal(service.PersistCompletionPayload{SubmissionID: "x", Score: 1, CompletedOn: time.Now()})
	events <- &redis.Message{Payload: string(raw)}

	var frame ws.CompletedResponse
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Event != ws.EventCompleted {
		t.Errorf("expected completion after skipped payload, got %q", frame.Event)
	}
}
