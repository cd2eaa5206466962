package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tallyapp/tallysync/internal/bus"
)

// watchedTables are the remote tables whose changes should wake the sync
// loop. Junction and child tables are omitted: their parents' updated_at is
// always touched in the same write.
var watchedTables = []string{
	"profiles", "persons", "groups", "transactions",
	"settlements", "reminders", "subscriptions", "messages", "participants",
}

// Feed subscribes to the backend's websocket change stream and republishes
// every notification as a remote-origin event on the local bus. It is an
// optional wake-up channel: the poll ticker covers its absence, so feed
// errors are logged and retried, never fatal.
type Feed struct {
	url    string
	apiKey string
	token  func(context.Context) (string, error)
	events *bus.Bus
	log    *slog.Logger

	dial func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)
}

// NewFeed creates a Feed against the backend at baseURL (http/https scheme is
// rewritten to ws/wss).
func NewFeed(baseURL, apiKey string, token func(context.Context) (string, error), events *bus.Bus, logger *slog.Logger) *Feed {
	wsURL := strings.TrimRight(baseURL, "/")
	wsURL = strings.Replace(wsURL, "http", "ws", 1)
	return &Feed{
		url:    wsURL + "/realtime/v1",
		apiKey: apiKey,
		token:  token,
		events: events,
		log:    logger,
		dial: func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
			return conn, err
		},
	}
}

type subscribeMsg struct {
	Action string   `json:"action"`
	Tables []string `json:"tables"`
}

type changeMsg struct {
	Table  string `json:"table"`
	Action string `json:"action"`
}

// Run connects, subscribes, and republishes notifications until ctx is
// cancelled. Connection failures back off and retry indefinitely.
func (f *Feed) Run(ctx context.Context) {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := f.listen(ctx); err != nil {
			f.log.Warn("realtime feed disconnected", "error", err)
		}
		if ctx.Err() != nil {
			return
		}

		delay := backoffDelay(attempt)
		if attempt < 4 {
			attempt++
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// listen runs one connection lifetime: dial, subscribe, read until error.
func (f *Feed) listen(ctx context.Context) error {
	tok, err := f.token(ctx)
	if err != nil {
		return fmt.Errorf("resolving bearer token: %w", err)
	}
	header := http.Header{}
	header.Set("apikey", f.apiKey)
	header.Set("Authorization", "Bearer "+tok)

	conn, err := f.dial(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", f.url, err)
	}
	defer func() { _ = conn.Close() }()

	// Close the socket when ctx is cancelled so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(subscribeMsg{Action: "subscribe", Tables: watchedTables}); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	f.log.Debug("realtime feed connected", "tables", len(watchedTables))

	for {
		var msg changeMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading notification: %w", err)
		}
		if msg.Table == "" {
			continue
		}
		f.events.Publish(bus.Event{
			Origin: bus.OriginRemote,
			Table:  msg.Table,
			Action: msg.Action,
		})
	}
}
