// Package wstrigger subscribes to a last-trade-price stream for a set of
// watched tokens and fires an immediate poll through the activity detector
// whenever one of them prints, so copy latency isn't bound by the poll
// interval alone.
package wstrigger

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	heartbeatInterval = 30 * time.Second
	maxBackoff        = 30 * time.Second
	maxAttempts       = 10
	readWait          = 45 * time.Second
)

// Trigger is the callback fired on a matching trade print; normally
// detector.Detector.TriggerPollNow.
type Trigger func(tokenID string)

// Watcher maintains a WS subscription to last-trade-price events for a
// mutable set of token ids.
type Watcher struct {
	url     string
	trigger Trigger

	mu      sync.Mutex
	watched map[string]struct{}

	disabled bool

	// initialBackoff/maxBackoffDur/maxAttemptsN default to the spec'd
	// 1s/30s/10 and are only overridden by tests.
	initialBackoff time.Duration
	maxBackoffDur  time.Duration
	maxAttemptsN   int
}

// New builds a Watcher. url is the venue's WS endpoint.
func New(url string, trigger Trigger) *Watcher {
	return &Watcher{
		url:            url,
		trigger:        trigger,
		watched:        make(map[string]struct{}),
		initialBackoff: time.Second,
		maxBackoffDur:  maxBackoff,
		maxAttemptsN:   maxAttempts,
	}
}

// SetWatched replaces the watched token set. Message matching uses the new
// set at once; the subscription sent to the venue changes only when the
// connection is next (re)established, since SetWatched does not itself
// close or reconnect the socket.
func (w *Watcher) SetWatched(tokenIDs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched = make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		w.watched[id] = struct{}{}
	}
}

func (w *Watcher) assetIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.watched))
	for id := range w.watched {
		ids = append(ids, id)
	}
	return ids
}

func (w *Watcher) isWatched(tokenID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[tokenID]
	return ok
}

// Disabled reports whether the watcher gave up after exhausting its
// reconnect attempts; the system falls back to polling alone.
func (w *Watcher) Disabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled
}

type subscribeMsg struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

type lastTradeMsg struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
}

// Run drives the connect/read/reconnect loop until ctx is cancelled or the
// reconnect budget is exhausted.
func (w *Watcher) Run(ctx context.Context) {
	backoff := w.initialBackoff
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// runOnce returns nil only once ctx is done, which the check
			// above already handles; any other nil return resets the
			// backoff and reconnects immediately.
			backoff = w.initialBackoff
			attempt = 0
			continue
		}

		attempt++
		log.Printf("wstrigger: connection error (attempt %d/%d): %v", attempt, w.maxAttemptsN, err)
		if attempt >= w.maxAttemptsN {
			w.mu.Lock()
			w.disabled = true
			w.mu.Unlock()
			log.Printf("wstrigger: exhausted %d reconnect attempts, falling back to polling", w.maxAttemptsN)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.maxBackoffDur {
			backoff = w.maxBackoffDur
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ids := w.assetIDs()
	if err := conn.WriteJSON(subscribeMsg{Type: "market", AssetIDs: ids}); err != nil {
		return err
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	msgCh := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go func() {
		for {
			conn.SetReadDeadline(time.Now().Add(readWait))
			_, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- data:
			default:
				log.Printf("wstrigger: message buffer full, dropping a frame")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case data := <-msgCh:
			w.handleMessage(data)
		case <-heartbeat.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// handleMessage accepts either a single message or the array-of-messages
// frame the venue's market WS channel sends.
func (w *Watcher) handleMessage(data []byte) {
	var batch []lastTradeMsg
	if err := json.Unmarshal(data, &batch); err != nil {
		var msg lastTradeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		batch = []lastTradeMsg{msg}
	}
	for _, msg := range batch {
		w.handleOne(msg)
	}
}

func (w *Watcher) handleOne(msg lastTradeMsg) {
	if msg.EventType != "last_trade_price" || msg.AssetID == "" {
		return
	}
	if !w.isWatched(msg.AssetID) {
		return
	}
	w.trigger(msg.AssetID)
}
