package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
)

// Op names a change to a snapshot key.
type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Event is pushed to subscribers of a key.
type Event struct {
	Op  Op     `json:"op"`
	Key string `json:"key"`
}

// subscriberBuffer bounds how far a slow SSE client may lag before events drop.
const subscriberBuffer = 10

// StreamManager fans snapshot events out to SSE subscribers, keyed by snapshot key.
type StreamManager struct {
	mu     sync.RWMutex
	byKey  map[string]map[chan Event]struct{}
	logger *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		byKey:  make(map[string]map[chan Event]struct{}),
		logger: logging.NewNop(),
	}
}

// Subscribe registers a channel for key. The returned func unsubscribes and
// closes the channel; calling it more than once is harmless.
func (sm *StreamManager) Subscribe(key string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	sm.mu.Lock()
	if sm.byKey[key] == nil {
		sm.byKey[key] = make(map[chan Event]struct{})
	}
	sm.byKey[key][ch] = struct{}{}
	sm.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { sm.drop(key, ch) })
	}
}

func (sm *StreamManager) drop(key string, ch chan Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	subs := sm.byKey[key]
	delete(subs, ch)
	if len(subs) == 0 {
		delete(sm.byKey, key)
	}
	close(ch)
}

// Broadcast delivers ev to every subscriber of key without blocking.
func (sm *StreamManager) Broadcast(key string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.byKey[key] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("sse subscriber lagging, event dropped", "key", key, "op", ev.Op)
		}
	}
}

// SubscribeEvents handles GET /events?key= (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	key, ok := s.snapshotKey(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.Streams.Subscribe(key)
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("sse encode failed", "key", key, "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
