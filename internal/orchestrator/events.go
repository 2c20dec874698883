package orchestrator

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is a generic SSE payload wrapper.
type Event struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload,omitempty"`
}

type subscriber chan []byte

// Hub fans turn events out to SSE subscribers, keyed by session. Report
// tokens are coalesced on a 100ms cadence so a fast model does not flood the
// wire with one event per token.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[subscriber]struct{} // sessionID -> set of subscribers

	tokMu   sync.Mutex
	tokBuf  map[string]string        // sessionID -> buffered report chunk
	tokTick map[string]chan struct{} // sessionID -> stop channel
}

func NewHub() *Hub { return &Hub{subs: map[string]map[subscriber]struct{}{}} }

func (h *Hub) Subscribe(sessionID string) (subscriber, func()) {
	ch := make(subscriber, 16)
	h.mu.Lock()
	set := h.subs[sessionID]
	if set == nil {
		set = map[subscriber]struct{}{}
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	unsubscribe := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		close(ch)
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

func (h *Hub) Publish(sessionID string, ev Event) {
	b, _ := json.Marshal(ev)
	h.mu.RLock()
	set := h.subs[sessionID]
	for ch := range set {
		// non-blocking send
		select {
		case ch <- b:
		default:
		}
	}
	h.mu.RUnlock()
}

// TokenAppender returns a function buffering report token chunks for a
// session, flushed periodically as coalesced 'token' events.
func (h *Hub) TokenAppender(sessionID string) func(chunk string) {
	h.tokMu.Lock()
	if h.tokBuf == nil {
		h.tokBuf = map[string]string{}
	}
	if h.tokTick == nil {
		h.tokTick = map[string]chan struct{}{}
	}
	if _, ok := h.tokTick[sessionID]; !ok {
		stop := make(chan struct{})
		h.tokTick[sessionID] = stop
		go h.flushLoop(sessionID, stop)
	}
	h.tokMu.Unlock()
	return func(chunk string) {
		if chunk == "" {
			return
		}
		h.tokMu.Lock()
		h.tokBuf[sessionID] += chunk
		h.tokMu.Unlock()
	}
}

func (h *Hub) flushLoop(sessionID string, stop <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.tokMu.Lock()
			chunk := h.tokBuf[sessionID]
			delete(h.tokBuf, sessionID)
			h.tokMu.Unlock()
			if chunk != "" {
				h.Publish(sessionID, Event{Event: "token", SessionID: sessionID, Payload: map[string]any{"chunk": chunk}})
			}
		}
	}
}

// StopTokenAppender stops the coalescer for a session and flushes the
// remaining chunk.
func (h *Hub) StopTokenAppender(sessionID string) {
	h.tokMu.Lock()
	if ch, ok := h.tokTick[sessionID]; ok {
		close(ch)
		delete(h.tokTick, sessionID)
	}
	chunk := h.tokBuf[sessionID]
	delete(h.tokBuf, sessionID)
	h.tokMu.Unlock()
	if chunk != "" {
		h.Publish(sessionID, Event{Event: "token", SessionID: sessionID, Payload: map[string]any{"chunk": chunk}})
	}
}
