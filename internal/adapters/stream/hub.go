// Package stream broadcasts recorded steps to dashboard clients over
// websockets.
package stream

import (
	"context"
	"encoding/json"
	"falken/internal/adapters/wire"
	"falken/internal/core"
	"falken/pkg/diag"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// DefaultBuffer is the number of frames queued per subscriber before
	// frames are dropped for it.
	DefaultBuffer = 64
)

// Frame is the JSON message sent to dashboard clients for every step.
type Frame struct {
	Type         string          `json:"type"`
	BrainID      string          `json:"brain_id"`
	BrainName    string          `json:"brain_name"`
	SessionID    string          `json:"session_id"`
	EpisodeID    string          `json:"episode_id"`
	Index        int             `json:"index"`
	Source       string          `json:"source"`
	Observations json.RawMessage `json:"observations,omitempty"`
	Actions      json.RawMessage `json:"actions,omitempty"`
	Unset        []string        `json:"unset,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// NewFrame converts a step event into its dashboard frame.
func NewFrame(ev core.StepEvent) (Frame, error) {
	f := Frame{
		Type:       "step",
		BrainID:    ev.BrainID,
		BrainName:  ev.BrainName,
		SessionID:  ev.SessionID,
		EpisodeID:  ev.EpisodeID,
		Index:      ev.Index,
		Source:     string(ev.Source),
		Unset:      ev.Unset,
		RecordedAt: ev.RecordedAt,
	}
	var err error
	if f.Observations, err = rawJSON(ev.Observations); err != nil {
		return Frame{}, err
	}
	if f.Actions, err = rawJSON(ev.Actions); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func rawJSON(msg *structpb.Struct) (json.RawMessage, error) {
	if msg == nil {
		return nil, nil
	}
	return wire.Marshal(msg, wire.FormatJSON)
}

type subscriber struct {
	brain string
	send  chan []byte
}

// Hub fans step frames out to websocket subscribers. It implements
// core.Publisher; Publish never blocks on a slow client.
type Hub struct {
	log      *diag.Logger
	buffer   int
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	dropped     uint64
	closed      bool
}

var _ core.Publisher = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger routes hub diagnostics to log.
func WithLogger(log *diag.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginCheck restricts which origins may connect. By default every
// origin is accepted.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		log:    diag.Default(),
		buffer: DefaultBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) register(brain string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{brain: brain, send: make(chan []byte, h.buffer)}
	h.subscribers[s] = struct{}{}
	return s, true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; ok {
		close(s.send)
		delete(h.subscribers, s)
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns how many frames were discarded for full subscriber queues.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Publish implements core.Publisher.
func (h *Hub) Publish(_ context.Context, ev core.StepEvent) {
	frame, err := NewFrame(ev)
	if err != nil {
		h.log.Log(diag.LevelWarning, diag.Fields{"episode": ev.EpisodeID, "index": ev.Index}, "encode step frame: "+err.Error())
		return
	}
	h.Broadcast(frame)
}

// Broadcast queues frame for every subscriber watching its brain.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Warnf("marshal step frame: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers {
		if s.brain != "" && s.brain != frame.BrainID {
			continue
		}
		select {
		case s.send <- data:
		default:
			h.dropped++
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subscribers {
		close(s.send)
		delete(h.subscribers, s)
	}
}

// ServeHTTP upgrades the request to a websocket subscription. The optional
// brain query parameter limits the stream to one brain.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}
	brain := r.URL.Query().Get("brain")
	s, ok := h.register(brain)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.log.Log(diag.LevelDebug, diag.Fields{"brain": brain, "remote": r.RemoteAddr}, "stream subscriber connected")
	go h.writePump(conn, s)
	h.readPump(conn, s)
}

// readPump discards client messages and unregisters on disconnect.
func (h *Hub) readPump(conn *websocket.Conn, s *subscriber) {
	defer func() {
		h.unregister(s)
		if err := conn.Close(); err != nil {
			h.log.Debugf("close websocket: %v", err)
		}
	}()
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.log.Warnf("set read deadline: %v", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warnf("stream read: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.log.Warnf("set write deadline: %v", err)
			}
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debugf("stream write: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.log.Warnf("set ping write deadline: %v", err)
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Debugf("ping: %v", err)
				return
			}
		}
	}
}
