package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	subscriberBuffer = 4
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
)

// Hub pushes availability snapshots to websocket subscribers.  A new
// subscriber first receives the current snapshot loaded from the store and
// then every published one.  Slow subscribers lose intermediate snapshots,
// never the latest.
type Hub struct {
	mu       sync.Mutex
	subs     map[chan []byte]struct{}
	load     func(ctx context.Context) (map[string]bool, error)
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub returns a hub that reads the initial snapshot through load.
func NewHub(load func(ctx context.Context) (map[string]bool, error), log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[chan []byte]struct{}),
		load: load,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(_ context.Context, snap Snapshot) error {
	msg, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		offer(ch, msg)
	}
	return nil
}

// offer delivers msg, evicting the oldest pending message when ch is full.
func offer(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Current loads the authoritative snapshot.
func (h *Hub) Current(ctx context.Context) (Snapshot, error) {
	seats, err := h.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(seats), nil
}

// ServeWS upgrades the request and streams snapshots until the peer goes
// away.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		h.log.Debug("feed: websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	// Subscribe before loading so nothing published in between is lost.
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	snap, err := h.Current(c.Request().Context())
	if err != nil {
		h.log.Error("feed: load availability failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "availability unavailable"),
			time.Now().Add(writeWait))
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snap); err != nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("feed: subscriber write failed", zap.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}
