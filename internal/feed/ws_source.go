package feed

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// WSSource subscribes to a Hub over a websocket.
type WSSource struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

// Subscribe implements Source.
func (s *WSSource) Subscribe(ctx context.Context, deliver func(Snapshot)) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var snap Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		deliver(snap)
	}
}
