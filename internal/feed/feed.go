// Package feed carries seat availability from the authoritative store to
// connected clients.  The server publishes full snapshots; clients apply
// them through an Adapter that turns them into taken flags.
package feed

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Snapshot is the full availability picture at one instant.  Seats maps a
// seat id to whether it is still available; seats that are missing are
// available.
type Snapshot struct {
	Version int64           `json:"version"`
	Seats   map[string]bool `json:"seats"`
}

// NewSnapshot stamps seats with a version derived from the clock.
func NewSnapshot(seats map[string]bool) Snapshot {
	return Snapshot{Version: time.Now().UnixNano(), Seats: seats}
}

// Source delivers snapshots until the subscription ends.  Subscribe blocks;
// it returns ctx.Err() when ctx is cancelled and a non-nil error when the
// underlying subscription drops.
type Source interface {
	Subscribe(ctx context.Context, deliver func(Snapshot)) error
}

// Publisher pushes a snapshot to subscribers.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Backoff bounds the delay between resubscription attempts.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff starts at one second and doubles up to thirty.
var DefaultBackoff = Backoff{Min: time.Second, Max: 30 * time.Second}

// resubscribe keeps src subscribed until ctx is done.  The delay is reset
// once a subscription has delivered at least one snapshot.
func resubscribe(ctx context.Context, src Source, b Backoff, log *zap.Logger, name string, deliver func(Snapshot)) error {
	if b.Min <= 0 {
		b = DefaultBackoff
	}
	delay := b.Min
	for {
		var delivered atomic.Bool
		err := src.Subscribe(ctx, func(s Snapshot) {
			delivered.Store(true)
			deliver(s)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered.Load() {
			delay = b.Min
		}
		log.Warn("feed: subscription ended, resubscribing",
			zap.String("source", name), zap.Error(err), zap.Duration("retry_in", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if delay < b.Max {
			delay *= 2
			if delay > b.Max {
				delay = b.Max
			}
		}
	}
}

// Relay forwards every snapshot of src to pub, resubscribing as needed.  It
// is used to pump a cross-instance channel into the local Hub.
func Relay(ctx context.Context, src Source, pub Publisher, b Backoff, log *zap.Logger) error {
	return resubscribe(ctx, src, b, log, "relay", func(s Snapshot) {
		if err := pub.Publish(ctx, s); err != nil {
			log.Warn("feed: relay publish failed", zap.Error(err))
		}
	})
}
