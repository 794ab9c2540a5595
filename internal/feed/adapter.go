package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/seating"
)

// TakenUpdater receives taken flags.  *seating.Manager implements it.
type TakenUpdater interface {
	SeatIDs() []string
	UpdateTakenStatus(taken map[string]bool) (seating.Result, error)
}

// Adapter converts availability snapshots into taken flags for one
// selection session.  The state seen by the target is always the last
// snapshot applied; nothing changes while the subscription is down.
type Adapter struct {
	src     Source
	target  TakenUpdater
	log     *zap.Logger
	known   []string
	backoff Backoff

	// OnWarnings receives the warnings produced by each applied snapshot.
	OnWarnings func([]seating.Warning)
}

// NewAdapter binds src to target.
func NewAdapter(src Source, target TakenUpdater, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		src:     src,
		target:  target,
		log:     log,
		known:   target.SeatIDs(),
		backoff: DefaultBackoff,
	}
}

// WithBackoff overrides the resubscription delays.
func (a *Adapter) WithBackoff(b Backoff) *Adapter {
	a.backoff = b
	return a
}

// Apply pushes one snapshot into the target.  Every known seat receives a
// flag: taken = !available, with seats missing from the snapshot treated as
// available.  Ids the target does not know are ignored.
func (a *Adapter) Apply(s Snapshot) (seating.Result, error) {
	taken := make(map[string]bool, len(a.known))
	for _, id := range a.known {
		avail, ok := s.Seats[id]
		taken[id] = ok && !avail
	}
	if extra := len(s.Seats) - countKnown(s.Seats, taken); extra > 0 {
		a.log.Debug("feed: snapshot contains unknown seats", zap.Int("count", extra), zap.Int64("version", s.Version))
	}

	res, err := a.target.UpdateTakenStatus(taken)
	if err != nil {
		return res, err
	}
	if len(res.Warnings) > 0 && a.OnWarnings != nil {
		a.OnWarnings(res.Warnings)
	}
	return res, nil
}

// Run subscribes and applies snapshots until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	return resubscribe(ctx, a.src, a.backoff, a.log, "adapter", func(s Snapshot) {
		if _, err := a.Apply(s); err != nil {
			a.log.Error("feed: apply snapshot failed", zap.Error(err))
		}
	})
}

func countKnown(seats map[string]bool, known map[string]bool) int {
	n := 0
	for id := range seats {
		if _, ok := known[id]; ok {
			n++
		}
	}
	return n
}
