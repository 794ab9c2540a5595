package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.UpsertSeats(ctx, []model.Seat{
		{ID: "A1", Label: "A1", Category: "catA", RightID: "A2"},
		{ID: "A2", Label: "A2", Category: "catA", LeftID: "A1"},
	}); err != nil {
		t.Fatal(err)
	}
	err := s.CreateCustomer(ctx,
		&model.Customer{ID: "c1", Email: "a@example.com", TicketIDs: []string{"t1"}},
		&model.Ticket{ID: "t1", Code: "CODE0001", Quotas: map[string]int{"catA": 1}})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMemoryStoreReadYourWrites(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	now := time.Now()

	err := s.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.MarkSeatsReserved(ctx, []string{"A1"}, "t1", now); err != nil {
			return err
		}
		seats, err := tx.GetSeats(ctx, []string{"A1"})
		if err != nil {
			return err
		}
		if seats["A1"].IsAvailable || seats["A1"].ReservedBy != "t1" {
			t.Fatalf("write not visible inside tx: %+v", seats["A1"])
		}
		return tx.ConfirmTicket(ctx, "t1", now)
	})
	if err != nil {
		t.Fatal(err)
	}
	tk, _ := s.GetTicket(ctx, "t1")
	if !tk.SeatConfirmed || tk.ConfirmedAt == nil {
		t.Fatalf("ticket not confirmed: %+v", tk)
	}
}

func TestMemoryStoreRollbackOnError(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.MarkSeatsReserved(ctx, []string{"A1"}, "t1", time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	seats, _ := s.SeatsReservedBy(ctx, "t1")
	if len(seats) != 0 {
		t.Fatalf("aborted write leaked: %+v", seats)
	}
}

func TestMemoryStoreRetriesOnContention(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	// The first attempt reads A1, then a competing writer commits before it.
	interfered := false
	s.beforeCommit = func() {
		if interfered {
			return
		}
		interfered = true
		if err := s.commit(&memTx{
			s:       s,
			reads:   map[string]uint64{},
			seats:   map[string]model.Seat{"A1": {ID: "A1", Category: "catA", ReservedBy: "other"}},
			tickets: map[string]model.Ticket{},
			avail:   map[string]bool{},
			checks:  map[string]model.CheckIn{},
		}); err != nil {
			t.Fatal(err)
		}
	}

	attempts := 0
	var seen string
	err := s.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		seats, err := tx.GetSeats(ctx, []string{"A1"})
		if err != nil {
			return err
		}
		seen = seats["A1"].ReservedBy
		return tx.SetAvailability(ctx, map[string]bool{"A1": false})
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 || seen != "other" {
		t.Fatalf("attempts=%d seen=%q", attempts, seen)
	}
}

func TestMemoryStoreCreateCustomerConflict(t *testing.T) {
	s := seedStore(t)
	err := s.CreateCustomer(context.Background(),
		&model.Customer{ID: "c2", Email: "A@example.com"},
		&model.Ticket{ID: "t2", Code: "CODE0002"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryStoreUpsertPreservesAvailability(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	if err := s.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.MarkSeatsReserved(ctx, []string{"A1"}, "t1", time.Now())
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertSeats(ctx, []model.Seat{{ID: "A1", Label: "Renamed", Category: "catA", RightID: "A2"}}); err != nil {
		t.Fatal(err)
	}
	topo, _ := s.SeatTopology(ctx)
	if topo[0].Label != "Renamed" || topo[0].IsAvailable || topo[0].ReservedBy != "t1" {
		t.Fatalf("unexpected seat %+v", topo[0])
	}
}

func TestReasonError(t *testing.T) {
	err := Conflictf("Seat %s is not available", "A1")
	if !errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		t.Fatal("kind not preserved")
	}
	if Reason(err, "x") != "Seat A1 is not available" {
		t.Fatalf("reason = %q", Reason(err, "x"))
	}
	if Reason(errors.New("db down"), "internal error") != "internal error" {
		t.Fatal("fallback not used")
	}
}
