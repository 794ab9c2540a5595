package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/utils"
)

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []feed.Snapshot
}

func (p *recordingPublisher) Publish(_ context.Context, s feed.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
	return nil
}

func (p *recordingPublisher) last() feed.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snaps[len(p.snaps)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.SeatsConfirmedEvent
	err    error
}

func (n *recordingNotifier) PublishSeatsConfirmed(_ context.Context, ev queue.SeatsConfirmedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}

// venueRow links A1..A6 into one catA row.
func venueRow() []model.Seat {
	seats := make([]model.Seat, 6)
	for i := range seats {
		id := fmt.Sprintf("A%d", i+1)
		s := model.Seat{ID: id, Label: id, Level: "Level 1", Category: "catA"}
		if i > 0 {
			s.LeftID = fmt.Sprintf("A%d", i)
		}
		if i < len(seats)-1 {
			s.RightID = fmt.Sprintf("A%d", i+2)
		}
		seats[i] = s
	}
	return seats
}

// newFixture seeds the row and n customers: customer i has email
// c<i>@example.com, ticket t<i>, code CODE000<i> and a catA quota of 2.
func newFixture(t *testing.T, n int) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	if err := store.UpsertSeats(ctx, venueRow()); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		tid := fmt.Sprintf("t%d", i)
		err := store.CreateCustomer(ctx,
			&model.Customer{ID: fmt.Sprintf("c%d", i), Email: fmt.Sprintf("c%d@example.com", i), TicketIDs: []string{tid}},
			&model.Ticket{ID: tid, Code: fmt.Sprintf("CODE%04d", i), Quotas: map[string]int{"catA": 2}})
		if err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func wantKind(t *testing.T, err, kind error, reason string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	if reason != "" && !strings.Contains(err.Error(), reason) {
		t.Fatalf("expected reason containing %q, got %q", reason, err.Error())
	}
}

func TestReserveCommits(t *testing.T) {
	store := newFixture(t, 1)
	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}
	svc := NewReservationService(store, pub, notifier, nil)
	ctx := context.Background()

	res, err := svc.Reserve(ctx, "t1", []string{"A1", "A2"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Notified || len(res.Seats) != 2 || res.Seats[0].ReservedBy != "t1" {
		t.Fatalf("unexpected result %+v", res)
	}

	ticket, _ := store.GetTicket(ctx, "t1")
	if !ticket.SeatConfirmed {
		t.Fatal("ticket not confirmed")
	}
	snap := pub.last()
	if snap.Seats["A1"] || snap.Seats["A2"] || !snap.Seats["A3"] {
		t.Fatalf("unexpected availability %v", snap.Seats)
	}
	ev := notifier.events[0]
	if ev.Email != "c1@example.com" || ev.TicketCode != "CODE0001" || len(ev.Seats) != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestReserveIsOneShot(t *testing.T) {
	store := newFixture(t, 1)
	svc := NewReservationService(store, nil, nil, nil)
	ctx := context.Background()
	if _, err := svc.Reserve(ctx, "t1", []string{"A1", "A2"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Reserve(ctx, "t1", []string{"A4", "A5"})
	wantKind(t, err, repository.ErrConflict, "Seats are already confirmed")
}

func TestReserveRejections(t *testing.T) {
	store := newFixture(t, 2)
	svc := NewReservationService(store, nil, nil, nil)
	ctx := context.Background()
	if _, err := svc.Reserve(ctx, "t2", []string{"A1", "A2"}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		ticket string
		ids    []string
		kind   error
		reason string
	}{
		{"empty", "t1", nil, repository.ErrBadRequest, ""},
		{"duplicate", "t1", []string{"A4", "A4"}, repository.ErrBadRequest, "more than once"},
		{"unknown ticket", "nope", []string{"A4", "A5"}, repository.ErrNotFound, "Ticket not found"},
		{"unknown seat", "t1", []string{"A4", "Z9"}, repository.ErrNotFound, "Seat Z9 does not exist"},
		{"taken seat", "t1", []string{"A2", "A3"}, repository.ErrConflict, "Seat A2 is not available"},
		{"quota", "t1", []string{"A4"}, repository.ErrConflict, "expected: { catA: 2 }, got: { catA: 1 }"},
		{"isolation", "t1", []string{"A4", "A5"}, repository.ErrConflict, "Seat A3 will be isolated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Reserve(ctx, tc.ticket, tc.ids)
			wantKind(t, err, tc.kind, tc.reason)
		})
	}

	// nothing was written by the rejected attempts
	ticket, _ := store.GetTicket(ctx, "t1")
	if ticket.SeatConfirmed {
		t.Fatal("rejected reservation confirmed the ticket")
	}
	if seats, _ := store.SeatsReservedBy(ctx, "t1"); len(seats) != 0 {
		t.Fatalf("rejected reservation left seats %v", seats)
	}
}

func TestReserveNotSelectable(t *testing.T) {
	store := newFixture(t, 1)
	row := venueRow()
	row[5].NotSelectable = true
	if err := store.UpsertSeats(context.Background(), row); err != nil {
		t.Fatal(err)
	}
	svc := NewReservationService(store, nil, nil, nil)
	_, err := svc.Reserve(context.Background(), "t1", []string{"A5", "A6"})
	wantKind(t, err, repository.ErrBadRequest, "not selectable")
}

func TestReserveCountsPrefilledSeats(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	if err := store.RunAtomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.MarkSeatsReserved(ctx, []string{"A5"}, "t1", time.Now()); err != nil {
			return err
		}
		return tx.SetAvailability(ctx, map[string]bool{"A5": false})
	}); err != nil {
		t.Fatal(err)
	}

	svc := NewReservationService(store, nil, nil, nil)
	if _, err := svc.Reserve(ctx, "t1", []string{"A6"}); err != nil {
		t.Fatal(err)
	}
	seats, _ := store.SeatsReservedBy(ctx, "t1")
	if len(seats) != 2 {
		t.Fatalf("expected 2 seats, got %v", seats)
	}
}

func TestReserveNotificationFailureIsNotFatal(t *testing.T) {
	store := newFixture(t, 1)
	svc := NewReservationService(store, nil, &recordingNotifier{err: errors.New("broker down")}, nil)
	res, err := svc.Reserve(context.Background(), "t1", []string{"A1", "A2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Notified {
		t.Fatal("Notified should be false")
	}
	ticket, _ := store.GetTicket(context.Background(), "t1")
	if !ticket.SeatConfirmed {
		t.Fatal("reservation must stand when notification fails")
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	const n = 8
	store := newFixture(t, n)
	svc := NewReservationService(store, nil, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Reserve(context.Background(), fmt.Sprintf("t%d", i+1), []string{"A3", "A4"})
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, repository.ErrConflict):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	seats, _ := store.SeatTopology(context.Background())
	holder := ""
	for _, s := range seats {
		if s.ID == "A3" {
			holder = s.ReservedBy
		}
		if s.ID == "A4" && s.ReservedBy != holder {
			t.Fatalf("A3 and A4 held by different tickets: %q vs %q", holder, s.ReservedBy)
		}
	}
}

func TestCheckIn(t *testing.T) {
	store := newFixture(t, 2)
	ctx := context.Background()
	if _, err := NewReservationService(store, nil, nil, nil).Reserve(ctx, "t1", []string{"A1", "A2"}); err != nil {
		t.Fatal(err)
	}
	svc := NewCheckInService(store, nil)

	seats, err := svc.CheckIn(ctx, "CODE0001", []string{"A1"})
	if err != nil {
		t.Fatal(err)
	}
	flags := map[string]bool{}
	for _, s := range seats {
		flags[s.ID] = s.CheckedIn
	}
	if !flags["A1"] || flags["A2"] || len(flags) != 2 {
		t.Fatalf("unexpected flags %v", flags)
	}

	_, err = svc.CheckIn(ctx, "CODE0001", []string{"A1"})
	wantKind(t, err, repository.ErrConflict, "Seat A1 is already checked in")
	_, err = svc.CheckIn(ctx, "CODE0001", []string{"A3"})
	wantKind(t, err, repository.ErrConflict, "Seat A3 is not reserved by this ticket")
	_, err = svc.CheckIn(ctx, "CODE0001", []string{"Z9"})
	wantKind(t, err, repository.ErrNotFound, "Seat Z9 does not exist")
	_, err = svc.CheckIn(ctx, "CODE0002", []string{"A3"})
	wantKind(t, err, repository.ErrBadRequest, "Seat need to be confirmed first")
	_, err = svc.CheckIn(ctx, "NOPE", []string{"A1"})
	wantKind(t, err, repository.ErrNotFound, "Ticket not found")
}

func TestCreateCustomer(t *testing.T) {
	store := repository.NewMemoryStore()
	sg := time.FixedZone("SGT", 8*3600)
	svc := NewCustomerService(store, sg, nil)
	svc.now = func() time.Time { return time.Date(2024, 12, 31, 16, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	c, tk, err := svc.Create(ctx, CreateCustomerInput{Email: " Guest@Example.com ", OrderID: "D_DAY", Quotas: map[string]int{"catA": 1, "catB": 0}})
	if err != nil {
		t.Fatal(err)
	}
	if c.Email != "guest@example.com" || tk.Code != "0Ha4_DAY" || c.TicketIDs[0] != tk.ID {
		t.Fatalf("unexpected customer %+v ticket %+v", c, tk)
	}

	_, _, err = svc.Create(ctx, CreateCustomerInput{Email: "guest@example.com", Quotas: map[string]int{"catA": 1}})
	wantKind(t, err, repository.ErrConflict, "")
	_, _, err = svc.Create(ctx, CreateCustomerInput{Email: "not-an-email", Quotas: map[string]int{"catA": 1}})
	wantKind(t, err, repository.ErrBadRequest, "")
	_, _, err = svc.Create(ctx, CreateCustomerInput{Email: "x@example.com", Quotas: map[string]int{"catA": 0}})
	wantKind(t, err, repository.ErrBadRequest, "")
	_, _, err = svc.Create(ctx, CreateCustomerInput{Email: "y@example.com", Quotas: map[string]int{"catA": -1}})
	wantKind(t, err, repository.ErrBadRequest, "")
}

func TestLogin(t *testing.T) {
	store := newFixture(t, 2)
	svc := NewAuthService(store, "s3cret", time.Hour)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "C1@example.com", "CODE0001")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := utils.ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "t1" || claims.Role != model.RoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}

	_, err = svc.Login(ctx, "c1@example.com", "CODE0002")
	wantKind(t, err, repository.ErrUnauthorized, "")
	_, err = svc.Login(ctx, "nobody@example.com", "CODE0001")
	wantKind(t, err, repository.ErrUnauthorized, "")
	_, err = svc.Login(ctx, "", "CODE0001")
	wantKind(t, err, repository.ErrBadRequest, "")
}

func TestProfile(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	svc := NewProfileService(store)

	p, err := svc.Profile(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Email != "c1@example.com" || p.TicketCode != "CODE0001" || p.SeatConfirmed || len(p.Seats) != 0 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := NewReservationService(store, nil, nil, nil).Reserve(ctx, "t1", []string{"A1", "A2"}); err != nil {
		t.Fatal(err)
	}
	p, _ = svc.Profile(ctx, "t1")
	if !p.SeatConfirmed || len(p.Seats) != 2 {
		t.Fatalf("unexpected profile after reserve %+v", p)
	}
	_, err = svc.Profile(ctx, "missing")
	wantKind(t, err, repository.ErrNotFound, "")
}

type recordingInvalidator struct{ prefixes []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, prefix string) error {
	r.prefixes = append(r.prefixes, prefix)
	return nil
}

func TestUpsertSeats(t *testing.T) {
	store := newFixture(t, 0)
	cache := &recordingInvalidator{}
	pub := &recordingPublisher{}
	svc := NewSeatService(store, pub, cache, nil)
	ctx := context.Background()

	err := svc.Upsert(ctx, []model.Seat{{ID: "B1", Category: "catB", LeftID: "A6"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(cache.prefixes) != 1 || cache.prefixes[0] != MetadataCachePrefix {
		t.Fatalf("cache not invalidated: %v", cache.prefixes)
	}
	if !pub.last().Seats["B1"] {
		t.Fatal("new seat should be published as available")
	}
	topo, _ := svc.Topology(ctx)
	if len(topo) != 7 {
		t.Fatalf("expected 7 seats, got %d", len(topo))
	}

	wantKind(t, svc.Upsert(ctx, []model.Seat{{ID: "bad.id", Category: "catA"}}), repository.ErrBadRequest, "Invalid seat id")
	wantKind(t, svc.Upsert(ctx, []model.Seat{{ID: "C1", Category: "catA", RightID: "C2"}}), repository.ErrBadRequest, "unknown neighbour")
	wantKind(t, svc.Upsert(ctx, []model.Seat{{ID: "C1"}}), repository.ErrBadRequest, "no category")
}

func TestTicketSeats(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	if _, err := NewReservationService(store, nil, nil, nil).Reserve(ctx, "t1", []string{"A1", "A2"}); err != nil {
		t.Fatal(err)
	}
	svc := NewSeatService(store, nil, nil, nil)
	ticket, seats, err := svc.TicketSeats(ctx, "CODE0001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.ID != "t1" || len(seats) != 2 || seats[0].CheckedIn {
		t.Fatalf("unexpected %+v %+v", ticket, seats)
	}
	_, _, err = svc.TicketSeats(ctx, "NOPE")
	wantKind(t, err, repository.ErrNotFound, "")
}
