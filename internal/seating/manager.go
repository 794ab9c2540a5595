package seating

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

var (
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatNotSelectable = errors.New("seat is not selectable")
)

// Options configures a Manager.
type Options struct {
	// Quotas holds the per-category entitlement of the ticket.  A nil map
	// disables the quota pass; in a non-nil map a missing category has a
	// quota of zero.
	Quotas       map[string]int
	DefaultLevel string
	// OnChange is invoked after every state change, outside the lock.
	OnChange func()
}

// Result is returned by every mutating operation.
type Result struct {
	Selection       []string  `json:"selection"`
	IsolatedSeatIDs []string  `json:"isolated_seat_ids"`
	Warnings        []Warning `json:"-"`
}

// Manager keeps one customer's working seat state consistent with the shared
// availability.  Every mutation and the audit that follows it run under one
// lock, so a server push can never interleave with a user click.
type Manager struct {
	mu        sync.Mutex
	seats     Topology
	order     []string
	states    map[string]*model.SeatState
	selection []string
	isolated  []string
	level     string
	quotas    map[string]int
	onChange  func()
}

// NewManager builds a manager from the venue topology and an initial state
// snapshot.  Seats absent from initial start free and unselected; keys of
// initial that are not seats are rejected.
func NewManager(seats []model.Seat, initial map[string]model.SeatState, opts Options) (*Manager, error) {
	m := &Manager{
		seats:    make(Topology, len(seats)),
		order:    make([]string, 0, len(seats)),
		states:   make(map[string]*model.SeatState, len(seats)),
		level:    opts.DefaultLevel,
		onChange: opts.OnChange,
	}
	for _, s := range seats {
		if _, dup := m.seats[s.ID]; dup {
			return nil, fmt.Errorf("duplicate seat id %q", s.ID)
		}
		m.seats[s.ID] = s
		m.order = append(m.order, s.ID)
		m.states[s.ID] = &model.SeatState{}
	}
	for id, st := range initial {
		cur, ok := m.states[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSeatNotFound, id)
		}
		*cur = st
	}
	if opts.Quotas != nil {
		m.quotas = make(map[string]int, len(opts.Quotas))
		for k, v := range opts.Quotas {
			m.quotas[k] = v
		}
	}
	for _, id := range m.order {
		if m.states[id].Selected {
			m.selection = append(m.selection, id)
		}
	}
	m.audit(nil)
	return m, nil
}

// SelectSeat selects a single seat.
func (m *Manager) SelectSeat(id string) (Result, error) {
	return m.SelectSeats([]string{id})
}

// SelectSeats marks ids as selected and audits the result.  If the audit has
// to drop seats to respect a quota it prefers the ids passed here.
func (m *Manager) SelectSeats(ids []string) (Result, error) {
	if err := m.checkKnown(ids); err != nil {
		return Result{}, err
	}
	for _, id := range ids {
		if m.seats[id].NotSelectable {
			return Result{}, fmt.Errorf("%w: %s", ErrSeatNotSelectable, id)
		}
	}

	m.mu.Lock()
	added := make([]string, 0, len(ids))
	for _, id := range ids {
		st := m.states[id]
		if st.Selected {
			continue
		}
		st.Selected = true
		m.selection = append(m.selection, id)
		added = append(added, id)
	}
	res := m.audit(added)
	m.mu.Unlock()

	m.changed()
	return res, nil
}

// UnselectSeat unselects a single seat.
func (m *Manager) UnselectSeat(id string) (Result, error) {
	return m.UnselectSeats([]string{id})
}

// UnselectSeats clears the selected flag of ids and audits.
func (m *Manager) UnselectSeats(ids []string) (Result, error) {
	if err := m.checkKnown(ids); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		m.states[id].Selected = false
		drop[id] = true
	}
	m.selection = without(m.selection, drop)
	res := m.audit(nil)
	m.mu.Unlock()

	m.changed()
	return res, nil
}

// UnselectAll clears the whole selection.
func (m *Manager) UnselectAll() (Result, error) {
	return m.UnselectSeats(m.order)
}

// UpdateTakenStatus overwrites the taken flag of the given seats and audits.
// Every key must be a known seat.
func (m *Manager) UpdateTakenStatus(taken map[string]bool) (Result, error) {
	for id := range taken {
		if _, ok := m.seats[id]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrSeatNotFound, id)
		}
	}

	m.mu.Lock()
	for id, v := range taken {
		m.states[id].Taken = v
	}
	res := m.audit(nil)
	m.mu.Unlock()

	m.changed()
	return res, nil
}

// Audit re-runs the audit without mutating anything first.
func (m *Manager) Audit() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audit(nil)
}

// Selection returns a copy of the selected ids in selection order.
func (m *Manager) Selection() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.selection...)
}

// IsolatedSeatIDs returns a copy of the isolated set from the last audit.
func (m *Manager) IsolatedSeatIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.isolated...)
}

// State returns the current state of a seat.
func (m *Manager) State(id string) (model.SeatState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return model.SeatState{}, false
	}
	return *st, true
}

// States returns a copy of the whole seat state map.
func (m *Manager) States() map[string]model.SeatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.SeatState, len(m.states))
	for id, st := range m.states {
		out[id] = *st
	}
	return out
}

// Seat returns the topology entry of a seat.
func (m *Manager) Seat(id string) (model.Seat, bool) {
	s, ok := m.seats[id]
	return s, ok
}

// SeatIDs returns every known seat id in topology order.
func (m *Manager) SeatIDs() []string {
	return append([]string(nil), m.order...)
}

// SetCurrentLevel changes the level being viewed.  It does not audit.
func (m *Manager) SetCurrentLevel(level string) {
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
	m.changed()
}

// CurrentLevel returns the level being viewed.
func (m *Manager) CurrentLevel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// audit restores the selection invariants.  Callers hold m.mu.
func (m *Manager) audit(seed []string) Result {
	var warnings []Warning

	kept := make([]string, 0, len(m.selection))
	for _, id := range m.selection {
		st := m.states[id]
		if st.Taken {
			st.Selected = false
			warnings = append(warnings, SeatTakenWarning{SeatID: id})
			continue
		}
		kept = append(kept, id)
	}
	m.selection = kept

	if m.quotas != nil {
		warnings = append(warnings, m.enforceQuotas(seed)...)
	}

	m.isolated = IsolatedSeats(m.seats, m.occupied)

	return Result{
		Selection:       append([]string(nil), m.selection...),
		IsolatedSeatIDs: append([]string(nil), m.isolated...),
		Warnings:        warnings,
	}
}

func (m *Manager) enforceQuotas(seed []string) []Warning {
	seeded := make(map[string]bool, len(seed))
	for _, id := range seed {
		seeded[id] = true
	}

	byCat := make(map[string][]string)
	for _, id := range m.selection {
		cat := m.seats[id].Category
		byCat[cat] = append(byCat[cat], id)
	}
	cats := make([]string, 0, len(byCat))
	for cat := range byCat {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var warnings []Warning
	drop := make(map[string]bool)
	for _, cat := range cats {
		ids := byCat[cat]
		limit := m.quotas[cat]
		over := len(ids) - limit
		if over <= 0 {
			continue
		}
		dropped := pickNewest(ids, seeded, over)
		for _, id := range dropped {
			m.states[id].Selected = false
			drop[id] = true
		}
		warnings = append(warnings, CategoryLimitWarning{Category: cat, Limit: limit, Dropped: dropped})
	}
	if len(drop) > 0 {
		m.selection = without(m.selection, drop)
	}
	return warnings
}

// pickNewest chooses n ids to drop, newest first, taking seeded ids before
// ids that were already selected.
func pickNewest(ids []string, seeded map[string]bool, n int) []string {
	out := make([]string, 0, n)
	for _, wantSeeded := range []bool{true, false} {
		for i := len(ids) - 1; i >= 0 && len(out) < n; i-- {
			if seeded[ids[i]] == wantSeeded {
				out = append(out, ids[i])
			}
		}
	}
	return out
}

func (m *Manager) occupied(id string) bool {
	st, ok := m.states[id]
	return ok && (st.Selected || st.Taken)
}

func (m *Manager) taken(id string) bool {
	st, ok := m.states[id]
	return ok && st.Taken
}

func (m *Manager) checkKnown(ids []string) error {
	for _, id := range ids {
		if _, ok := m.seats[id]; !ok {
			return fmt.Errorf("%w: %s", ErrSeatNotFound, id)
		}
	}
	return nil
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

func without(ids []string, drop map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) labels(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.seats[id].DisplayName())
	}
	return out
}

func joinLabels(labels []string) string {
	return strings.Join(labels, ", ")
}
