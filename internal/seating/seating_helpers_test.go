package seating

import (
	"reflect"
	"testing"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// row links ids left to right into one row of the given category.
func row(category string, ids ...string) []model.Seat {
	seats := make([]model.Seat, len(ids))
	for i, id := range ids {
		s := model.Seat{ID: id, Label: id, Level: "Level 1", Category: category, IsAvailable: true}
		if i > 0 {
			s.LeftID = ids[i-1]
		}
		if i < len(ids)-1 {
			s.RightID = ids[i+1]
		}
		seats[i] = s
	}
	return seats
}

func newManager(t *testing.T, seats []model.Seat, quotas map[string]int) *Manager {
	t.Helper()
	m, err := NewManager(seats, nil, Options{Quotas: quotas, DefaultLevel: "Level 1"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func equalIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s: got %v, want %v", what, got, want)
	}
}
