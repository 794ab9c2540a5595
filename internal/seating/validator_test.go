package seating

import (
	"testing"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

func occupiedSet(ids ...string) Occupied {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func TestIsIsolated(t *testing.T) {
	topo := NewTopology(append(row("catA", "A", "B", "C"), model.Seat{ID: "S", Category: "catA"}))

	tests := []struct {
		name     string
		id       string
		occupied Occupied
		want     bool
	}{
		{"both neighbours occupied", "B", occupiedSet("A", "C"), true},
		{"one neighbour free", "B", occupiedSet("A"), false},
		{"seat itself occupied", "B", occupiedSet("A", "B", "C"), false},
		{"row end with only neighbour occupied", "A", occupiedSet("B"), true},
		{"singleton never isolated", "S", occupiedSet(), false},
		{"unknown seat", "Z", occupiedSet("A", "C"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIsolated(topo, tt.id, tt.occupied); got != tt.want {
				t.Fatalf("IsIsolated(%s) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIsIsolatedIgnoresNotSelectable(t *testing.T) {
	seats := row("catA", "A", "B", "C")
	seats[1].NotSelectable = true
	if IsIsolated(NewTopology(seats), "B", occupiedSet("A", "C")) {
		t.Fatal("a seat that can never be offered must not be reported as isolated")
	}
}

func TestIsolationIsLocalOnly(t *testing.T) {
	// X [A B C] Y: a three seat gap flanked by occupied seats is not flagged.
	topo := NewTopology(row("catA", "X", "A", "B", "C", "Y"))
	got := IsolatedSeats(topo, occupiedSet("X", "Y"))
	equalIDs(t, "isolated", got, nil)
}

func TestWouldIsolate(t *testing.T) {
	topo := NewTopology(row("catA", "A", "B", "C", "D"))

	equalIDs(t, "gap of one", WouldIsolate(topo, []string{"A", "C"}, occupiedSet()), []string{"B"})
	equalIDs(t, "gap of two", WouldIsolate(topo, []string{"A", "D"}, occupiedSet()), nil)
	equalIDs(t, "existing taken seat", WouldIsolate(topo, []string{"B"}, occupiedSet("D")), []string{"A", "C"})
	// Neighbours already occupied are not reported.
	equalIDs(t, "occupied neighbour", WouldIsolate(topo, []string{"C"}, occupiedSet("B", "D")), nil)
}

func TestQuotaMatches(t *testing.T) {
	tests := []struct {
		name   string
		quotas map[string]int
		counts map[string]int
		want   bool
	}{
		{"exact", map[string]int{"catA": 2, "catB": 1}, map[string]int{"catA": 2, "catB": 1}, true},
		{"zero quota omitted in counts", map[string]int{"catA": 2, "catC": 0}, map[string]int{"catA": 2}, true},
		{"too few", map[string]int{"catA": 2}, map[string]int{"catA": 1}, false},
		{"unentitled category", map[string]int{"catA": 1}, map[string]int{"catA": 1, "catB": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuotaMatches(tt.quotas, tt.counts); got != tt.want {
				t.Fatalf("QuotaMatches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountByCategoryAndFormat(t *testing.T) {
	topo := NewTopology(append(row("catA", "A1", "A2"), row("catB", "B1")...))
	counts := CountByCategory(topo, []string{"A1", "A2", "B1", "missing"})
	if got, want := FormatCounts(counts), "{ catA: 2, catB: 1 }"; got != want {
		t.Fatalf("FormatCounts = %q, want %q", got, want)
	}
	rem := Remaining(map[string]int{"catA": 3, "catB": 1}, counts)
	if len(rem) != 1 || rem["catA"] != 1 {
		t.Fatalf("Remaining = %v", rem)
	}
}
