// Package seating holds the seat selection rules shared by the customer
// client and the reservation committer: category quota checks, isolated
// seat detection and the per-session Selection Manager.
package seating

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// Topology is the venue seat map keyed by seat id.
type Topology map[string]model.Seat

// NewTopology indexes seats by id.  Later duplicates overwrite earlier ones.
func NewTopology(seats []model.Seat) Topology {
	t := make(Topology, len(seats))
	for _, s := range seats {
		t[s.ID] = s
	}
	return t
}

// Occupied reports whether a seat is selected or taken in the state being
// evaluated.
type Occupied func(id string) bool

// IsIsolated reports whether seat id is a free, selectable seat with at least
// one declared neighbour where every declared neighbour is occupied.  Only
// immediate neighbours are inspected.
func IsIsolated(t Topology, id string, occupied Occupied) bool {
	s, ok := t[id]
	if !ok || s.NotSelectable || occupied(id) {
		return false
	}
	neighbors := s.Neighbors()
	if len(neighbors) == 0 {
		return false
	}
	for _, n := range neighbors {
		if !occupied(n) {
			return false
		}
	}
	return true
}

// IsolatedSeats recomputes the full isolated set.  The result is sorted.
func IsolatedSeats(t Topology, occupied Occupied) []string {
	out := make([]string, 0)
	for id := range t {
		if IsIsolated(t, id, occupied) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// WouldIsolate returns the neighbours of candidates that would be isolated
// once every candidate is occupied in addition to the seats occupied already.
// Seats are reported in candidate order, each at most once.
func WouldIsolate(t Topology, candidates []string, occupied Occupied) []string {
	pending := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		pending[id] = true
	}
	after := func(id string) bool { return pending[id] || occupied(id) }

	seen := make(map[string]bool)
	var out []string
	for _, id := range candidates {
		s, ok := t[id]
		if !ok {
			continue
		}
		for _, n := range s.Neighbors() {
			if seen[n] {
				continue
			}
			seen[n] = true
			if IsIsolated(t, n, after) {
				out = append(out, n)
			}
		}
	}
	return out
}

// CountByCategory tallies seats per category.  Unknown ids are skipped.
func CountByCategory(t Topology, ids []string) map[string]int {
	counts := make(map[string]int)
	for _, id := range ids {
		if s, ok := t[id]; ok {
			counts[s.Category]++
		}
	}
	return counts
}

// QuotaMatches reports whether counts equal quotas exactly.  A category that
// appears on only one side is compared against zero.
func QuotaMatches(quotas, counts map[string]int) bool {
	for _, cat := range categories(quotas, counts) {
		if quotas[cat] != counts[cat] {
			return false
		}
	}
	return true
}

// Remaining returns quota minus count for every category with a non-zero
// difference.
func Remaining(quotas, counts map[string]int) map[string]int {
	out := make(map[string]int)
	for _, cat := range categories(quotas, counts) {
		if d := quotas[cat] - counts[cat]; d != 0 {
			out[cat] = d
		}
	}
	return out
}

// FormatCounts renders counts as "{ catA: 2, catB: 0 }" with sorted keys.
func FormatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func categories(maps ...map[string]int) []string {
	set := make(map[string]bool)
	for _, m := range maps {
		for k := range m {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
