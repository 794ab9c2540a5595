package seating

import (
	"fmt"
	"sort"
)

// ReadinessCode classifies why a selection cannot be submitted yet.
type ReadinessCode string

const (
	ReadinessUnexpectedSeatCount ReadinessCode = "UNEXPECTED_NUM_OF_SEATS"
	ReadinessIsolatedSeats       ReadinessCode = "ISOLATED_SEATS_DETECTED"
)

// ReadinessError is returned by CheckReadiness.
type ReadinessError struct {
	Code    ReadinessCode
	Message string
	// Context lists the offending categories or isolated seat labels.
	Context  []string
	Isolated []IsolationWarning
}

func (e *ReadinessError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, joinLabels(e.Context))
}

// CheckReadiness reports whether the current selection would pass the
// committer's count and isolation checks.  It does not see conflicts with
// seats taken since the last availability update.
func (m *Manager) CheckReadiness() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quotas != nil {
		remaining := Remaining(m.quotas, CountByCategory(m.seats, m.selection))
		if len(remaining) > 0 {
			ctx := make([]string, 0, len(remaining))
			for cat, n := range remaining {
				ctx = append(ctx, fmt.Sprintf("%s: %d", cat, n))
			}
			sort.Strings(ctx)
			return &ReadinessError{
				Code:    ReadinessUnexpectedSeatCount,
				Message: "selected seat count does not match the ticket entitlement",
				Context: ctx,
			}
		}
	}

	isolated := WouldIsolate(m.seats, m.selection, m.taken)
	if len(isolated) == 0 {
		return nil
	}
	warnings := make([]IsolationWarning, 0, len(isolated))
	for _, id := range isolated {
		warnings = append(warnings, IsolationWarning{
			SeatID:         id,
			NeighborLabels: m.labels(m.seats[id].Neighbors()),
		})
	}
	return &ReadinessError{
		Code:     ReadinessIsolatedSeats,
		Message:  "other seats would be isolated by this selection",
		Context:  m.labels(isolated),
		Isolated: warnings,
	}
}
