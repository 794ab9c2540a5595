package seating

import (
	"fmt"
	"strings"
)

// WarningKind identifies a warning variant on the wire.
type WarningKind string

const (
	KindSeatTaken     WarningKind = "SEAT_TAKEN"
	KindCategoryLimit WarningKind = "MAX_CAT_LIMIT_EXCEEDED"
	KindIsolation     WarningKind = "SEAT_ISOLATED"
)

// Warning is produced by an audit.  The set of implementations is closed.
type Warning interface {
	Kind() WarningKind
	Message() string
	isWarning()
}

// SeatTakenWarning reports a selected seat that was reserved by someone else
// and has been dropped from the selection.
type SeatTakenWarning struct {
	SeatID string `json:"seat_id"`
}

func (SeatTakenWarning) Kind() WarningKind { return KindSeatTaken }
func (w SeatTakenWarning) Message() string {
	return fmt.Sprintf("seat %s was taken and has been unselected", w.SeatID)
}
func (SeatTakenWarning) isWarning() {}

// CategoryLimitWarning reports seats dropped because a category quota was
// exceeded.
type CategoryLimitWarning struct {
	Category string   `json:"category"`
	Limit    int      `json:"limit"`
	Dropped  []string `json:"dropped"`
}

func (CategoryLimitWarning) Kind() WarningKind { return KindCategoryLimit }
func (w CategoryLimitWarning) Message() string {
	return fmt.Sprintf("at most %d %s seat(s) allowed, unselected %s",
		w.Limit, w.Category, strings.Join(w.Dropped, ","))
}
func (CategoryLimitWarning) isWarning() {}

// IsolationWarning reports a free seat that the selection would leave
// isolated between occupied neighbours.
type IsolationWarning struct {
	SeatID         string   `json:"seat_id"`
	NeighborLabels []string `json:"neighbor_labels"`
}

func (IsolationWarning) Kind() WarningKind { return KindIsolation }
func (w IsolationWarning) Message() string {
	return fmt.Sprintf("seat %s would be isolated between %s",
		w.SeatID, strings.Join(w.NeighborLabels, " and "))
}
func (IsolationWarning) isWarning() {}
