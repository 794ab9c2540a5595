package model

import "time"

// Location places a seat on the venue map.  It is only used for rendering
// and carries no behaviour.
type Location struct {
    X   float64 `json:"x" bson:"x"`
    Y   float64 `json:"y" bson:"y"`
    Rot float64 `json:"rot" bson:"rot"` // degrees, clockwise
}

// Seat describes one seat of the venue.  The topology fields (label, level,
// category, location, adjacency) are fixed by venue configuration; the
// availability fields change only when a reservation is committed.
//
// Fields:
//  ID            – stable seat identifier (e.g. "H12").
//  Label         – display text.
//  Level         – floor the seat is on; each level is viewed separately.
//  Category      – entitlement tier (e.g. catA, catB, catC).
//  NotSelectable – administrative flag, the seat is never offered.
//  LeftID        – seat immediately to the left, empty at a row boundary.
//  RightID       – seat immediately to the right, empty at a row boundary.
//  IsAvailable   – false once reserved.
//  ReservedBy    – ticket holding the seat, empty when free.
//  UpdatedAt     – last modification timestamp.
type Seat struct {
    ID            string    `json:"id" bson:"_id"`
    Label         string    `json:"label" bson:"label"`
    Level         string    `json:"level" bson:"level"`
    Category      string    `json:"category" bson:"category"`
    Location      Location  `json:"location" bson:"location"`
    NotSelectable bool      `json:"not_selectable" bson:"notSelectable"`
    LeftID        string    `json:"left_id,omitempty" bson:"leftId,omitempty"`
    RightID       string    `json:"right_id,omitempty" bson:"rightId,omitempty"`
    IsAvailable   bool      `json:"is_available" bson:"isAvailable"`
    ReservedBy    string    `json:"reserved_by,omitempty" bson:"reservedBy,omitempty"`
    UpdatedAt     time.Time `json:"updated_at" bson:"updatedAt"`
}

// Neighbors returns the declared adjacent seat ids, skipping row boundaries.
func (s Seat) Neighbors() []string {
    out := make([]string, 0, 2)
    if s.LeftID != "" {
        out = append(out, s.LeftID)
    }
    if s.RightID != "" {
        out = append(out, s.RightID)
    }
    return out
}

// DisplayName joins label and level, e.g. "H12 (Level 1)".
func (s Seat) DisplayName() string {
    if s.Level == "" {
        return s.Label
    }
    return s.Label + " (" + s.Level + ")"
}

// SeatState is the client-side view of one seat during a selection session.
type SeatState struct {
    Selected bool `json:"selected"`
    Taken    bool `json:"taken"`
}

// CheckIn records that the holder of a reserved seat has arrived.
type CheckIn struct {
    SeatID      string    `json:"seat_id" bson:"seatId"`
    TicketID    string    `json:"ticket_id" bson:"ticketId"`
    CheckedInAt time.Time `json:"checked_in_at" bson:"checkedInAt"`
}
