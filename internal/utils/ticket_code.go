package utils

import (
    "strings"
    "time"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// EncodeBase62 renders n with the digits 0-9A-Za-z.  Zero encodes as "".
func EncodeBase62(n uint64) string {
    var b []byte
    for n > 0 {
        b = append(b, base62Alphabet[n%62])
        n /= 62
    }
    for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
        b[i], b[j] = b[j], b[i]
    }
    return string(b)
}

// TicketCode derives the eight character login code of a ticket.  The first
// four characters encode the issue minute (month, day, hour, minute packed
// into one integer) in base62, left padded with '0'; the last four are the
// tail of the order id.  t is interpreted in loc.
func TicketCode(t time.Time, loc *time.Location, orderID string) string {
    if loc != nil {
        t = t.In(loc)
    }
    packed := uint64(t.Month())<<16 | uint64(t.Day())<<11 | uint64(t.Hour())<<6 | uint64(t.Minute())
    stamp := EncodeBase62(packed)
    if len(stamp) < 4 {
        stamp = strings.Repeat("0", 4-len(stamp)) + stamp
    }

    tail := orderID
    if len(tail) > 4 {
        tail = tail[len(tail)-4:]
    }
    return stamp + tail
}
