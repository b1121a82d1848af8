package daily

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/blake2b"
)

const dateLayout = "2006-01-02"

// Calendar maps instants onto the single civic day used system-wide, so that
// generation and lookup never disagree about what "today" is.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for the IANA zone name (empty means UTC).
func NewCalendar(zone string) (Calendar, error) {
	if zone == "" {
		return Calendar{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return Calendar{loc: loc}, nil
}

// Location is the canonical timezone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DateKey returns YYYY-MM-DD of t in the canonical timezone.
func (c Calendar) DateKey(t time.Time) string {
	return t.In(c.Location()).Format(dateLayout)
}

// ParseDate validates a YYYY-MM-DD key.
func ParseDate(key string) (time.Time, error) {
	t, err := time.Parse(dateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// AddDays shifts a date key by n calendar days.
func AddDays(key string, n int) (string, error) {
	t, err := ParseDate(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(dateLayout), nil
}

// PickIndex returns a uniform index in [0, n) derived from a keyed BLAKE2b of
// (date, scope). The same salt, date, scope and n always yield the same index,
// so the salt must be a secret: anyone holding it can predict every pick.
func PickIndex(salt, date, scope string, n int) int {
	if n <= 0 {
		return 0
	}
	key := blake2b.Sum256([]byte(salt))
	h, err := blake2b.New256(key[:])
	if err != nil {
		// A 32-byte key is always accepted.
		panic(err)
	}
	h.Write([]byte(date))
	h.Write([]byte{0})
	h.Write([]byte(scope))
	sum := h.Sum(nil)
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// RandomIndex returns an index in [0, n) from crypto/rand.
func RandomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random index: %w", err)
	}
	return int(v.Int64()), nil
}
