package cache

import (
	"fmt"
	"time"

	"github.com/agentuity/go-dbcache/rowstore"
)

// Policy decides whether a stored entry may be served without recomputing it.
type Policy interface {
	// Stale reports whether entry must be recomputed at time now. A nil
	// entry (no row stored) is always stale.
	Stale(entry *rowstore.Entry, now time.Time) bool
	String() string
}

type maxAge time.Duration

// MaxAge returns a Policy under which an entry is stale once more than d has
// elapsed since it was last written. An entry exactly d old is still fresh.
func MaxAge(d time.Duration) Policy {
	return maxAge(d)
}

func (p maxAge) Stale(entry *rowstore.Entry, now time.Time) bool {
	if entry == nil {
		return true
	}
	return now.Sub(entry.ReferenceTime()) > time.Duration(p)
}

func (p maxAge) String() string {
	return fmt.Sprintf("max-age %s", time.Duration(p))
}

type absoluteExpiry time.Time

// AbsoluteExpiry returns a Policy under which an entry is stale when it was
// last written before cutoff. An entry written exactly at cutoff is fresh.
func AbsoluteExpiry(cutoff time.Time) Policy {
	return absoluteExpiry(cutoff)
}

func (p absoluteExpiry) Stale(entry *rowstore.Entry, _ time.Time) bool {
	if entry == nil {
		return true
	}
	return time.Time(p).After(entry.ReferenceTime())
}

func (p absoluteExpiry) String() string {
	return fmt.Sprintf("expires %s", time.Time(p).Format(time.RFC3339Nano))
}
