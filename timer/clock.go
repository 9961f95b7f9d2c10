package timer

import (
	"time"
)

// Clock is the time source of a [Handle]. Implementations must be monotonic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewClock returns the system clock. Values returned by its Now method carry
// a monotonic reading, so deadlines are unaffected by wall clock changes.
func NewClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }
