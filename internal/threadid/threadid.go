// Package threadid generates the identifiers tagging each built runtime.
package threadid

import (
	"sync/atomic"
)

var counter atomic.Uint64

// Gen returns a new identifier, unique within the process. Zero is never
// returned.
func Gen() uint64 {
	return counter.Add(1)
}
