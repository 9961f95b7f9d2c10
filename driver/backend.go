package driver

import (
	"fmt"
)

// Backend identifies the kernel I/O model a [Driver] is built on.
type Backend uint8

const (
	// BackendUnknown is the zero value, and never reported by a live driver.
	BackendUnknown Backend = iota
	// BackendUring is the io_uring completion-ring backend.
	BackendUring
	// BackendLegacy is the readiness-polling backend.
	BackendLegacy
)

// String returns the string representation of the backend.
func (x Backend) String() string {
	switch x {
	case BackendUnknown:
		return "unknown"
	case BackendUring:
		return "io_uring"
	case BackendLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Backend(%d)", x)
	}
}
