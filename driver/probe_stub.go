//go:build !linux || ioruntime_nouring

package driver

// DetectUring reports whether the running kernel permits io_uring, which is
// never the case for this build.
func DetectUring() bool { return false }
