//go:build !linux

package system

// HasSecureRNG always returns false outside of Linux.
func HasSecureRNG() bool {
	return false
}

// HasSecureKernelVersion always returns false outside of Linux.
func HasSecureKernelVersion() bool {
	return false
}
