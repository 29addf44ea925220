package keyexchange

import (
	"errors"
	"fmt"
)

// ErrUnknownState is returned for stored values that aren't a known lock
// state.
var ErrUnknownState = errors.New("unknown key state")

// LockState is the state of a track's key, as recorded in the store.
type LockState int

const (
	// Absent means that no enclave has claimed key generation.
	Absent LockState = iota
	// InProgress means that an enclave holds the generation lock.
	InProgress
	// Loaded means that the track's key exists in at least one enclave.
	Loaded
)

const (
	valueInProgress = "in-progress"
	valueLoaded     = "loaded"
)

func (s LockState) String() string {
	switch s {
	case Absent:
		return "absent"
	case InProgress:
		return valueInProgress
	case Loaded:
		return valueLoaded
	}
	return fmt.Sprintf("LockState(%d)", int(s))
}

// parseState maps a stored value to a lock state.  A missing value is Absent.
func parseState(value string, ok bool) (LockState, error) {
	if !ok {
		return Absent, nil
	}
	switch value {
	case valueInProgress:
		return InProgress, nil
	case valueLoaded:
		return Loaded, nil
	}
	return Absent, fmt.Errorf("%w: %q", ErrUnknownState, value)
}
