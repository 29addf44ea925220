// Package keyexchange coordinates key generation across the enclaves of a
// track.  The first enclave of a new track takes a lock in a shared store and
// generates the track's key; all others fetch the key from a peer.
package keyexchange

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
)

const (
	DefaultLockTTL   = time.Minute
	DefaultOpTimeout = 5 * time.Second
	keyPrefix        = "enclave-key:"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLockTTL sets how long the generation lock lives unless it is promoted
// to Loaded.  A holder that crashes releases the lock this way.
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.lockTTL = ttl
	}
}

// WithOpTimeout sets the deadline for each store round trip.
func WithOpTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.opTimeout = timeout
	}
}

// Coordinator implements the key generation lock.  It doesn't cache state;
// every call is a round trip to the store.
type Coordinator struct {
	store     Store
	lockTTL   time.Duration
	opTimeout time.Duration
}

// New returns a coordinator on top of the given store.
func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		lockTTL:   DefaultLockTTL,
		opTimeout: DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the store key for the given track.
func Key(track string) string {
	return keyPrefix + track
}

// State returns the current lock state of the given track.
func (c *Coordinator) State(ctx context.Context, track string) (_ LockState, err error) {
	defer errs.Wrap(&err, "failed to get key state of track %q", track)

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	value, ok, err := c.store.Get(ctx, Key(track))
	if err != nil {
		return Absent, err
	}
	return parseState(value, ok)
}

// ShouldGenerateKey returns true if the caller is now responsible for
// generating the track's key.  That is only the case if nobody has claimed
// the track yet and the caller won the race for the lock.
func (c *Coordinator) ShouldGenerateKey(ctx context.Context, track string) (bool, error) {
	l := log.With().Str("track", track).Logger()

	state, err := c.State(ctx, track)
	if errors.Is(err, ErrUnknownState) {
		l.Warn().Err(err).Msg("Unknown key state; not generating a key.")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch state {
	case Absent:
		l.Info().Msg("No key exists; attempting to acquire lock.")
		return c.AcquireGenerationLock(ctx, track)
	case InProgress:
		l.Info().Msg("Key generation already in progress.")
	case Loaded:
		l.Info().Msg("Key already loaded.")
	}
	return false, nil
}

// AcquireGenerationLock atomically takes the lock if nobody holds it.  The
// lock expires after the lock TTL.
func (c *Coordinator) AcquireGenerationLock(ctx context.Context, track string) (_ bool, err error) {
	defer errs.Wrap(&err, "failed to acquire generation lock of track %q", track)

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	acquired, err := c.store.SetNX(ctx, Key(track), valueInProgress, c.lockTTL)
	if err != nil {
		return false, err
	}
	if acquired {
		log.Info().Str("track", track).Msg("Acquired key generation lock.")
	} else {
		log.Info().Str("track", track).Msg("Another enclave is generating the key.")
	}
	return acquired, nil
}

// MarkKeyLoaded records that the track's key exists.  The record never
// expires.
func (c *Coordinator) MarkKeyLoaded(ctx context.Context, track string) (err error) {
	defer errs.Wrap(&err, "failed to mark key of track %q as loaded", track)

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Set(ctx, Key(track), valueLoaded); err != nil {
		return err
	}
	log.Info().Str("track", track).Msg("Marked key as loaded.")
	return nil
}

// ReleaseLock deletes the track's record so that another enclave can try to
// generate the key.
func (c *Coordinator) ReleaseLock(ctx context.Context, track string) (err error) {
	defer errs.Wrap(&err, "failed to release generation lock of track %q", track)

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Del(ctx, Key(track)); err != nil {
		return err
	}
	log.Warn().Str("track", track).Msg("Released key generation lock.")
	return nil
}
