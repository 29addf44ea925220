package enclave

import (
	"sync"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
)

// Keys holds the enclave's key material: the long-lived secret key pair that
// all enclaves of a track share, and the ephemeral key pair that is used
// once, to receive the secret from a peer enclave.  The struct implements
// getters and setters that allow for thread-safe access.
type Keys struct {
	sync.Mutex
	secret    *box.KeyPair
	ephemeral *box.KeyPair
}

// NewKeys returns a new, uninitialized key store holding the given ephemeral
// key pair.
func NewKeys(ephemeral *box.KeyPair) *Keys {
	return &Keys{ephemeral: ephemeral}
}

// Initialized returns true once the secret key pair is set.
func (k *Keys) Initialized() bool {
	k.Lock()
	defer k.Unlock()

	return k.secret != nil
}

// Secret returns the secret key pair, or nil if the enclave is not yet
// initialized.
func (k *Keys) Secret() *box.KeyPair {
	k.Lock()
	defer k.Unlock()

	return k.secret
}

// Ephemeral returns the ephemeral key pair, or nil once the secret is set.
func (k *Keys) Ephemeral() *box.KeyPair {
	k.Lock()
	defer k.Unlock()

	return k.ephemeral
}

// SetSecret sets the secret key pair and discards the ephemeral key pair,
// which is no longer needed.  The secret is only ever set once; subsequent
// calls return false and leave the keys unchanged.
func (k *Keys) SetSecret(secret *box.KeyPair) bool {
	k.Lock()
	defer k.Unlock()

	if k.secret != nil || secret == nil {
		return false
	}
	k.secret = secret
	k.ephemeral = nil
	return true
}
