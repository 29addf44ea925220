// Package keysync implements the mutual attestation protocol that enclaves of
// the same track use to share their secret key pair.  The requester attests
// an ephemeral public key and a nonce; the responder verifies the requester's
// document, seals the secret to the ephemeral key, and attests the secret's
// public key along with the requester's nonce.
package keysync

import (
	"errors"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
)

const (
	kindNotInitialized = "not_initialized"
	kindInitialized    = "initialized"
	kindBadRequest     = "bad_request"
	kindTransport      = "transport"
	kindNonceMismatch  = "nonce_mismatch"
	kindDecrypt        = "decrypt"
	kindKeyMismatch    = "key_mismatch"
	kindAttestation    = "attestation"
)

var (
	ErrNotInitialized = errors.New("enclave has no secret key yet")
	ErrInitialized    = errors.New("enclave already has a secret key")
	ErrBadRequest     = errors.New("malformed key sync message")
	ErrNonceMismatch  = errors.New("peer's attestation document doesn't contain our nonce")
	ErrKeyMismatch    = errors.New("peer's secret key doesn't match its attested public key")
	ErrDecrypt        = errors.New("failed to decrypt peer's secret key")
	ErrAttestation    = errors.New("failed to create attestation document")

	// errTransport marks failures to talk to the peer at all.
	errTransport = errors.New("failed to reach peer")
)

// Outcome maps the given key sync error to the label that metrics and logs
// use for it.
func Outcome(err error) string {
	switch {
	case err == nil:
		return nitro.Kind(nil)
	case errors.Is(err, ErrNotInitialized):
		return kindNotInitialized
	case errors.Is(err, ErrInitialized):
		return kindInitialized
	case errors.Is(err, ErrBadRequest):
		return kindBadRequest
	case errors.Is(err, errTransport):
		return kindTransport
	case errors.Is(err, ErrNonceMismatch):
		return kindNonceMismatch
	case errors.Is(err, ErrDecrypt):
		return kindDecrypt
	case errors.Is(err, ErrKeyMismatch):
		return kindKeyMismatch
	case errors.Is(err, ErrAttestation):
		return kindAttestation
	}
	return nitro.Kind(err)
}
