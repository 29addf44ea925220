package nitro

import (
	"errors"
	"fmt"
	"time"
)

// The kinds of verification failure.  Every error returned by a Verifier
// matches exactly one of them with errors.Is.
var (
	ErrParse            = errors.New("attestation document parse error")
	ErrChainInvalid     = errors.New("attestation certificate chain invalid")
	ErrSignatureInvalid = errors.New("attestation signature invalid")
	ErrCodeUntrusted    = errors.New("enclave code untrusted")
	ErrStale            = errors.New("attestation document stale")
	ErrInvalidTimestamp = errors.New("attestation document timestamp invalid")
	ErrInvalidPublicKey = errors.New("enclave public key invalid")
	ErrEncryption       = errors.New("encryption to enclave public key failed")
)

// CodeUntrustedError reports a PCR that is missing or doesn't match what we
// expected.  It only carries the observed value; the expected value must not
// end up in logs.
type CodeUntrustedError struct {
	PCR      uint
	Observed string
}

func (e *CodeUntrustedError) Error() string {
	return fmt.Sprintf("%v: PCR%d: %s", ErrCodeUntrusted, e.PCR, e.Observed)
}

func (e *CodeUntrustedError) Is(target error) bool {
	return target == ErrCodeUntrusted
}

// StaleError reports an attestation document that is older than allowed.
type StaleError struct {
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("%v: age %v exceeds %v", ErrStale, e.Age, e.MaxAge)
}

func (e *StaleError) Is(target error) bool {
	return target == ErrStale
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrParse, "parse"},
	{ErrChainInvalid, "chain_invalid"},
	{ErrSignatureInvalid, "signature_invalid"},
	{ErrCodeUntrusted, "code_untrusted"},
	{ErrStale, "stale"},
	{ErrInvalidTimestamp, "invalid_timestamp"},
	{ErrInvalidPublicKey, "invalid_public_key"},
	{ErrEncryption, "encryption"},
}

// Kind returns a short, stable name for the kind of the given verification
// error.  It is meant for log fields and metric labels.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// fail returns an error of the given kind with a human-readable reason.  The
// reason is flattened into a string, so callers can't branch on the
// underlying cause.
func fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
