//go:build !testenv

package nitro

import (
	"time"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
)

type testenvOptions struct{}

// chainTime returns the time at which certificate chains are validated.
func (v *Verifier) chainTime(*enclave.Document) time.Time {
	return v.now()
}
