package nitro

import (
	"fmt"
	"time"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
)

// MaxAge is the maximum age of an attestation document that we accept.
const MaxAge = 5 * time.Minute

// checkFreshness rejects documents from the future and documents older than
// MaxAge.  A document that is exactly MaxAge old is still fresh.
func checkFreshness(doc *enclave.Document, now time.Time) error {
	nowMs := now.UnixMilli()
	if nowMs < 0 || doc.Timestamp > uint64(nowMs) {
		return fmt.Errorf("%w: timestamp %d is in the future", ErrInvalidTimestamp, doc.Timestamp)
	}
	age := time.Duration(uint64(nowMs)-doc.Timestamp) * time.Millisecond
	if age > MaxAge {
		return &StaleError{Age: age, MaxAge: MaxAge}
	}
	return nil
}
