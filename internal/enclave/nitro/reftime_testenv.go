//go:build testenv

package nitro

import (
	"time"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
)

type testenvOptions struct {
	documentTime bool
}

// WithDocumentTime validates certificate chains at the document's own
// timestamp instead of the verifier's clock.  This lets us replay captured
// documents whose certificates have long expired.  Freshness is still checked
// against the clock.
func WithDocumentTime() Option {
	return func(v *Verifier) {
		v.testenv.documentTime = true
	}
}

func (v *Verifier) chainTime(doc *enclave.Document) time.Time {
	if v.testenv.documentTime {
		return time.UnixMilli(int64(doc.Timestamp))
	}
	return v.now()
}
