package nitro

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/noop"
)

// testTime is millisecond-aligned so that document timestamps are exact.
var testTime = time.UnixMilli(time.Now().UnixMilli())

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newAttester(opts ...noop.Option) *noop.Attester {
	return noop.NewAttester(append(
		[]noop.Option{noop.WithClock(fixedClock(testTime))},
		opts...,
	)...)
}

// newVerifier returns a verifier that trusts the given attester's roots and
// PCRs, with its clock set to testTime.
func newVerifier(t *testing.T, a *noop.Attester, opts ...Option) *Verifier {
	t.Helper()
	m, err := FromDocument(a.Document(nil))
	require.NoError(t, err)
	return NewVerifier(m, append(
		[]Option{WithRoots(a.Roots()), WithClock(fixedClock(testTime))},
		opts...,
	)...)
}

func withKey() *enclave.AuxInfo {
	return &enclave.AuxInfo{PublicKey: bytes.Repeat([]byte{1}, 32)}
}

func sign(t *testing.T, a *noop.Attester, doc *enclave.Document) []byte {
	t.Helper()
	raw, err := a.Sign(doc)
	require.NoError(t, err)
	return raw
}

func attest(t *testing.T, a *noop.Attester, aux *enclave.AuxInfo) []byte {
	t.Helper()
	return sign(t, a, a.Document(aux))
}

func b64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func encodeEnvelope(t *testing.T, env *Envelope) []byte {
	t.Helper()
	if env.Unprotected == nil {
		env.Unprotected = cbor.RawMessage{0xa0}
	}
	raw, err := cbor.Marshal(env)
	require.NoError(t, err)
	return raw
}
