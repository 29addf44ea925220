package attestation

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/noop"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
	"github.com/worldcoin/world-chat-backend-sub000/internal/util/must"
)

func TestBuilder(t *testing.T) {
	attester := noop.NewAttester()
	nonce1, nonce2 := must.Get(nonce.New()), must.Get(nonce.New())
	key1, key2 := must.Get(box.NewKeyPair()), must.Get(box.NewKeyPair())

	cases := []struct {
		name         string
		initFields   []auxField
		attestFields []auxField
		wantAux      enclave.AuxInfo
	}{
		{
			name: "empty",
		},
		{
			name:       "nonce at initialization",
			initFields: []auxField{WithNonce(nonce1)},
			wantAux:    enclave.AuxInfo{Nonce: nonce1.ToSlice()},
		},
		{
			name:         "nonce at attestation",
			attestFields: []auxField{WithNonce(nonce1)},
			wantAux:      enclave.AuxInfo{Nonce: nonce1.ToSlice()},
		},
		{
			name:         "nonce being overwritten",
			initFields:   []auxField{WithNonce(nonce1)},
			attestFields: []auxField{WithNonce(nonce2)},
			wantAux:      enclave.AuxInfo{Nonce: nonce2.ToSlice()},
		},
		{
			name:         "nil values are ignored",
			initFields:   []auxField{WithNonce(nonce1), WithPublicKey(key1.Public)},
			attestFields: []auxField{WithNonce(nil), WithPublicKey(nil)},
			wantAux: enclave.AuxInfo{
				Nonce:     nonce1.ToSlice(),
				PublicKey: key1.Public[:],
			},
		},
		{
			name:         "everything overwritten",
			initFields:   []auxField{WithPublicKey(key1.Public), WithNonce(nonce1)},
			attestFields: []auxField{WithPublicKey(key2.Public), WithNonce(nonce2)},
			wantAux: enclave.AuxInfo{
				Nonce:     nonce2.ToSlice(),
				PublicKey: key2.Public[:],
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := NewBuilder(attester, c.initFields...)
			rawDoc, err := b.Attest(c.attestFields...)
			require.NoError(t, err)

			doc, err := nitro.ParseDocument(rawDoc.Doc)
			require.NoError(t, err)
			require.Equal(t, c.wantAux.Nonce, doc.Nonce)
			require.Equal(t, c.wantAux.PublicKey, doc.PublicKey)

			// The defaults must survive the attestation.
			again, err := b.Attest()
			require.NoError(t, err)
			doc, err = nitro.ParseDocument(again.Doc)
			require.NoError(t, err)
			defaults := enclave.AuxInfo{}
			for _, opt := range c.initFields {
				opt(&defaults)
			}
			require.Equal(t, defaults.Nonce, doc.Nonce)
		})
	}
}

func TestAttestB64(t *testing.T) {
	a := noop.NewAttester()
	b := NewBuilder(a)
	key := must.Get(box.NewKeyPair())

	doc, err := b.AttestB64(WithPublicKey(key.Public))
	require.NoError(t, err)

	v := nitro.NewVerifier(nitro.AllowList(), nitro.WithRoots(a.Roots()))
	res, err := v.Verify(doc)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(key.Public[:]), res.PublicKey)
}
