package nitro

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha512"
	"crypto/x509"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/worldcoin/world-chat-backend-sub000/internal/util/must"
)

const (
	// ES384 in the IANA COSE algorithms registry.
	algES384 = -35
	sigLen   = 96
)

// encMode produces the deterministic encoding that the signer used.
var encMode = must.Get(cbor.CoreDetEncOptions().EncMode())

type coseHeader struct {
	Alg any `cbor:"1,keyasint,omitempty"`
}

// isES384 returns true if the header names ECDSA w/ SHA-384, either by its
// registered integer or its name.
func (h *coseHeader) isES384() bool {
	switch alg := h.Alg.(type) {
	case int64:
		return alg == algES384
	case string:
		return alg == "ES384"
	}
	return false
}

// sigStructure is the Sig_structure for COSE_Sign1 with empty external AAD:
// https://www.rfc-editor.org/rfc/rfc9052#section-4.4
type sigStructure struct {
	_ struct{} `cbor:",toarray"`

	Context     string
	Protected   []byte
	ExternalAAD []byte
	Payload     []byte
}

func signingInput(protected, payload []byte) ([]byte, error) {
	return encMode.Marshal(&sigStructure{
		Context:     "Signature1",
		Protected:   protected,
		ExternalAAD: []byte{},
		Payload:     payload,
	})
}

// verifySignature checks the envelope's ES384 signature against the leaf's
// public key.  The signature is the raw concatenation of r and s.
func verifySignature(env *Envelope, leaf *x509.Certificate) error {
	var header coseHeader
	if err := decMode.Unmarshal(env.Protected, &header); err != nil {
		return fail(ErrSignatureInvalid, "protected header is not a COSE header")
	}
	if !header.isES384() {
		return fail(ErrSignatureInvalid, "algorithm is not ES384")
	}

	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P384() {
		return fail(ErrSignatureInvalid, "leaf public key is not on P-384")
	}
	if len(env.Signature) != sigLen {
		return fail(ErrSignatureInvalid, "signature is %d bytes instead of %d", len(env.Signature), sigLen)
	}

	input, err := signingInput(env.Protected, env.Payload)
	if err != nil {
		return fail(ErrSignatureInvalid, "failed to encode Sig_structure: %s", err)
	}
	hash := sha512.Sum384(input)
	r := new(big.Int).SetBytes(env.Signature[:sigLen/2])
	s := new(big.Int).SetBytes(env.Signature[sigLen/2:])
	if !ecdsa.Verify(pub, hash[:], r, s) {
		return fail(ErrSignatureInvalid, "signature does not match leaf certificate")
	}
	return nil
}
