// Package attestation bundles an attester with the auxiliary fields that
// handlers embed in attestation documents.
package attestation

import (
	"bytes"
	"encoding/base64"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
)

// Builder is an abstraction purpose-built for our HTTP handlers.  It bundles
// an attester with default auxiliary fields.  Attest never modifies the
// defaults, so a Builder can be shared by concurrent handlers.
type Builder struct {
	attester enclave.Attester
	aux      enclave.AuxInfo
}

type auxField func(*enclave.AuxInfo)

// NewBuilder returns a new Builder with the given attester and default
// auxiliary fields.
func NewBuilder(attester enclave.Attester, opts ...auxField) *Builder {
	b := &Builder{attester: attester}
	for _, opt := range opts {
		opt(&b.aux)
	}
	return b
}

// Attest returns an attestation document with the default auxiliary fields,
// overridden by the given ones.
func (b *Builder) Attest(opts ...auxField) (*enclave.RawDocument, error) {
	aux := enclave.AuxInfo{
		PublicKey: bytes.Clone(b.aux.PublicKey),
		UserData:  bytes.Clone(b.aux.UserData),
		Nonce:     bytes.Clone(b.aux.Nonce),
	}
	for _, opt := range opts {
		opt(&aux)
	}
	return b.attester.Attest(&aux)
}

// AttestB64 is like Attest but returns the Base64-encoded document.
func (b *Builder) AttestB64(opts ...auxField) (string, error) {
	doc, err := b.Attest(opts...)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(doc.Doc), nil
}

// WithNonce sets the given nonce in an auxiliary field.
func WithNonce(n *nonce.Nonce) auxField {
	return func(aux *enclave.AuxInfo) {
		if n == nil {
			return
		}
		aux.Nonce = n.ToSlice()
	}
}

// WithPublicKey sets the given box public key in an auxiliary field.
func WithPublicKey(pub *[box.KeyLen]byte) auxField {
	return func(aux *enclave.AuxInfo) {
		if pub == nil {
			return
		}
		aux.PublicKey = bytes.Clone(pub[:])
	}
}
