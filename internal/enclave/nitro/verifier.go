package nitro

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
)

// Verified holds what a successfully verified attestation document vouches
// for.
type Verified struct {
	// PublicKey is the base64-encoded public key from the document.
	PublicKey string `json:"public_key"`
	// Timestamp is the document's creation time in milliseconds since the
	// Unix epoch.
	Timestamp uint64 `json:"timestamp"`
	ModuleID  string `json:"module_id"`
	Nonce     []byte `json:"nonce,omitempty"`
}

// VerifiedWithCiphertext is the result of VerifyAndEncrypt.  The ciphertext
// can only be opened by the holder of the attested public key.
type VerifiedWithCiphertext struct {
	Verified
	Ciphertext []byte `json:"ciphertext"`
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRoots makes the verifier trust the given roots instead of the AWS Nitro
// root.  The pool must not be modified afterwards.
func WithRoots(roots *x509.CertPool) Option {
	return func(v *Verifier) {
		v.roots = roots
	}
}

// WithClock sets the function that returns the current time.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier verifies AWS Nitro attestation documents.  Verification has no
// side effects, so a Verifier is safe for concurrent use.
type Verifier struct {
	measurements Measurements
	roots        *x509.CertPool
	now          func() time.Time
	testenv      testenvOptions
}

// NewVerifier returns a verifier that trusts documents carrying the given
// measurements.
func NewVerifier(m Measurements, opts ...Option) *Verifier {
	v := &Verifier{
		measurements: m,
		roots:        defaultRoots(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify verifies the given base64-encoded attestation document.  The checks
// run in a fixed order, and the first failure is returned: decoding, parsing,
// certificate chain, signature, measurements, freshness, and finally the
// presence of a public key.
func (v *Verifier) Verify(docB64 string) (*Verified, error) {
	raw, err := decodeBase64(docB64)
	if err != nil {
		return nil, logFailure("verify", err)
	}
	return v.VerifyBytes(raw)
}

// VerifyBytes is like Verify but takes the raw COSE_Sign1 bytes.
func (v *Verifier) VerifyBytes(raw []byte) (*Verified, error) {
	res, err := v.verify(raw)
	return res, logFailure("verify", err)
}

func (v *Verifier) verify(raw []byte) (*Verified, error) {
	doc, err := v.authenticate(raw)
	if err != nil {
		return nil, err
	}
	if err := v.measurements.Check(doc); err != nil {
		return nil, err
	}
	if err := checkFreshness(doc, v.now()); err != nil {
		return nil, err
	}
	return verified(doc)
}

// VerifyDual verifies two documents against each other rather than against
// the verifier's measurements: the code PCRs and hash algorithm of the second
// document must match those of the first.  Both documents must be fresh and
// carry a public key.  The verifier's own measurements are not consulted.
func (v *Verifier) VerifyDual(docA, docB string) (*Verified, *Verified, error) {
	a, b, err := v.verifyDual(docA, docB)
	return a, b, logFailure("dual", err)
}

func (v *Verifier) verifyDual(docA, docB string) (*Verified, *Verified, error) {
	rawA, err := decodeBase64(docA)
	if err != nil {
		return nil, nil, err
	}
	rawB, err := decodeBase64(docB)
	if err != nil {
		return nil, nil, err
	}
	a, err := v.authenticate(rawA)
	if err != nil {
		return nil, nil, err
	}
	b, err := v.authenticate(rawB)
	if err != nil {
		return nil, nil, err
	}

	m, err := FromDocument(a)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Check(b); err != nil {
		return nil, nil, err
	}

	now := v.now()
	for _, doc := range []*enclave.Document{a, b} {
		if err := checkFreshness(doc, now); err != nil {
			return nil, nil, err
		}
	}

	resA, err := verified(a)
	if err != nil {
		return nil, nil, err
	}
	resB, err := verified(b)
	if err != nil {
		return nil, nil, err
	}
	return resA, resB, nil
}

// VerifyAndEncrypt verifies the given document like Verify does, and then
// seals the plaintext to the document's public key.
func (v *Verifier) VerifyAndEncrypt(docB64 string, plaintext []byte) (*VerifiedWithCiphertext, error) {
	res, err := v.verifyAndEncrypt(docB64, plaintext)
	return res, logFailure("encrypt", err)
}

func (v *Verifier) verifyAndEncrypt(docB64 string, plaintext []byte) (*VerifiedWithCiphertext, error) {
	raw, err := decodeBase64(docB64)
	if err != nil {
		return nil, err
	}
	res, err := v.verify(raw)
	if err != nil {
		return nil, err
	}

	rawKey, err := base64.StdEncoding.DecodeString(res.PublicKey)
	if err != nil {
		return nil, fail(ErrInvalidPublicKey, "public key is not base64")
	}
	pubKey, err := box.PublicKeyFromBytes(rawKey)
	if err != nil {
		return nil, fail(ErrInvalidPublicKey, "%s", err)
	}
	ciphertext, err := box.Seal(plaintext, pubKey)
	if err != nil {
		return nil, fail(ErrEncryption, "%s", err)
	}
	return &VerifiedWithCiphertext{Verified: *res, Ciphertext: ciphertext}, nil
}

// VerifyChainAndFreshness only checks that the document was signed by a
// genuine Nitro hypervisor and is fresh.  Measurements are not checked.
func (v *Verifier) VerifyChainAndFreshness(raw []byte) error {
	doc, err := v.authenticate(raw)
	if err == nil {
		err = checkFreshness(doc, v.now())
	}
	return logFailure("chain", err)
}

// authenticate parses the document and verifies its certificate chain and
// signature.  The returned document is authentic but not necessarily
// trusted.
func (v *Verifier) authenticate(raw []byte) (*enclave.Document, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	doc, err := env.Document()
	if err != nil {
		return nil, err
	}
	leaf, err := verifyChain(doc, v.roots, v.chainTime(doc))
	if err != nil {
		return nil, err
	}
	if err := verifySignature(env, leaf); err != nil {
		return nil, err
	}
	return doc, nil
}

func verified(doc *enclave.Document) (*Verified, error) {
	if len(doc.PublicKey) == 0 {
		return nil, fail(ErrInvalidPublicKey, "document has no public key")
	}
	return &Verified{
		PublicKey: base64.StdEncoding.EncodeToString(doc.PublicKey),
		Timestamp: doc.Timestamp,
		ModuleID:  doc.ModuleID,
		Nonce:     doc.Nonce,
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fail(ErrParse, "document is not base64")
	}
	return raw, nil
}

func logFailure(flow string, err error) error {
	if err == nil {
		return nil
	}
	ev := log.Warn().Str("flow", flow).Str("kind", Kind(err))
	var untrusted *CodeUntrustedError
	if errors.As(err, &untrusted) {
		ev = ev.Uint("pcr", untrusted.PCR).Str("observed", untrusted.Observed)
	}
	ev.Err(err).Msg("Attestation verification failed.")
	return err
}
