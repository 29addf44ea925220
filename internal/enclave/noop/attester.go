// Package noop implements an attester that works without the AWS Nitro
// hypervisor.  It plays the hypervisor's role with a self-signed certificate
// hierarchy, so that its documents are verifiable just like real ones, given
// its roots.
package noop

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/util/must"
)

var _ enclave.Attester = (*Attester)(nil)

const (
	// ES384 in the IANA COSE algorithms registry.
	algES384  = -35
	scalarLen = 48
)

var encMode = must.Get(cbor.CoreDetEncOptions().EncMode())

// ProtectedHeader is the encoded COSE header {1: -35} that the Nitro
// hypervisor uses.
var ProtectedHeader = must.Get(encMode.Marshal(map[int]int{1: algES384}))

type envelope struct {
	_ struct{} `cbor:",toarray"`

	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signature   []byte
}

type sigStructure struct {
	_ struct{} `cbor:",toarray"`

	Context     string
	Protected   []byte
	ExternalAAD []byte
	Payload     []byte
}

// Option configures an Attester.
type Option func(*Attester)

// WithPCRs sets the PCR values of the attester's documents.
func WithPCRs(pcrs enclave.PCR) Option {
	return func(a *Attester) {
		a.pcrs = pcrs
	}
}

// WithDigest sets the hash algorithm that the attester's documents claim.
func WithDigest(digest string) Option {
	return func(a *Attester) {
		a.digest = digest
	}
}

// WithClock sets the attester's clock.  The clock determines the documents'
// timestamps and, at construction time, the certificates' validity.
func WithClock(now func() time.Time) Option {
	return func(a *Attester) {
		a.now = now
	}
}

// Attester implements the attester interface without the Nitro hypervisor.
type Attester struct {
	pcrs     enclave.PCR
	digest   string
	moduleID string
	now      func() time.Time

	roots    *x509.CertPool
	cabundle [][]byte
	leaf     []byte
	leafKey  *ecdsa.PrivateKey
}

// DefaultPCRs returns the PCR values that documents carry unless WithPCRs is
// given.
func DefaultPCRs() enclave.PCR {
	pcrs := enclave.PCR{}
	for _, i := range []uint{0, 1, 2, 3} {
		h := sha512.Sum384([]byte{'p', 'c', 'r', byte('0' + i)})
		pcrs[i] = h[:]
	}
	return pcrs
}

// NewAttester returns a new noop attester with a fresh certificate
// hierarchy.
func NewAttester(opts ...Option) *Attester {
	a := &Attester{
		pcrs:     DefaultPCRs(),
		digest:   enclave.DigestSHA384,
		moduleID: "i-noop-enc0000000000000",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.issueCertificates(); err != nil {
		panic(err)
	}
	return a
}

func (*Attester) Type() string {
	return enclave.TypeNoop
}

// Roots returns a pool containing the attester's root certificate.
func (a *Attester) Roots() *x509.CertPool {
	return a.roots
}

func (a *Attester) Attest(aux *enclave.AuxInfo) (_ *enclave.RawDocument, err error) {
	defer errs.Wrap(&err, "failed to create attestation document")

	if aux == nil {
		return nil, errs.IsNil
	}
	if len(aux.PublicKey) > enclave.AuxFieldLen ||
		len(aux.UserData) > enclave.AuxFieldLen ||
		len(aux.Nonce) > enclave.AuxFieldLen {
		return nil, errs.InvalidLength
	}
	raw, err := a.Sign(a.Document(aux))
	if err != nil {
		return nil, err
	}
	return &enclave.RawDocument{Type: enclave.TypeNoop, Doc: raw}, nil
}

// Document returns the unsigned document that Attest would sign.
func (a *Attester) Document(aux *enclave.AuxInfo) *enclave.Document {
	doc := &enclave.Document{
		ModuleID:    a.moduleID,
		Timestamp:   uint64(a.now().UnixMilli()),
		Digest:      a.digest,
		PCRs:        enclave.PCR{},
		Certificate: a.leaf,
		CABundle:    a.cabundle,
	}
	for i, v := range a.pcrs {
		doc.PCRs[i] = bytes.Clone(v)
	}
	if aux != nil {
		doc.AuxInfo = *aux
	}
	return doc
}

// Sign encodes and signs the given document, whatever it contains.
func (a *Attester) Sign(doc *enclave.Document) ([]byte, error) {
	payload, err := encMode.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return a.SignPayload(ProtectedHeader, payload)
}

// SignPayload returns a COSE_Sign1 envelope over the given protected header
// and payload, signed with the leaf key.
func (a *Attester) SignPayload(protected, payload []byte) ([]byte, error) {
	input, err := encMode.Marshal(&sigStructure{
		Context:     "Signature1",
		Protected:   protected,
		ExternalAAD: []byte{},
		Payload:     payload,
	})
	if err != nil {
		return nil, err
	}
	hash := sha512.Sum384(input)
	r, s, err := ecdsa.Sign(rand.Reader, a.leafKey, hash[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 2*scalarLen)
	r.FillBytes(sig[:scalarLen])
	s.FillBytes(sig[scalarLen:])

	return encMode.Marshal(&envelope{
		Protected:   protected,
		Unprotected: map[any]any{},
		Payload:     payload,
		Signature:   sig,
	})
}

// issueCertificates creates a root, an intermediate, and a leaf certificate.
// Like the Nitro hypervisor, the CA bundle starts with the root.
func (a *Attester) issueCertificates() (err error) {
	defer errs.Wrap(&err, "failed to issue certificates")

	notBefore := a.now().Add(-time.Hour)
	notAfter := a.now().Add(24 * time.Hour)

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return err
	}
	rootTmpl := caTemplate(1, "noop root", notBefore, notAfter)
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		return err
	}
	root, err := x509.ParseCertificate(rootDER)
	if err != nil {
		return err
	}

	interKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return err
	}
	interTmpl := caTemplate(2, "noop intermediate", notBefore, notAfter)
	interDER, err := x509.CreateCertificate(rand.Reader, interTmpl, root, &interKey.PublicKey, rootKey)
	if err != nil {
		return err
	}
	inter, err := x509.ParseCertificate(interDER)
	if err != nil {
		return err
	}

	if a.leafKey, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader); err != nil {
		return err
	}
	leafTmpl := &x509.Certificate{
		SerialNumber:       big.NewInt(3),
		Subject:            pkix.Name{CommonName: a.moduleID},
		NotBefore:          notBefore,
		NotAfter:           notAfter,
		KeyUsage:           x509.KeyUsageDigitalSignature,
		SignatureAlgorithm: x509.ECDSAWithSHA384,
	}
	if a.leaf, err = x509.CreateCertificate(rand.Reader, leafTmpl, inter, &a.leafKey.PublicKey, interKey); err != nil {
		return err
	}

	a.roots = x509.NewCertPool()
	a.roots.AddCert(root)
	a.cabundle = [][]byte{rootDER, interDER}
	return nil
}

func caTemplate(serial int64, name string, notBefore, notAfter time.Time) *x509.Certificate {
	return &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.ECDSAWithSHA384,
	}
}
