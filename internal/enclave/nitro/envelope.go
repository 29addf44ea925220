package nitro

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/util/must"
)

const (
	maxPCRs        = 32
	maxPCRIndex    = 31
	maxCABundleLen = 1024
)

// decMode rejects maps with duplicate keys, so that a document can't carry
// two different values for the same field or PCR.
var decMode = must.Get(cbor.DecOptions{
	DupMapKey: cbor.DupMapKeyEnforcedAPF,
}.DecMode())

// Envelope is the COSE_Sign1 structure that wraps an attestation document:
// https://www.rfc-editor.org/rfc/rfc9052#section-4.2
type Envelope struct {
	_ struct{} `cbor:",toarray"`

	Protected   []byte
	Unprotected cbor.RawMessage
	Payload     []byte
	Signature   []byte
}

// ParseEnvelope decodes the given bytes as COSE_Sign1 array.  The first byte
// must announce a CBOR array.
func ParseEnvelope(raw []byte) (_ *Envelope, err error) {
	defer errs.WrapErr(&err, ErrParse)

	if len(raw) == 0 {
		return nil, errors.New("document is empty")
	}
	// Major type 4 (array) with a definite length, or an indefinite length.
	if b := raw[0]; !(b >= 0x80 && b <= 0x97) && b != 0x9f {
		return nil, fmt.Errorf("first byte 0x%02x is not a CBOR array", b)
	}

	var env Envelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return nil, errors.New("data is not a COSE_Sign1 array")
	}
	if len(env.Protected) == 0 {
		return nil, errors.New("COSE_Sign1 protected header is empty")
	}
	if len(env.Payload) == 0 {
		return nil, errors.New("COSE_Sign1 payload is empty")
	}
	if len(env.Signature) == 0 {
		return nil, errors.New("COSE_Sign1 signature is empty")
	}
	return &env, nil
}

// Document decodes the envelope's payload and runs sanity checks over it.
// The checks are purely syntactic; nothing in the returned document can be
// trusted before the signature was verified.
func (e *Envelope) Document() (_ *enclave.Document, err error) {
	defer errs.WrapErr(&err, ErrParse)

	var doc enclave.Document
	if err := decMode.Unmarshal(e.Payload, &doc); err != nil {
		return nil, fmt.Errorf("payload is not an attestation document: %s", err)
	}
	if err := sanityCheck(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseDocument parses the given COSE_Sign1 bytes and returns the attestation
// document in its payload, without verifying anything.
func ParseDocument(raw []byte) (*enclave.Document, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return env.Document()
}

// sanityCheck enforces the constraints from page 70 of the AWS Nitro Enclaves
// user guide.  Empty PCR maps are left to the measurement check.
func sanityCheck(doc *enclave.Document) error {
	if doc.ModuleID == "" {
		return errors.New("payload 'module_id' is missing")
	}
	if doc.Timestamp == 0 {
		return errors.New("payload 'timestamp' is missing")
	}
	if enclave.DigestLen(doc.Digest) == 0 {
		return fmt.Errorf("payload 'digest' %q is not supported", doc.Digest)
	}
	if len(doc.Certificate) == 0 {
		return errors.New("payload 'certificate' is missing")
	}
	if len(doc.PCRs) > maxPCRs {
		return fmt.Errorf("payload 'pcrs' has more than %d entries", maxPCRs)
	}
	for i, value := range doc.PCRs {
		if i > maxPCRIndex {
			return fmt.Errorf("payload 'pcrs' index %d exceeds %d", i, maxPCRIndex)
		}
		if !slices.Contains([]int{32, 48, 64}, len(value)) {
			return fmt.Errorf("payload 'pcrs' entry %d is not of length {32,48,64}", i)
		}
	}
	if len(doc.CABundle) == 0 {
		return errors.New("payload 'cabundle' has no elements")
	}
	for _, item := range doc.CABundle {
		if len(item) == 0 || len(item) > maxCABundleLen {
			return fmt.Errorf("payload 'cabundle' has an item of length not in [1, %d]", maxCABundleLen)
		}
	}
	if len(doc.PublicKey) > enclave.AuxFieldLen {
		return errors.New("payload 'public_key' exceeds maximum length")
	}
	if len(doc.UserData) > enclave.AuxFieldLen {
		return errors.New("payload 'user_data' exceeds maximum length")
	}
	if len(doc.Nonce) > enclave.AuxFieldLen {
		return errors.New("payload 'nonce' exceeds maximum length")
	}
	return nil
}
