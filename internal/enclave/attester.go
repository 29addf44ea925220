package enclave

const (
	// See page 65 of the AWS Nitro Enclaves user guide for reference:
	// https://docs.aws.amazon.com/pdfs/enclaves/latest/user/enclaves-user.pdf
	AuxFieldLen = 1024
	TypeNoop    = "noop"
	TypeNitro   = "nitro"
)

// Hash algorithms that an attestation document's PCRs may be computed with.
const (
	DigestSHA256 = "SHA256"
	DigestSHA384 = "SHA384"
	DigestSHA512 = "SHA512"
)

// RawDocument holds the enclave's COSE-encoded attestation document.
type RawDocument struct {
	Type string `json:"type"`
	Doc  []byte `json:"attestation_document"`
}

// Document represents the AWS Nitro Enclave attestation document as specified
// on page 70 of:
// https://docs.aws.amazon.com/pdfs/enclaves/latest/user/enclaves-user.pdf
type Document struct {
	ModuleID    string   `cbor:"module_id" json:"module_id"`
	Timestamp   uint64   `cbor:"timestamp" json:"timestamp"`
	Digest      string   `cbor:"digest" json:"digest"`
	PCRs        PCR      `cbor:"pcrs" json:"pcrs"`
	Certificate []byte   `cbor:"certificate" json:"certificate"`
	CABundle    [][]byte `cbor:"cabundle" json:"cabundle"`
	AuxInfo
}

// AuxInfo represents auxiliary information that can be included in the
// attestation document, as specified on page 70 of:
// https://docs.aws.amazon.com/pdfs/enclaves/latest/user/enclaves-user.pdf
type AuxInfo struct {
	PublicKey []byte `json:"public_key,omitempty" cbor:"public_key,omitempty"`
	UserData  []byte `json:"user_data,omitempty" cbor:"user_data,omitempty"`
	Nonce     []byte `json:"nonce,omitempty" cbor:"nonce,omitempty"`
}

// Attester creates attestation documents.  Making this an interface helps
// with testing: It allows us to implement an attester that works without the
// AWS Nitro hypervisor.  Verification is not part of the interface because
// all documents, regardless of who produced them, are verified the same way.
type Attester interface {
	Type() string
	Attest(*AuxInfo) (*RawDocument, error)
}

// DigestLen returns the length in bytes of a PCR value for the given hash
// algorithm, or 0 if the algorithm is unknown.
func DigestLen(digest string) int {
	switch digest {
	case DigestSHA256:
		return 32
	case DigestSHA384:
		return 48
	case DigestSHA512:
		return 64
	}
	return 0
}
