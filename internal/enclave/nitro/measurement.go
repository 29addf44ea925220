package nitro

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
)

// Measurement is an expected PCR value.
type Measurement struct {
	Index uint
	Value []byte
}

// Measurements holds the PCR values that an attestation document must carry
// for us to trust the enclave's code.
type Measurements struct {
	expected []Measurement
	// If set, documents must use this hash algorithm.
	digest string
}

// AllowList returns measurements for a fixed set of expected PCR values.
// Indices that aren't listed are ignored.
func AllowList(ms ...Measurement) Measurements {
	return Measurements{expected: ms}
}

// FromDocument returns measurements that require the code PCRs and hash
// algorithm of the given document.  Enclaves use it to recognize peers that
// run the same image as they do.
func FromDocument(doc *enclave.Document) (Measurements, error) {
	if len(doc.PCRs) == 0 {
		return Measurements{}, &CodeUntrustedError{PCR: 0, Observed: "empty"}
	}
	m := Measurements{digest: doc.Digest}
	for _, i := range enclave.CodePCRs {
		value, ok := doc.PCRs[i]
		if !ok {
			return Measurements{}, &CodeUntrustedError{PCR: i, Observed: "missing"}
		}
		m.expected = append(m.expected, Measurement{Index: i, Value: bytes.Clone(value)})
	}
	return m, nil
}

// Check returns a CodeUntrustedError if the given document's PCRs don't match
// our expectations.
func (m Measurements) Check(doc *enclave.Document) error {
	if len(doc.PCRs) == 0 {
		return &CodeUntrustedError{PCR: 0, Observed: "empty"}
	}
	if m.digest != "" && doc.Digest != m.digest {
		return &CodeUntrustedError{PCR: 0, Observed: "digest " + doc.Digest}
	}

	wantLen := enclave.DigestLen(doc.Digest)
	for _, e := range m.expected {
		got, ok := doc.PCRs[e.Index]
		if !ok {
			return &CodeUntrustedError{PCR: e.Index, Observed: "missing"}
		}
		if len(got) != wantLen {
			return &CodeUntrustedError{
				PCR:      e.Index,
				Observed: fmt.Sprintf("invalid length %d, expected %d", len(got), wantLen),
			}
		}
		if !bytes.Equal(got, e.Value) {
			return &CodeUntrustedError{PCR: e.Index, Observed: hex.EncodeToString(got)}
		}
	}
	return nil
}
