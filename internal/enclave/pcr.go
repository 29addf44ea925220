package enclave

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"slices"
)

// The enclave's code identity is captured by PCR0 (image), PCR1 (kernel and
// bootstrap), and PCR2 (application).
var CodePCRs = []uint{0, 1, 2}

// Enclaves in debug mode have all-zero code PCRs.
var emptyPCR = make([]byte, sha512.Size384)

// PCR represents the enclave's platform configuration register (PCR) values.
type PCR map[uint][]byte

// FromDebugMode returns true if the code PCRs are all zero, which is the case
// for enclaves that were started with nitro-cli's --debug-mode flag.
func (p PCR) FromDebugMode() bool {
	for _, i := range CodePCRs {
		if !bytes.Equal(p[i], emptyPCR) {
			return false
		}
	}
	return true
}

// Equal returns true if (and only if) the two given PCR maps are identical.
// PCR4 contains a hash over the parent's instance ID.  Our enclaves run on
// different parent instances, so PCR4 is ignored:
// https://docs.aws.amazon.com/enclaves/latest/user/set-up-attestation.html
func (ours PCR) Equal(theirs PCR) bool {
	ourKeys, theirKeys := ours.indices(4), theirs.indices(4)
	if !slices.Equal(ourKeys, theirKeys) {
		return false
	}
	for _, i := range ourKeys {
		if !bytes.Equal(ours[i], theirs[i]) {
			return false
		}
	}
	return true
}

func (p PCR) String() string {
	var s string
	for _, i := range p.indices() {
		s += fmt.Sprintf("PCR%d: %s\n", i, hex.EncodeToString(p[i]))
	}
	return s
}

// indices returns the sorted PCR indices, except for the given ones.
func (p PCR) indices(except ...uint) []uint {
	var keys []uint
	for i := range p {
		if !slices.Contains(except, i) {
			keys = append(keys, i)
		}
	}
	slices.Sort(keys)
	return keys
}
