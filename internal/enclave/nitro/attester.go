package nitro

import (
	"errors"
	"sync"

	"github.com/hf/nsm"
	"github.com/hf/nsm/request"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
)

var _ enclave.Attester = (*Attester)(nil)

// Attester implements the attester interface by drawing on the AWS Nitro
// Enclave hypervisor.
type Attester struct {
	mu      sync.Mutex
	session *nsm.Session
}

// IsEnclave reports whether the process can obtain a document from the Nitro
// Secure Module that chains to the AWS root.
func IsEnclave() bool {
	doc, err := NewAttester().Attest(&enclave.AuxInfo{})
	if err != nil {
		return false
	}
	return NewVerifier(AllowList()).VerifyChainAndFreshness(doc.Doc) == nil
}

// NewAttester returns a new nitro attester.
func NewAttester() *Attester {
	return new(Attester)
}

func (*Attester) Type() string {
	return enclave.TypeNitro
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

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		if a.session, err = nsm.OpenDefaultSession(); err != nil {
			return nil, err
		}
	}

	resp, err := a.session.Send(&request.Attestation{
		Nonce:     aux.Nonce,
		UserData:  aux.UserData,
		PublicKey: aux.PublicKey,
	})
	if err != nil {
		return nil, err
	}
	if resp.Attestation == nil || resp.Attestation.Document == nil {
		return nil, errors.New("required fields missing in attestation response")
	}

	return &enclave.RawDocument{
		Type: enclave.TypeNitro,
		Doc:  resp.Attestation.Document,
	}, nil
}
