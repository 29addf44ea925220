package keysync

import (
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/metrics"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service/attestation"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// Responder hands out the secret key pair to peer enclaves that run the same
// code as we do.
type Responder struct {
	builder  *attestation.Builder
	verifier *nitro.Verifier
	keys     *enclave.Keys
	metrics  *metrics.Metrics
}

// NewResponder returns a new responder.  The verifier's measurements must be
// derived from our own attestation document.
func NewResponder(
	builder *attestation.Builder,
	verifier *nitro.Verifier,
	keys *enclave.Keys,
	m *metrics.Metrics,
) *Responder {
	return &Responder{
		builder:  builder,
		verifier: verifier,
		keys:     keys,
		metrics:  m,
	}
}

// Respond answers the given request for our secret key.  The secret's
// private half is sealed to the public key in the requester's attestation
// document.
func (r *Responder) Respond(req *api.SecretKeyRequest) (_ *api.SecretKeyResponse, err error) {
	defer func() {
		outcome := Outcome(err)
		r.metrics.KeyExchange(metrics.RoleResponder, outcome)
		if err != nil {
			log.Warn().Err(err).Str("kind", outcome).Msg("Refused to hand out secret key.")
		}
	}()

	secret := r.keys.Secret()
	if secret == nil {
		return nil, ErrNotInitialized
	}
	theirNonce, err := nonce.FromB64(req.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	res, err := r.verifier.VerifyAndEncrypt(req.AttestationDoc, secret.Private[:])
	r.metrics.Verification("encrypt", nitro.Kind(err))
	if err != nil {
		return nil, err
	}

	ourDoc, err := r.builder.AttestB64(
		attestation.WithPublicKey(secret.Public),
		attestation.WithNonce(theirNonce),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttestation, err)
	}
	log.Info().Str("module_id", res.ModuleID).Msg("Handed out secret key to peer.")

	return &api.SecretKeyResponse{
		Ciphertext:     base64.StdEncoding.EncodeToString(res.Ciphertext),
		AttestationDoc: ourDoc,
	}, nil
}
