package keysync

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/httpx"
	"github.com/worldcoin/world-chat-backend-sub000/internal/metrics"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service/attestation"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// Requester fetches the secret key pair from a peer enclave.
type Requester struct {
	builder  *attestation.Builder
	verifier *nitro.Verifier
	keys     *enclave.Keys
	metrics  *metrics.Metrics
}

// NewRequester returns a new requester.  The verifier must trust the same
// roots as the peer's attester; its measurements aren't used because the
// peer only has to run the same code as we do.
func NewRequester(
	builder *attestation.Builder,
	verifier *nitro.Verifier,
	keys *enclave.Keys,
	m *metrics.Metrics,
) *Requester {
	return &Requester{
		builder:  builder,
		verifier: verifier,
		keys:     keys,
		metrics:  m,
	}
}

// Fetch makes a single attempt at fetching the secret key pair from the peer
// that listens at the given URL.  The client determines how the peer is
// reached and how long the attempt may take.
func (r *Requester) Fetch(ctx context.Context, client *http.Client, url string) (kp *box.KeyPair, err error) {
	defer func() {
		outcome := Outcome(err)
		r.metrics.KeyExchange(metrics.RoleRequester, outcome)
		if err != nil {
			log.Warn().Err(err).Str("kind", outcome).Msg("Failed to fetch secret key from peer.")
		}
	}()
	defer errs.Wrap(&err, "failed to fetch secret key")

	ephemeral := r.keys.Ephemeral()
	if ephemeral == nil {
		return nil, ErrInitialized
	}

	n, err := nonce.New()
	if err != nil {
		return nil, err
	}
	ourDoc, err := r.builder.AttestB64(
		attestation.WithPublicKey(ephemeral.Public),
		attestation.WithNonce(n),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttestation, err)
	}

	var resp api.SecretKeyResponse
	req := api.SecretKeyRequest{AttestationDoc: ourDoc, Nonce: n.B64()}
	if err := httpx.PostJSON(ctx, client, url, &req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", errTransport, err)
	}

	_, theirs, err := r.verifier.VerifyDual(ourDoc, resp.AttestationDoc)
	r.metrics.Verification("dual", nitro.Kind(err))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(theirs.Nonce, n.ToSlice()) {
		return nil, ErrNonceMismatch
	}

	ciphertext, err := base64.StdEncoding.DecodeString(resp.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not Base64", ErrBadRequest)
	}
	priv, err := ephemeral.Open(ciphertext)
	if err != nil {
		return nil, ErrDecrypt
	}
	kp, err = box.KeyPairFromPrivate(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	if base64.StdEncoding.EncodeToString(kp.Public[:]) != theirs.PublicKey {
		return nil, ErrKeyMismatch
	}
	return kp, nil
}
