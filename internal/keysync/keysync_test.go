package keysync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/noop"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service/attestation"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
	"github.com/worldcoin/world-chat-backend-sub000/internal/util/must"
)

type peer struct {
	attester *noop.Attester
	keys     *enclave.Keys
	builder  *attestation.Builder
	verifier *nitro.Verifier
}

// newPeer sets up an enclave the way the service does at startup.
func newPeer(t *testing.T, a *noop.Attester) *peer {
	t.Helper()

	ephemeral := must.Get(box.NewKeyPair())
	raw, err := a.Attest(&enclave.AuxInfo{PublicKey: ephemeral.Public[:]})
	require.NoError(t, err)
	own, err := nitro.ParseDocument(raw.Doc)
	require.NoError(t, err)
	m, err := nitro.FromDocument(own)
	require.NoError(t, err)

	return &peer{
		attester: a,
		keys:     enclave.NewKeys(ephemeral),
		builder:  attestation.NewBuilder(a),
		verifier: nitro.NewVerifier(m, nitro.WithRoots(a.Roots())),
	}
}

func (p *peer) requester() *Requester {
	return NewRequester(p.builder, p.verifier, p.keys, nil)
}

func (p *peer) responder() *Responder {
	return NewResponder(p.builder, p.verifier, p.keys, nil)
}

func serve(t *testing.T, respond func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.SecretKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := respond(&req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	a := noop.NewAttester()
	responder, requester := newPeer(t, a), newPeer(t, a)
	secret := must.Get(box.NewKeyPair())
	require.True(t, responder.keys.SetSecret(secret))

	srv := serve(t, responder.responder().Respond)
	kp, err := requester.requester().Fetch(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, secret, kp)
}

func TestFetchFailures(t *testing.T) {
	a := noop.NewAttester()
	secret := must.Get(box.NewKeyPair())

	// forge answers like an honest responder would, except for the given
	// modifications.
	forge := func(
		p *peer,
		nonceFor func(*api.SecretKeyRequest) *nonce.Nonce,
		pub *[box.KeyLen]byte,
		ciphertext func([]byte) string,
	) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
		return func(req *api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
			res, err := p.verifier.VerifyAndEncrypt(req.AttestationDoc, secret.Private[:])
			if err != nil {
				return nil, err
			}
			doc, err := p.builder.AttestB64(
				attestation.WithPublicKey(pub),
				attestation.WithNonce(nonceFor(req)),
			)
			if err != nil {
				return nil, err
			}
			return &api.SecretKeyResponse{
				Ciphertext:     ciphertext(res.Ciphertext),
				AttestationDoc: doc,
			}, nil
		}
	}
	theirNonce := func(req *api.SecretKeyRequest) *nonce.Nonce {
		return must.Get(nonce.FromB64(req.Nonce))
	}
	freshNonce := func(*api.SecretKeyRequest) *nonce.Nonce {
		return must.Get(nonce.New())
	}
	b64 := base64.StdEncoding.EncodeToString

	cases := []struct {
		name    string
		respond func(p *peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error)
		wantErr error
		kind    string
	}{
		{
			name: "responder not initialized",
			respond: func(*peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return newPeer(t, a).responder().Respond
			},
			wantErr: errTransport,
			kind:    kindTransport,
		},
		{
			name: "wrong nonce",
			respond: func(p *peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return forge(p, freshNonce, secret.Public, b64)
			},
			wantErr: ErrNonceMismatch,
			kind:    kindNonceMismatch,
		},
		{
			name: "attested key doesn't match secret",
			respond: func(p *peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return forge(p, theirNonce, must.Get(box.NewKeyPair()).Public, b64)
			},
			wantErr: ErrKeyMismatch,
			kind:    kindKeyMismatch,
		},
		{
			name: "corrupt ciphertext",
			respond: func(p *peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return forge(p, theirNonce, secret.Public, func(c []byte) string {
					c[len(c)-1] ^= 1
					return b64(c)
				})
			},
			wantErr: ErrDecrypt,
			kind:    kindDecrypt,
		},
		{
			name: "ciphertext not Base64",
			respond: func(p *peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return forge(p, theirNonce, secret.Public, func([]byte) string {
					return "%%%"
				})
			},
			wantErr: ErrBadRequest,
			kind:    kindBadRequest,
		},
		{
			name: "responder document not Base64",
			respond: func(*peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
					return &api.SecretKeyResponse{AttestationDoc: "%%%"}, nil
				}
			},
			wantErr: nitro.ErrParse,
			kind:    "parse",
		},
		{
			name: "responder runs different code",
			respond: func(p *peer) func(*api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
				return func(req *api.SecretKeyRequest) (*api.SecretKeyResponse, error) {
					doc := p.attester.Document(&enclave.AuxInfo{
						PublicKey: secret.Public[:],
						Nonce:     theirNonce(req).ToSlice(),
					})
					doc.PCRs[2] = make([]byte, len(doc.PCRs[2]))
					raw, err := p.attester.Sign(doc)
					if err != nil {
						return nil, err
					}
					return &api.SecretKeyResponse{AttestationDoc: b64(raw)}, nil
				}
			},
			wantErr: nitro.ErrCodeUntrusted,
			kind:    "code_untrusted",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := newPeer(t, a)
			srv := serve(t, c.respond(p))

			kp, err := p.requester().Fetch(context.Background(), srv.Client(), srv.URL)
			require.ErrorIs(t, err, c.wantErr)
			require.Nil(t, kp)
			require.Equal(t, c.kind, Outcome(err))
		})
	}
}

func TestFetchAfterInitialization(t *testing.T) {
	p := newPeer(t, noop.NewAttester())
	require.True(t, p.keys.SetSecret(must.Get(box.NewKeyPair())))

	_, err := p.requester().Fetch(context.Background(), http.DefaultClient, "http://127.0.0.1:1")
	require.ErrorIs(t, err, ErrInitialized)
}

func TestRespond(t *testing.T) {
	a := noop.NewAttester()
	secret := must.Get(box.NewKeyPair())
	n := must.Get(nonce.New())

	request := func(p *peer, aux *enclave.AuxInfo, mutate func(*enclave.Document)) *api.SecretKeyRequest {
		doc := p.attester.Document(aux)
		if mutate != nil {
			mutate(doc)
		}
		raw := must.Get(p.attester.Sign(doc))
		return &api.SecretKeyRequest{
			AttestationDoc: base64.StdEncoding.EncodeToString(raw),
			Nonce:          n.B64(),
		}
	}
	ephemeral := must.Get(box.NewKeyPair())
	honestAux := &enclave.AuxInfo{PublicKey: ephemeral.Public[:], Nonce: n.ToSlice()}

	cases := []struct {
		name        string
		initialized bool
		req         func(p *peer) *api.SecretKeyRequest
		wantErr     error
	}{
		{
			name:        "honest requester",
			initialized: true,
			req: func(p *peer) *api.SecretKeyRequest {
				return request(p, honestAux, nil)
			},
		},
		{
			name: "not initialized",
			req: func(p *peer) *api.SecretKeyRequest {
				return request(p, honestAux, nil)
			},
			wantErr: ErrNotInitialized,
		},
		{
			name:        "bad nonce",
			initialized: true,
			req: func(p *peer) *api.SecretKeyRequest {
				req := request(p, honestAux, nil)
				req.Nonce = "%%%"
				return req
			},
			wantErr: ErrBadRequest,
		},
		{
			name:        "different code",
			initialized: true,
			req: func(p *peer) *api.SecretKeyRequest {
				return request(p, honestAux, func(doc *enclave.Document) {
					doc.PCRs[1] = make([]byte, len(doc.PCRs[1]))
				})
			},
			wantErr: nitro.ErrCodeUntrusted,
		},
		{
			name:        "no public key",
			initialized: true,
			req: func(p *peer) *api.SecretKeyRequest {
				return request(p, &enclave.AuxInfo{Nonce: n.ToSlice()}, nil)
			},
			wantErr: nitro.ErrInvalidPublicKey,
		},
		{
			name:        "short public key",
			initialized: true,
			req: func(p *peer) *api.SecretKeyRequest {
				return request(p, &enclave.AuxInfo{PublicKey: []byte("short")}, nil)
			},
			wantErr: nitro.ErrInvalidPublicKey,
		},
		{
			name:        "garbage document",
			initialized: true,
			req: func(*peer) *api.SecretKeyRequest {
				return &api.SecretKeyRequest{AttestationDoc: "Zm9v", Nonce: n.B64()}
			},
			wantErr: nitro.ErrParse,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := newPeer(t, a)
			if c.initialized {
				require.True(t, p.keys.SetSecret(secret))
			}

			resp, err := p.responder().Respond(c.req(p))
			require.ErrorIs(t, err, c.wantErr)
			if c.wantErr != nil {
				require.Nil(t, resp)
				return
			}

			// Only the holder of the ephemeral key can open the ciphertext.
			ciphertext := must.Get(base64.StdEncoding.DecodeString(resp.Ciphertext))
			priv, err := ephemeral.Open(ciphertext)
			require.NoError(t, err)
			require.Equal(t, secret.Private[:], priv)

			res, err := p.verifier.Verify(resp.AttestationDoc)
			require.NoError(t, err)
			require.Equal(t, n.ToSlice(), res.Nonce)
			require.Equal(t, base64.StdEncoding.EncodeToString(secret.Public[:]), res.PublicKey)
		})
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrNotInitialized, kindNotInitialized},
		{fmt.Errorf("wrapped: %w", ErrKeyMismatch), kindKeyMismatch},
		{fmt.Errorf("%w: %w", errTransport, errors.New("refused")), kindTransport},
		{nitro.ErrStale, "stale"},
		{errors.New("other"), "unknown"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Outcome(c.err))
	}
}
