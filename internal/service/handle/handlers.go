// Package handle implements the enclave's HTTP handlers.
package handle

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/httpx"
	"github.com/worldcoin/world-chat-backend-sub000/internal/keysync"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service/attestation"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// Initializer obtains the enclave's secret key pair and reports where it
// came from.
type Initializer interface {
	Initialize(context.Context, *api.InitializeRequest) (string, error)
}

// Responder answers a peer's request for the secret key pair.
type Responder interface {
	Respond(*api.SecretKeyRequest) (*api.SecretKeyResponse, error)
}

// Health reports whether the enclave holds its secret key pair.
func Health(keys *enclave.Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		encode(w, http.StatusOK, api.HealthResponse{Initialized: keys.Initialized()})
	}
}

// Info returns the enclave's instance ID, which changes with every restart.
func Info(instanceID string) http.HandlerFunc {
	resp := api.InfoResponse{EnclaveInstanceID: instanceID}
	return func(w http.ResponseWriter, r *http.Request) {
		encode(w, http.StatusOK, resp)
	}
}

// AttestationDoc returns a fresh attestation document that embeds the secret
// key pair's public key and, if the client provided one, a nonce.
func AttestationDoc(keys *enclave.Keys, builder *attestation.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := keys.Secret()
		if secret == nil {
			encodeErr(w, http.StatusServiceUnavailable, api.ErrMsgNotInitialized)
			return
		}

		// The nonce is optional but if it's there, it must be well-formed.
		n, err := httpx.ExtractNonce(r)
		if err != nil && !errors.Is(err, httpx.ErrNoNonce) {
			encodeErr(w, http.StatusBadRequest, err.Error())
			return
		}

		doc, err := builder.AttestB64(
			attestation.WithPublicKey(secret.Public),
			attestation.WithNonce(n),
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create attestation document.")
			encodeErr(w, http.StatusInternalServerError, api.ErrMsgAttestation)
			return
		}
		encode(w, http.StatusOK, api.AttestationDocResponse{AttestationDoc: doc})
	}
}

// Initialize makes the enclave obtain its secret key pair.  Once the enclave
// is initialized, subsequent calls succeed without doing anything.
func Initialize(init Initializer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[api.InitializeRequest](r)
		if err != nil {
			encodeErr(w, http.StatusBadRequest, api.ErrMsgBadRequest)
			return
		}

		source, err := init.Initialize(r.Context(), req)
		switch {
		case errors.Is(err, keysync.ErrNotInitialized):
			encodeErr(w, http.StatusServiceUnavailable, api.ErrMsgNotInitialized)
			return
		case err != nil:
			log.Error().Err(err).Msg("Failed to initialize enclave.")
			encodeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		encode(w, http.StatusOK, api.InitializeResponse{Source: source})
	}
}

// SecretKey hands out the secret key pair to peer enclaves.
func SecretKey(responder Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[api.SecretKeyRequest](r)
		if err != nil {
			encodeErr(w, http.StatusBadRequest, api.ErrMsgBadRequest)
			return
		}

		resp, err := responder.Respond(req)
		switch {
		case err == nil:
			encode(w, http.StatusOK, resp)
		case errors.Is(err, keysync.ErrNotInitialized):
			encodeErr(w, http.StatusServiceUnavailable, api.ErrMsgNotInitialized)
		case errors.Is(err, keysync.ErrBadRequest):
			encodeErr(w, http.StatusBadRequest, api.ErrMsgBadRequest)
		case errors.Is(err, keysync.ErrAttestation):
			encodeErr(w, http.StatusInternalServerError, api.ErrMsgAttestation)
		default:
			// Don't tell the peer why we rejected it.  The reason is logged.
			encodeErr(w, http.StatusForbidden, api.ErrMsgUntrustedPeer)
		}
	}
}
