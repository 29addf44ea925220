package handle

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/httperr"
)

// maxBodyLen bounds request bodies.  Attestation documents are a few KiB, so
// this leaves plenty of room.
const maxBodyLen = 1 << 16

func encode[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response.")
	}
}

func encodeErr(w http.ResponseWriter, status int, msg string) {
	encode(w, status, httperr.New(msg))
}

func decode[T any](r *http.Request) (*T, error) {
	v := new(T)
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyLen))
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return v, nil
}
