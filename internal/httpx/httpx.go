// Package httpx implements utility functions related to HTTP.
package httpx

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/httperr"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
)

const ParamNonce = "nonce"

// MaxResponseLen bounds the JSON bodies that GetJSON and PostJSON decode.
const MaxResponseLen = 1 << 16

var (
	errBadForm          = errors.New("failed to parse POST form data")
	errNoNonce          = errors.New("could not find nonce in URL query parameters")
	errBadNonceFormat   = errors.New("unexpected nonce format; must be Base64 string")
	errDeadlineExceeded = errors.New("deadline exceeded")
	ErrNoNonce          = errNoNonce
)

// StatusError is returned for responses with a status code other than 200.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Msg)
}

// ExtractNonce extracts a nonce from the HTTP request's parameters, e.g.:
// https://example.com/endpoint?nonce=jtEcS7icZiwF5GMvmvnjuZ9xjcc%3D
func ExtractNonce(r *http.Request) (n *nonce.Nonce, err error) {
	defer errs.Wrap(&err, "failed to extract nonce from request")

	if err := r.ParseForm(); err != nil {
		return nil, errBadForm
	}

	strNonce := r.URL.Query().Get(ParamNonce)
	if strNonce == "" {
		return nil, errNoNonce
	}

	// Decode Base64-encoded nonce.
	rawNonce, err := base64.StdEncoding.DecodeString(strNonce)
	if err != nil {
		return nil, errBadNonceFormat
	}

	n, err = nonce.FromSlice(rawNonce)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// PostJSON sends the JSON encoding of in to the given URL and decodes the
// JSON response into out, unless out is nil.  Responses other than 200 OK
// result in a *StatusError.
func PostJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	in, out any,
) (err error) {
	defer errs.Wrap(&err, "POST %s failed", url)

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req, out)
}

// GetJSON is like PostJSON but sends a GET request without body.
func GetJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	out any,
) (err error) {
	defer errs.Wrap(&err, "GET %s failed", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Msg: httperr.FromBody(resp)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(io.LimitReader(resp.Body, MaxResponseLen)).Decode(out)
}

// WaitForSvc waits for the service (specified by the URL) to become available
// by making repeated HTTP GET requests using the given HTTP client.  This
// function blocks until 1) the service responds with an HTTP response or 2) the
// given context expires.
func WaitForSvc(
	ctx context.Context,
	client *http.Client,
	url string,
) (err error) {
	defer errs.Wrap(&err, "failed to wait for service")

	if _, ok := ctx.Deadline(); !ok {
		return errors.New("context has no deadline")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	for {
		log.Debug().Str("url", url).Msg("Making request to service...")
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			log.Info().Str("url", url).Msg("Service is ready.")
			return nil
		}
		select {
		case <-ctx.Done():
			return errDeadlineExceeded
		case <-time.After(10 * time.Millisecond):
		}
	}
}
