// Package httperr defines the JSON error body returned by the enclave's HTTP
// endpoints, e.g. {"error":"not initialized"}.
package httperr

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxLen caps how much of a failed response is buffered.
const maxLen = 4096

// Error is the body of a non-200 response.
type Error struct {
	Msg string `json:"error"`
}

func New(msg string) *Error {
	return &Error{Msg: msg}
}

func (e *Error) Error() string {
	return e.Msg
}

// FromBody returns the message of an error body, or "" if the body is not
// one. At most maxLen bytes of the body remain readable afterwards.
func FromBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLen))
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var e Error
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Msg
}
