package provision

import (
	"context"
	"net/http"
	"time"

	"github.com/worldcoin/world-chat-backend-sub000/internal/httpx"
	"github.com/worldcoin/world-chat-backend-sub000/internal/tunnel"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// The tunnel determines where requests go, so the URL's host is only for
// show.
const baseURL = "http://enclave"

var _ Enclave = (*Client)(nil)

// Client talks to the enclave's service over the given mechanism.
type Client struct {
	http *http.Client
}

// NewClient returns a client for the enclave at the given CID and port.
func NewClient(m tunnel.Mechanism, cid, port uint32, timeout time.Duration) *Client {
	return &Client{http: tunnel.HTTPClient(m, cid, port, timeout)}
}

// WaitForHealth blocks until the enclave's service responds or the context
// expires.
func (c *Client) WaitForHealth(ctx context.Context) error {
	return httpx.WaitForSvc(ctx, c.http, baseURL+api.PathHealth)
}

// Initialize asks the enclave to obtain its secret key pair.
func (c *Client) Initialize(ctx context.Context, req *api.InitializeRequest) (*api.InitializeResponse, error) {
	var resp api.InitializeResponse
	if err := httpx.PostJSON(ctx, c.http, baseURL+api.PathInitialize, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
