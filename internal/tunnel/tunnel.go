// Package tunnel provides the point-to-point transport between the enclave
// and its parent instance.  In production, that's VSOCK; for local testing,
// it's loopback TCP.
package tunnel

import (
	"context"
	"net"
	"net/http"
	"time"
)

// ParentCID is the CID (analogous to an IP address) of the parent EC2
// instance.  According to AWS docs, it is always 3:
// https://docs.aws.amazon.com/enclaves/latest/user/nitro-enclave-concepts.html
const ParentCID = 3

var (
	_ Mechanism = VSOCK{}
	_ Mechanism = Noop{}
)

// Mechanism listens for and dials point-to-point connections.
type Mechanism interface {
	Listen(port uint32) (net.Listener, error)
	Dial(ctx context.Context, cid, port uint32) (net.Conn, error)
}

// HTTPClient returns an HTTP client whose connections all go to the given
// CID and port over the given mechanism, regardless of the request URL's
// host.
func HTTPClient(m Mechanism, cid, port uint32, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return m.Dial(ctx, cid, port)
			},
			MaxIdleConns:    1,
			IdleConnTimeout: 30 * time.Second,
		},
	}
}
