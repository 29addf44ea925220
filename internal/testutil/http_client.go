package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"time"
)

// Client talks to test servers. The timeout keeps a hung handler from
// stalling the whole test binary.
var Client = &http.Client{
	Timeout: 3 * time.Second,
}

// Port returns the loopback port srv listens on, in the form the Noop
// tunnel expects.
func Port(srv *httptest.Server) uint32 {
	return uint32(srv.Listener.Addr().(*net.TCPAddr).Port)
}
