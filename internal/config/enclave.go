package config

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/worldcoin/world-chat-backend-sub000/internal/types/validate"
)

var (
	_ validate.Validator = (*Enclave)(nil)
	_ validate.Validator = (*Init)(nil)
	_ validate.Validator = (*Verify)(nil)
)

// Enclave represents the configuration of the enclave service.
type Enclave struct {
	// Port contains the VSOCK port that the service listens on.  In insecure
	// mode, it's a TCP port on the loopback interface instead.
	Port uint32

	// Insecure facilitates local testing by disabling the system checks that
	// we would normally run in the enclave, by using the noop attester
	// instead of the Nitro hypervisor, and by using loopback TCP instead of
	// VSOCK.  Never set this in production.
	Insecure bool

	// KeySyncTimeout bounds a single attempt to fetch the secret key from a
	// peer enclave.
	KeySyncTimeout time.Duration

	// LogLevel sets the minimum level of log messages, e.g. "debug".
	LogLevel string

	// MaxConns limits the number of concurrent connections to the service.
	MaxConns int

	// MetricsNamespace is the prefix of all Prometheus metrics.
	MetricsNamespace string
}

func (c *Enclave) Validate() map[string]string {
	problems := make(map[string]string)

	if c.Port == 0 {
		problems["-port"] = "port must not be 0"
	}
	if c.KeySyncTimeout <= 0 {
		problems["-keysync-timeout"] = "must be positive"
	}
	if c.MaxConns < 1 {
		problems["-max-conns"] = "must allow at least one connection"
	}
	if !isValidLevel(c.LogLevel) {
		problems["-log-level"] = "unknown log level"
	}

	return problems
}

func isValidLevel(level string) bool {
	if level == "" {
		return true
	}
	_, err := zerolog.ParseLevel(level)
	return err == nil
}
