package config

import (
	"net/url"
	"slices"
	"time"
)

// The first CID that the hypervisor assigns to enclaves.  Lower CIDs are
// reserved, and 3 is the parent instance.
const minEnclaveCID = 4

// Init represents the configuration of the host-side initialization
// workflow.
type Init struct {
	// CID and Port address the enclave's service over VSOCK.
	CID  uint32
	Port uint32

	// ClusterProxyPort is the parent's VSOCK port that forwards to peer
	// enclaves.  It is passed to the enclave.
	ClusterProxyPort uint32

	// Track identifies the group of enclaves that share a secret key.
	Track string

	// RedisURL points to the store that coordinates key generation, e.g.
	// redis://redis.internal:6379/0.
	RedisURL string

	// Insecure talks to the enclave over loopback TCP instead of VSOCK.
	Insecure bool

	// Timeout bounds how long we wait for the enclave's service.
	Timeout time.Duration

	// MaxRetries and RetryDelay control the initialization attempts.
	MaxRetries int
	RetryDelay time.Duration

	LogLevel string
}

func (c *Init) Validate() map[string]string {
	problems := make(map[string]string)

	if !c.Insecure && c.CID < minEnclaveCID {
		problems["-cid"] = "must be an enclave CID"
	}
	if c.Port == 0 {
		problems["-port"] = "port must not be 0"
	}
	if c.ClusterProxyPort == 0 {
		problems["-cluster-proxy-port"] = "port must not be 0"
	}
	if c.Track == "" {
		problems["-track"] = "argument is required"
	}
	if u, err := url.Parse(c.RedisURL); err != nil || !slices.Contains([]string{"redis", "rediss"}, u.Scheme) {
		problems["-redis-url"] = "must be a redis:// or rediss:// URL"
	}
	if c.Timeout <= 0 {
		problems["-timeout"] = "must be positive"
	}
	if c.MaxRetries < 1 {
		problems["-max-retries"] = "must allow at least one attempt"
	}
	if c.RetryDelay < 0 {
		problems["-retry-delay"] = "must not be negative"
	}
	if !isValidLevel(c.LogLevel) {
		problems["-log-level"] = "unknown log level"
	}

	return problems
}
