package config

import (
	"fmt"
	"net/url"
	"os"
)

// Verify represents the configuration of attest-verify.
type Verify struct {
	// Addr contains the enclave service's URL, e.g.:
	//	http://127.0.0.1:8080
	Addr string

	// Doc contains a Base64-encoded attestation document to verify instead
	// of fetching one from Addr.
	Doc string

	// Measurements contains the path to the JSON file that
	// `nitro-cli build-enclave` prints.
	Measurements string

	// Roots contains the path to a PEM file with root certificates to trust
	// instead of the AWS Nitro root.
	Roots string

	// Verbose prints extra information if set to true.
	Verbose bool
}

func (c *Verify) Validate() map[string]string {
	problems := make(map[string]string)

	switch {
	case c.Addr == "" && c.Doc == "":
		problems["-addr"] = "either -addr or -doc is required"
	case c.Addr != "" && c.Doc != "":
		problems["-doc"] = "must not be combined with -addr"
	case c.Addr != "":
		if u, err := url.Parse(c.Addr); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			problems["-addr"] = "must be an HTTP or HTTPS URL"
		}
	}

	if c.Measurements == "" {
		problems["-measurements"] = "argument is required"
	} else if _, err := os.Stat(c.Measurements); err != nil {
		problems["-measurements"] = fmt.Sprintf("given file %q does not exist", c.Measurements)
	}
	if c.Roots != "" {
		if _, err := os.Stat(c.Roots); err != nil {
			problems["-roots"] = fmt.Sprintf("given file %q does not exist", c.Roots)
		}
	}

	return problems
}
