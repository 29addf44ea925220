package main

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/httpx"
	"github.com/worldcoin/world-chat-backend-sub000/internal/nonce"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

var (
	errFailedToAttest  = errors.New("failed to attest enclave")
	errFailedToConvert = errors.New("failed to convert measurements to PCR")
	errFailedToLoad    = errors.New("failed to load root certificates")
	errNonceMismatch   = errors.New("attestation document doesn't contain our nonce")
	errCodeMismatch    = errors.New("enclave's code does not match local code")
)

var client = &http.Client{Timeout: 10 * time.Second}

func attestEnclave(ctx context.Context, out io.Writer, cfg *config.Verify) (err error) {
	defer errs.WrapErr(&err, errFailedToAttest)

	rawMsmts, err := os.ReadFile(cfg.Measurements)
	if err != nil {
		return err
	}
	measurements, err := toMeasurements(rawMsmts)
	if err != nil {
		return err
	}
	opts := []nitro.Option{}
	if cfg.Roots != "" {
		roots, err := loadRoots(cfg.Roots)
		if err != nil {
			return err
		}
		opts = append(opts, nitro.WithRoots(roots))
	}

	// Unless we're given a document, ask the enclave for a fresh one.  The
	// nonce provides assurance that we are talking to an alive enclave
	// instead of a replayed attestation document.
	var n *nonce.Nonce
	doc := cfg.Doc
	if cfg.Addr != "" {
		if n, err = nonce.New(); err != nil {
			return err
		}
		if doc, err = fetchDoc(ctx, cfg.Addr, n); err != nil {
			return err
		}
	}

	v := nitro.NewVerifier(nitro.AllowList(measurements...), opts...)
	res, err := v.Verify(doc)
	if errors.Is(err, nitro.ErrCodeUntrusted) {
		color.New(color.FgRed).Fprintln(out, "Enclave's code DOES NOT match local code!")
		if cfg.Verbose {
			printPCRs(out, doc)
		}
		return fmt.Errorf("%w: %w", errCodeMismatch, err)
	}
	if err != nil {
		return err
	}
	if n != nil && !bytes.Equal(res.Nonce, n.ToSlice()) {
		return errNonceMismatch
	}

	color.New(color.FgGreen).Fprintln(out, "Enclave's code matches local code!")
	if cfg.Verbose {
		fmt.Fprintf(out, "Module ID:  %s\n", res.ModuleID)
		fmt.Fprintf(out, "Timestamp:  %s\n", time.UnixMilli(int64(res.Timestamp)).UTC())
		fmt.Fprintf(out, "Public key: %s\n", res.PublicKey)
		printPCRs(out, doc)
	}
	return nil
}

// printPCRs prints the PCRs of the given document.  Malformed documents are
// skipped.
func printPCRs(out io.Writer, docB64 string) {
	raw, err := base64.StdEncoding.DecodeString(docB64)
	if err != nil {
		return
	}
	doc, err := nitro.ParseDocument(raw)
	if err != nil {
		return
	}
	fmt.Fprintf(out, "Enclave's PCRs:\n%s", doc.PCRs)
}

func fetchDoc(ctx context.Context, addr string, n *nonce.Nonce) (_ string, err error) {
	defer errs.Wrap(&err, "failed to fetch attestation document")

	// Compile the request URL.  The given address should be of the form:
	// http://127.0.0.1:8080
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	u.Path = api.PathAttestationDoc
	query := u.Query()
	query.Set(httpx.ParamNonce, n.B64())
	u.RawQuery = query.Encode()

	var resp api.AttestationDocResponse
	if err := httpx.GetJSON(ctx, client, u.String(), &resp); err != nil {
		return "", err
	}
	return resp.AttestationDoc, nil
}

func toMeasurements(jsonMsmts []byte) (_ []nitro.Measurement, err error) {
	defer errs.WrapErr(&err, errFailedToConvert)

	// This structs represents the JSON-encoded measurements of the enclave
	// image.  The JSON tags must match the output of the nitro-cli command
	// line tool. An example:
	//
	//	{
	//	  "Measurements": {
	//	    "HashAlgorithm": "Sha384 { ... }",
	//	    "PCR0": "8b927cf0bbf2d668a8c24c69afd23bff2dda713b4f0d70195205950f9a5a1fbb7089ad937e3025ee8d5a084f3d6c9126",
	//	    "PCR1": "4b4d5b3661b3efc12920900c80e126e4ce783c522de6c02a2a5bf7af3a2b9327b86776f188e4be1c1c404a129dbda493",
	//	    "PCR2": "22d2194eb27a7cda42e66dd5b91ef13e5a153d797c04ae179e59bef1c93438d6ad0365c175c119230e36d0f8d6b6b59e"
	//	  }
	//	}
	m := struct {
		Measurements struct {
			HashAlgorithm string `json:"HashAlgorithm"`
			PCR0          string `json:"PCR0"`
			PCR1          string `json:"PCR1"`
			PCR2          string `json:"PCR2"`
		} `json:"Measurements"`
	}{}
	if err := json.Unmarshal(jsonMsmts, &m); err != nil {
		return nil, err
	}

	const want = "sha384"
	got := strings.ToLower(m.Measurements.HashAlgorithm)
	if !strings.HasPrefix(got, want) {
		return nil, fmt.Errorf("expected hash algorithm %q but got %q", want, got)
	}

	var ms []nitro.Measurement
	for i, s := range []string{m.Measurements.PCR0, m.Measurements.PCR1, m.Measurements.PCR2} {
		value, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("PCR%d: %w", i, err)
		}
		if len(value) != enclave.DigestLen(enclave.DigestSHA384) {
			return nil, fmt.Errorf("PCR%d: %w", i, errs.InvalidLength)
		}
		ms = append(ms, nitro.Measurement{Index: uint(i), Value: value})
	}
	return ms, nil
}

func loadRoots(path string) (_ *x509.CertPool, err error) {
	defer errs.WrapErr(&err, errFailedToLoad)

	pemCerts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pemCerts) {
		return nil, fmt.Errorf("no certificates in %q", path)
	}
	return roots, nil
}
