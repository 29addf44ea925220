package nitro

import (
	"crypto/x509"
	"time"

	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
)

// verifyChain validates the document's leaf certificate against the given
// roots at the given time, and returns the leaf.  The first element of the
// CA bundle is the root itself, which is why it is skipped; trust comes from
// the roots alone.
func verifyChain(
	doc *enclave.Document,
	roots *x509.CertPool,
	at time.Time,
) (*x509.Certificate, error) {
	leaf, err := x509.ParseCertificate(doc.Certificate)
	if err != nil {
		return nil, fail(ErrChainInvalid, "failed to parse leaf certificate: %s", err)
	}
	if leaf.PublicKeyAlgorithm != x509.ECDSA {
		return nil, fail(ErrChainInvalid, "leaf public key algorithm is not ECDSA")
	}
	if leaf.SignatureAlgorithm != x509.ECDSAWithSHA384 {
		return nil, fail(ErrChainInvalid, "leaf signature algorithm is not ECDSAWithSHA384")
	}

	intermediates := x509.NewCertPool()
	for i, der := range doc.CABundle[1:] {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fail(ErrChainInvalid, "failed to parse CA bundle entry %d: %s", i+1, err)
		}
		intermediates.AddCert(cert)
	}

	if _, err := leaf.Verify(x509.VerifyOptions{
		Intermediates: intermediates,
		Roots:         roots,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, fail(ErrChainInvalid, "%s", err)
	}
	return leaf, nil
}
