package nitro

import (
	"crypto/x509"
	"encoding/pem"
	"sync"
)

// awsNitroRootG1 is the root certificate for Nitro Enclave attestation
// documents.  It can be downloaded from
// https://aws-nitro-enclaves.amazonaws.com/AWS_NitroEnclaves_Root-G1.zip
// and its SHA256 sum matched against the one in the AWS documentation:
// https://docs.aws.amazon.com/enclaves/latest/user/verify-root.html
const awsNitroRootG1 = `-----BEGIN CERTIFICATE-----
MIICETCCAZagAwIBAgIRAPkxdWgbkK/hHUbMtOTn+FYwCgYIKoZIzj0EAwMwSTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoMBkFtYXpvbjEMMAoGA1UECwwDQVdTMRswGQYD
VQQDDBJhd3Mubml0cm8tZW5jbGF2ZXMwHhcNMTkxMDI4MTMyODA1WhcNNDkxMDI4
MTQyODA1WjBJMQswCQYDVQQGEwJVUzEPMA0GA1UECgwGQW1hem9uMQwwCgYDVQQL
DANBV1MxGzAZBgNVBAMMEmF3cy5uaXRyby1lbmNsYXZlczB2MBAGByqGSM49AgEG
BSuBBAAiA2IABPwCVOumCMHzaHDimtqQvkY4MpJzbolL//Zy2YlES1BR5TSksfbb
48C8WBoyt7F2Bw7eEtaaP+ohG2bnUs990d0JX28TcPQXCEPZ3BABIeTPYwEoCWZE
h8l5YoQwTcU/9KNCMEAwDwYDVR0TAQH/BAUwAwEB/zAdBgNVHQ4EFgQUkCW1DdkF
R+eWw5b6cp3PmanfS5YwDgYDVR0PAQH/BAQDAgGGMAoGCCqGSM49BAMDA2kAMGYC
MQCjfy+Rocm9Xue4YnwWmNJVA44fA0P5W2OpYow9OYCVRaEevL8uO1XYru5xtMPW
rfMCMQCi85sWBbJwKKXdS6BptQFuZbT73o/gBh1qUxl/nNr12UO8Yfwr6wPLb+6N
IwLz3/Y=
-----END CERTIFICATE-----`

// rootCert returns the parsed root certificate.  It is parsed once, on first
// use, and never changes afterwards.
var rootCert = sync.OnceValue(func() *x509.Certificate {
	block, _ := pem.Decode([]byte(awsNitroRootG1))
	if block == nil {
		panic("embedded Nitro root certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		panic("embedded Nitro root certificate is invalid: " + err.Error())
	}
	return cert
})

// defaultRoots returns a fresh pool containing only the Nitro root.  The pool
// is rebuilt per call so that no caller can add certificates to a shared pool.
func defaultRoots() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(rootCert())
	return pool
}
