// Package api defines the JSON messages that the enclave's HTTP service
// speaks.  Binary fields are standard Base64 strings.
package api

const (
	PathHealth         = "/v1/health"
	PathInfo           = "/v1/info"
	PathAttestationDoc = "/v1/attestation-doc"
	PathInitialize     = "/v1/initialize"
	PathSecretKey      = "/v1/secret-key"
	PathMetrics        = "/metrics"
)

// Error messages that clients may see.
const (
	ErrMsgNotInitialized = "not initialized"
	ErrMsgBadRequest     = "bad request"
	ErrMsgUntrustedPeer  = "peer attestation rejected"
	ErrMsgAttestation    = "failed to create attestation document"
)

type HealthResponse struct {
	Initialized bool `json:"initialized"`
}

type InfoResponse struct {
	EnclaveInstanceID string `json:"enclave_instance_id"`
}

type AttestationDocResponse struct {
	AttestationDoc string `json:"attestation_doc_base64"`
}

// InitializeRequest is sent by the host after the enclave started.
type InitializeRequest struct {
	// GenerateKeyPair permits the enclave to generate the track's key if no
	// peer could provide it.
	GenerateKeyPair bool `json:"generate_key_pair"`
	// ClusterProxyPort is the parent's VSOCK port that forwards to peer
	// enclaves.
	ClusterProxyPort uint32 `json:"cluster_proxy_port"`
}

type InitializeResponse struct {
	// Source is either "peer" or "generated", or "existing" if the enclave
	// was initialized before.
	Source string `json:"source"`
}

// Key sources reported in InitializeResponse.
const (
	SourcePeer      = "peer"
	SourceGenerated = "generated"
	SourceExisting  = "existing"
)

// SecretKeyRequest asks a peer enclave for the track's secret key.  The
// attestation document carries the requester's ephemeral public key and the
// nonce.
type SecretKeyRequest struct {
	AttestationDoc string `json:"attestation_doc"`
	Nonce          string `json:"nonce"`
}

// SecretKeyResponse carries the secret key, sealed to the requester's
// ephemeral public key, and the responder's attestation document, which
// embeds the requester's nonce.
type SecretKeyResponse struct {
	Ciphertext     string `json:"ciphertext"`
	AttestationDoc string `json:"attestation_doc"`
}
