package box

import (
	"crypto/cipher"
	"io"

	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"golang.org/x/crypto/chacha20poly1305"
)

// Symmetric encrypts and decrypts with a shared key.  Its wire format is the
// nonce followed by the ciphertext and the authentication tag.
type Symmetric struct {
	aead cipher.AEAD
}

// NewSymmetricKey returns a random key for use with NewSymmetric.
func NewSymmetricKey() (_ []byte, err error) {
	defer errs.Wrap(&err, "failed to generate symmetric key")

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(cryptoRead, key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewSymmetric returns a new XChaCha20-Poly1305 box for the given 32-byte key.
func NewSymmetric(key []byte) (_ *Symmetric, err error) {
	defer errs.Wrap(&err, "failed to create symmetric box")

	if len(key) != chacha20poly1305.KeySize {
		return nil, errs.InvalidLength
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Symmetric{aead: aead}, nil
}

// Seal encrypts the plaintext and authenticates it together with aad.
func (s *Symmetric) Seal(plaintext, aad []byte) (_ []byte, err error) {
	defer errs.Wrap(&err, "failed to encrypt")

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+
		len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(cryptoRead, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open reverses Seal.  The same aad must be provided.
func (s *Symmetric) Open(packed, aad []byte) ([]byte, error) {
	if len(packed) < chacha20poly1305.NonceSizeX+s.aead.Overhead() {
		return nil, errs.InvalidLength
	}
	nonce, ciphertext := packed[:chacha20poly1305.NonceSizeX], packed[chacha20poly1305.NonceSizeX:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
