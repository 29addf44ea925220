// Package box implements the two encryption primitives used to move secrets
// between enclaves: an anonymous sealed box for encrypting to a public key,
// and an XChaCha20-Poly1305 box for encrypting with a shared key.
package box

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyLen is the length in bytes of both halves of a key pair.
const KeyLen = 32

var (
	// Accessing rand.Reader via variable facilitates mocking.
	cryptoRead = rand.Reader

	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrDecrypt          = errors.New("failed to decrypt ciphertext")
)

// KeyPair is an X25519 key pair.  The private half must never leave the
// process unless it is sealed to another attested key.
type KeyPair struct {
	Public  *[KeyLen]byte
	Private *[KeyLen]byte
}

// NewKeyPair generates a new key pair.
func NewKeyPair() (_ *KeyPair, err error) {
	defer errs.Wrap(&err, "failed to generate key pair")

	pub, priv, err := box.GenerateKey(cryptoRead)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// KeyPairFromPrivate reconstructs a key pair from its private half.
func KeyPairFromPrivate(priv []byte) (_ *KeyPair, err error) {
	defer errs.Wrap(&err, "failed to restore key pair")

	if len(priv) != KeyLen {
		return nil, errs.InvalidLength
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	kp := &KeyPair{
		Public:  new([KeyLen]byte),
		Private: new([KeyLen]byte),
	}
	copy(kp.Public[:], pub)
	copy(kp.Private[:], priv)
	return kp, nil
}

// PublicKeyFromBytes turns the given slice into a public key.
func PublicKeyFromBytes(b []byte) (*[KeyLen]byte, error) {
	if len(b) != KeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes but got %d",
			ErrInvalidPublicKey, KeyLen, len(b))
	}
	var pub [KeyLen]byte
	copy(pub[:], b)
	return &pub, nil
}

// Seal encrypts the plaintext to the given public key.  The result is
// compatible with libsodium's crypto_box_seal.
func Seal(plaintext []byte, recipient *[KeyLen]byte) (_ []byte, err error) {
	defer errs.Wrap(&err, "failed to seal plaintext")

	if recipient == nil {
		return nil, errs.IsNil
	}
	return box.SealAnonymous(nil, plaintext, recipient, cryptoRead)
}

// Open decrypts a ciphertext that was sealed to the key pair's public key.
func (k *KeyPair) Open(ciphertext []byte) ([]byte, error) {
	plaintext, ok := box.OpenAnonymous(nil, ciphertext, k.Public, k.Private)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
