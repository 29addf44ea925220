package box

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/worldcoin/world-chat-backend-sub000/internal/util/must"
)

func TestNewSymmetric(t *testing.T) {
	cases := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "long key",
			key:     make([]byte, 33),
			wantErr: true,
		},
		{
			name: "valid key",
			key:  must.Get(NewSymmetricKey()),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewSymmetric(c.key)
			require.Equal(t, c.wantErr, err != nil)
		})
	}
}

func TestSymmetricRoundTrip(t *testing.T) {
	s := must.Get(NewSymmetric(must.Get(NewSymmetricKey())))

	for _, plaintext := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte("a"), 4096)} {
		packed, err := s.Seal(plaintext, []byte("aad"))
		require.NoError(t, err)
		require.Len(t, packed, 24+len(plaintext)+16)

		got, err := s.Open(packed, []byte("aad"))
		require.NoError(t, err)
		require.True(t, bytes.Equal(plaintext, got))
	}
}

func TestSymmetricAuthentication(t *testing.T) {
	var (
		s      = must.Get(NewSymmetric(must.Get(NewSymmetricKey())))
		other  = must.Get(NewSymmetric(must.Get(NewSymmetricKey())))
		packed = must.Get(s.Seal([]byte("the quick brown fox jumps"), []byte("aad")))
	)

	tampered := bytes.Clone(packed)
	tampered[30] ^= 0xff

	cases := []struct {
		name   string
		box    *Symmetric
		packed []byte
		aad    []byte
	}{
		{
			name:   "wrong aad",
			box:    s,
			packed: packed,
			aad:    []byte("other"),
		},
		{
			name:   "missing aad",
			box:    s,
			packed: packed,
		},
		{
			name:   "wrong key",
			box:    other,
			packed: packed,
			aad:    []byte("aad"),
		},
		{
			name:   "tampered ciphertext",
			box:    s,
			packed: tampered,
			aad:    []byte("aad"),
		},
		{
			name:   "malformed input",
			box:    s,
			packed: []byte("short"),
			aad:    []byte("aad"),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.box.Open(c.packed, c.aad)
			require.Error(t, err)
		})
	}
}
