package tokencrypt

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	c, err := New("passphrase")
	require.NoError(t, err)

	sealed, err := c.Encrypt("access-sandbox-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-sandbox")

	again, err := c.Encrypt("access-sandbox-123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-123", plain)
}

func TestNew_RawKey(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	c, err := New(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("k", 32)), c.key)
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestDecrypt_Rejects(t *testing.T) {
	c, err := New("passphrase")
	require.NoError(t, err)
	other, err := New("other")
	require.NoError(t, err)

	sealed, err := c.Encrypt("token")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)

	_, err = c.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrMalformed)
}
