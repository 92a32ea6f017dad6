package dnscheck

import (
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDKIMKeyPair(t *testing.T) {
	pair, err := GenerateDKIMKeyPair(1024)
	require.NoError(t, err)

	assert.Equal(t, 1024, pair.Bits)

	block, rest := pem.Decode([]byte(pair.PrivateKeyPEM))
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)
	assert.Empty(t, rest)

	assert.True(t, strings.HasPrefix(pair.PublicKeyTXT, "v=DKIM1; k=rsa; p="))
	assert.NotEqual(t, "v=DKIM1; k=rsa; p=", pair.PublicKeyTXT, "public key material must be present")
}

func TestGenerateDKIMKeyPairRejectsWeakKeys(t *testing.T) {
	_, err := GenerateDKIMKeyPair(512)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}
