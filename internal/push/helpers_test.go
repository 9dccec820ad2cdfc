package push

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testDeviceToken = strings.Repeat("0a", 32)

// newTestKey returns a fresh key on curve together with its PKCS#8 PEM.
func newTestKey(t *testing.T, curve elliptic.Curve) (*ecdsa.PrivateKey, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return key, string(block)
}

func newTestCredentials(t *testing.T) Credentials {
	t.Helper()
	key, _ := newTestKey(t, elliptic.P256())
	return NewCredentials("TEAM123456", "KEY1234567", "com.example.capture", key)
}
