package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Signer produces market-style signatures over signed data, for tests that
// exercise the verification path with real keys.
type Signer struct {
	key *rsa.PrivateKey
}

func NewSigner(t *testing.T) *Signer {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Signer{key: key}
}

// PublicKeyBase64 returns the verification key in the base64 PKIX form the
// billing config expects.
func (s *Signer) PublicKeyBase64(t *testing.T) string {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}

// Sign returns the base64 SHA1-with-RSA signature over data.
func (s *Signer) Sign(t *testing.T, data string) string {
	digest := sha1.Sum([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

// Order is one entry of a signed purchase-state envelope.
type Order struct {
	NotificationID   string `json:"notificationId,omitempty"`
	OrderID          string `json:"orderId"`
	PackageName      string `json:"packageName"`
	ProductID        string `json:"productId"`
	PurchaseTime     int64  `json:"purchaseTime"`
	PurchaseState    int    `json:"purchaseState"`
	DeveloperPayload string `json:"developerPayload,omitempty"`
}

// Envelope serializes a signed-data envelope the way the market service does.
func Envelope(t *testing.T, nonce int64, orders ...Order) string {
	raw, err := json.Marshal(map[string]any{
		"nonce":  nonce,
		"orders": orders,
	})
	require.NoError(t, err)
	return string(raw)
}
