package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"

	"github.com/pkg/errors"
)

// Verifier checks that a signed payload blob matches its signature. The
// default implementation verifies against the market service's published key;
// callers can substitute their own (e.g. one that defers to a backend).
type Verifier interface {
	Verify(signedData, signature string) bool
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(signedData, signature string) bool

func (f VerifierFunc) Verify(signedData, signature string) bool {
	return f(signedData, signature)
}

// rsaVerifier implements the market service's signing scheme: SHA1-with-RSA
// over the raw signed-data string, base64 signature, base64 DER public key.
type rsaVerifier struct {
	key *rsa.PublicKey
}

// NewRSAVerifier parses a base64-encoded DER (PKIX) RSA public key, as issued
// by the market publisher console.
func NewRSAVerifier(publicKey string) (Verifier, error) {
	der, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "public key is not valid base64")
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "public key is not valid DER")
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return &rsaVerifier{key: key}, nil
}

func (v *rsaVerifier) Verify(signedData, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha1.Sum([]byte(signedData))
	return rsa.VerifyPKCS1v15(v.key, crypto.SHA1, digest[:], sig) == nil
}
