// Package security covers the two trust concerns of the billing client:
// verifying the signature on authoritative pushes, and obfuscating sensitive
// transaction fields before they reach durable storage.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"

	"github.com/pkg/errors"
)

// SaltLength is the recommended amount of random key material for a Codec.
const SaltLength = 20

// Codec reversibly obscures selected transaction fields. The transform is
// deterministic for a given salt: identical plaintext always obfuscates to
// identical output, which is what lets the ledger keep answering
// query-by-equality against at-rest data.
//
// A Codec with no salt passes values through unchanged; the controller logs
// that condition once per access rather than treating it as an error.
type Codec struct {
	block cipher.Block
	iv    []byte
}

// NewCodec derives the cipher material from the caller-supplied salt. A nil
// or empty salt yields a pass-through codec.
func NewCodec(salt []byte) *Codec {
	if len(salt) == 0 {
		return &Codec{}
	}

	key := sha256.Sum256(append([]byte("key:"), salt...))
	ivSeed := sha256.Sum256(append([]byte("iv:"), salt...))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		// Key length is fixed at 32 bytes above; aes.NewCipher cannot fail.
		panic(err)
	}

	return &Codec{
		block: block,
		iv:    ivSeed[:aes.BlockSize],
	}
}

// Enabled reports whether the codec has salt material configured.
func (c *Codec) Enabled() bool {
	return c.block != nil
}

// Obfuscate obscures a single field value. Pass-through when no salt is
// configured.
func (c *Codec) Obfuscate(value string) string {
	if !c.Enabled() || value == "" {
		return value
	}

	out := make([]byte, len(value))
	cipher.NewCTR(c.block, c.iv).XORKeyStream(out, []byte(value))
	return Encode(out)
}

// Unobfuscate reverses Obfuscate. It fails only on values that were never
// produced by this codec, which indicates corrupted or foreign storage.
func (c *Codec) Unobfuscate(value string) (string, error) {
	if !c.Enabled() || value == "" {
		return value, nil
	}

	raw, err := Decode(value)
	if err != nil {
		return "", errors.Wrap(err, "not an obfuscated value")
	}

	out := make([]byte, len(raw))
	cipher.NewCTR(c.block, c.iv).XORKeyStream(out, raw)
	return string(out), nil
}
