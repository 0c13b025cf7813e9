package security

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

// EncodeType selects the textual encoding used for obfuscated field material
// at rest.
type EncodeType string

const (
	Base64            EncodeType = "b64"
	Base58            EncodeType = "b58"
	Hex               EncodeType = "hex"
	DefaultEncodeType            = Base58
)

// Encode renders the ciphertext into the specified encoding, prefixed with a
// short encoding tag so rows written under one scheme stay decodable if the
// default ever changes. Defaults to Base58.
func Encode(value []byte, encodeType ...EncodeType) string {
	encType := DefaultEncodeType
	if len(encodeType) > 0 {
		encType = encodeType[0]
	}

	var encodedValue string
	switch encType {
	case Base64:
		encodedValue = base64.StdEncoding.EncodeToString(value)
	case Hex:
		encodedValue = hex.EncodeToString(value)
	case Base58:
		fallthrough
	default:
		encodedValue = base58.Encode(value)
	}

	return string(encType) + ":" + encodedValue
}

// Decode reverses Encode, determining the encoding from the tag prefix.
func Decode(value string) ([]byte, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid encoded value format")
	}

	encType, encodedValue := EncodeType(parts[0]), parts[1]

	switch encType {
	case Base64:
		return base64.StdEncoding.DecodeString(encodedValue)
	case Hex:
		return hex.DecodeString(encodedValue)
	case Base58:
		return base58.Decode(encodedValue)
	default:
		return nil, errors.New("unsupported encoding type")
	}
}
