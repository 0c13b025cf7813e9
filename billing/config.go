package billing

import (
	"encoding/base64"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/code-payments/market-billing-client/security"
)

// Environment variables recognized by ConfigFromEnv.
const (
	EnvPackageName     = "BILLING_PACKAGE_NAME"
	EnvObfuscationSalt = "BILLING_OBFUSCATION_SALT"
	EnvPublicKey       = "BILLING_PUBLIC_KEY"
	EnvDebug           = "BILLING_DEBUG"
)

// Config carries the on-demand values the controller needs.
type Config struct {
	// PackageName is the caller package/namespace identifier sent with every
	// request.
	PackageName string

	// ObfuscationSalt keys the at-rest obfuscation of purchases. Nil disables
	// obfuscation, which is logged as a warning condition, not an error.
	// Recommended length is security.SaltLength random bytes.
	ObfuscationSalt []byte

	// PublicKey is the base64-encoded key the market service signs pushes
	// with. Ignored when Verifier is set.
	PublicKey string

	// Debug skips signature verification for pushes that carry no signature.
	// A deliberate escape hatch for local testing; never enable in
	// production.
	Debug bool

	// Verifier overrides the default RSA signature verifier.
	Verifier security.Verifier
}

// ConfigFromEnv builds a Config from environment variables. The salt is
// expected base64-encoded.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		PackageName: os.Getenv(EnvPackageName),
		PublicKey:   os.Getenv(EnvPublicKey),
	}

	if raw := os.Getenv(EnvObfuscationSalt); raw != "" {
		salt, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "%s is not valid base64", EnvObfuscationSalt)
		}
		cfg.ObfuscationSalt = salt
	}

	if raw := os.Getenv(EnvDebug); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "%s is not a valid bool", EnvDebug)
		}
		cfg.Debug = debug
	}

	return cfg, nil
}
