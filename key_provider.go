package secretfs

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the AES-256 key size
const KeySize = 32

// DefaultPBKDF2Iterations is the iteration count used for password keys
const DefaultPBKDF2Iterations = 600000

// KeyProvider is an interface for providing encryption keys
type KeyProvider interface {
	// DeriveKey derives the repository key from the repository salt
	DeriveKey(salt []byte) ([]byte, error)
}

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int // Number of iterations (default 600,000)
	KeySize    int // Derived key size in bytes (default 32 for AES-256)
}

// PasswordKeyProvider implements KeyProvider using PBKDF2-HMAC-SHA256
type PasswordKeyProvider struct {
	password []byte
	params   PBKDF2Params
}

// NewPasswordKeyProvider creates a new password-based key provider
func NewPasswordKeyProvider(password []byte, params PBKDF2Params) *PasswordKeyProvider {
	// Set defaults
	if params.Iterations == 0 {
		params.Iterations = DefaultPBKDF2Iterations
	}
	if params.KeySize == 0 {
		params.KeySize = KeySize
	}

	return &PasswordKeyProvider{
		password: password,
		params:   params,
	}
}

// DeriveKey derives an encryption key from the password and salt
func (p *PasswordKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if len(p.password) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	if p.params.Iterations < 1 {
		return nil, NewValidationError("iterations", p.params.Iterations, "must be positive")
	}

	return pbkdf2.Key(p.password, salt, p.params.Iterations, p.params.KeySize, sha256.New), nil
}

// StaticKeyProvider hands out a raw key; the salt is ignored
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a provider for an externally supplied key
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	k := make([]byte, len(key))
	copy(k, key)
	return &StaticKeyProvider{key: k}
}

// DeriveKey returns a copy of the raw key
func (s *StaticKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if err := ValidateKey(s.key, KeySize); err != nil {
		return nil, err
	}
	k := make([]byte, len(s.key))
	copy(k, s.key)
	return k, nil
}

// EnvKeyProvider implements KeyProvider using an environment variable
type EnvKeyProvider struct {
	envVar string
}

// NewEnvKeyProvider creates a new environment variable key provider
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	return &EnvKeyProvider{envVar: envVar}
}

// DeriveKey returns the key from the environment variable.
// The variable holds the 32-byte key in standard base64.
func (e *EnvKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	encoded := os.Getenv(e.envVar)
	if encoded == "" {
		return nil, fmt.Errorf("environment variable %s not set", e.envVar)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("environment variable %s is not valid base64: %w", e.envVar, err)
	}
	if err := ValidateKey(key, KeySize); err != nil {
		return nil, err
	}

	return key, nil
}
