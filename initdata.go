package secretfs

import (
	"crypto/rand"
	"fmt"
)

const (
	// SaltSize is the size of the PBKDF2 salt stored per repository
	SaltSize = 8
	// IVSize is the size of the AES-CBC initialisation vector
	IVSize = 16
	// InitialisationDataSize is len(salt) + len(iv)
	InitialisationDataSize = SaltSize + IVSize
)

// InitialisationData is the fixed salt and IV pair of a repository. It is
// generated once and persisted in the bootstrap file; every cipher built from
// the same password and the same InitialisationData produces identical output.
type InitialisationData struct {
	Salt [SaltSize]byte
	IV   [IVSize]byte
}

// NewInitialisationData generates a random salt and IV
func NewInitialisationData() (InitialisationData, error) {
	var d InitialisationData
	if _, err := rand.Read(d.Salt[:]); err != nil {
		return d, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := rand.Read(d.IV[:]); err != nil {
		return d, fmt.Errorf("failed to generate iv: %w", err)
	}
	return d, nil
}

// ParseInitialisationData decodes salt ‖ iv. The input must be exactly
// InitialisationDataSize bytes.
func ParseInitialisationData(b []byte) (InitialisationData, error) {
	var d InitialisationData
	if len(b) != InitialisationDataSize {
		return d, &ValidationError{
			Field:   "initialisation_data",
			Value:   len(b),
			Message: fmt.Sprintf("invalid size: got %d bytes, expected %d bytes", len(b), InitialisationDataSize),
			Err:     ErrInvalidInitialisationData,
		}
	}
	copy(d.Salt[:], b[:SaltSize])
	copy(d.IV[:], b[SaltSize:])
	return d, nil
}

// Bytes returns salt ‖ iv
func (d InitialisationData) Bytes() []byte {
	b := make([]byte, 0, InitialisationDataSize)
	b = append(b, d.Salt[:]...)
	return append(b, d.IV[:]...)
}
