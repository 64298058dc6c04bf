package secretfs

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input validation helpers

// invalidNameChars are rejected in names on every host we write to.
// Control characters below 0x20 are checked separately.
const invalidNameChars = `/\:*?"<>|`

// MaxNameLength is the longest name in bytes. A 175-byte name pads to 176
// bytes of ciphertext and encodes to 236 characters; one byte more pads to
// 192 and encodes to 256, past the 255-byte segment limit of common hosts.
const MaxNameLength = 175

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// ValidateName checks that text can be used as a single path segment
func ValidateName(text string) error {
	switch {
	case text == "":
		return nameError(text, "name cannot be empty")
	case text == "." || text == "..":
		return nameError(text, "relative path elements are not names")
	case !utf8.ValidString(text):
		return nameError(text, "name is not valid UTF-8")
	case len(text) > MaxNameLength:
		return nameError(text, fmt.Sprintf("name is %d bytes, the limit is %d", len(text), MaxNameLength))
	}

	for _, r := range text {
		if r < 0x20 || r == 0x7f {
			return nameError(text, fmt.Sprintf("control character %U is not allowed", r))
		}
		if strings.ContainsRune(invalidNameChars, r) {
			return nameError(text, fmt.Sprintf("character %q is not allowed", r))
		}
	}

	return nil
}

// ValidateRootPath checks the physical root a repository is opened on
func ValidateRootPath(root string) error {
	if root == "" {
		return &ValidationError{
			Field:   "root",
			Message: "root path cannot be empty",
		}
	}
	return nil
}

func nameError(text, message string) error {
	return &ValidationError{
		Field:   "name",
		Value:   text,
		Message: message,
		Err:     ErrInvalidName,
	}
}
