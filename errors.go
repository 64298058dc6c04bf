package secretfs

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents an encryption or decryption failure
type EncryptionError struct {
	Operation string // "encrypt" or "decrypt"
	Path      string // Physical path, if applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a file system I/O error
type IOError struct {
	Operation string // "read", "write", "remove", "mkdir", "stat", etc.
	Path      string // Location or physical path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError represents a damaged bootstrap file or stored entry
type CorruptionError struct {
	Path    string // File path
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corruption error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("corruption error: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// FormatError is returned when a string cannot be decoded by a StringEncoder
type FormatError struct {
	Text string // The text that failed to decode
	Err  error  // Underlying decoder error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: cannot decode %q: %v", e.Text, e.Err)
}

func (e *FormatError) Unwrap() []error {
	return []error{ErrFormat, e.Err}
}

// UnsupportedError is returned by operations the repository does not implement
type UnsupportedError struct {
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Operation)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Sentinel errors, matched with errors.Is
var (
	ErrNotFound                  = errors.New("entry not found")
	ErrDecryption                = errors.New("decryption failed - ciphertext is malformed or the key is wrong")
	ErrEncoding                  = errors.New("decrypted data is not valid UTF-8")
	ErrFormat                    = errors.New("invalid encoded string")
	ErrConfigCorrupt             = errors.New("repository bootstrap file is corrupt")
	ErrUnsupported               = errors.New("operation not supported")
	ErrInvalidName               = errors.New("invalid name")
	ErrInvalidInitialisationData = errors.New("invalid initialisation data")
	ErrInvalidKey                = errors.New("invalid encryption key")
	ErrNotAFile                  = errors.New("location is not a file")
	ErrForeignLocation           = errors.New("location belongs to another repository")
	ErrNilConfig                 = errors.New("config cannot be nil")
	ErrNilKeyProvider            = errors.New("key provider cannot be nil")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation, path string, err error) error {
	return &EncryptionError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCorruptionError creates a new corruption error wrapping ErrConfigCorrupt
func NewCorruptionError(path string, message string, cause error) error {
	err := ErrConfigCorrupt
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConfigCorrupt, cause)
	}
	return &CorruptionError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsFormatError checks if an error is a format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsNotFound reports whether err means the addressed entry does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
