package secretfs

import (
	"os"

	"github.com/rs/zerolog"
)

const (
	// DefaultFileMode is the permission used for encrypted entry files
	DefaultFileMode os.FileMode = 0600
	// DefaultDirMode is the permission used for encrypted folders
	DefaultDirMode os.FileMode = 0700
)

// Config contains configuration for a repository
type Config struct {
	// KeyProvider supplies the 32-byte AES key. Required by Open.
	KeyProvider KeyProvider

	// Encoder turns ciphertext into file names. Defaults to Base64URLEncoder.
	Encoder StringEncoder

	// Logger receives diagnostic tracing. Defaults to a disabled logger.
	Logger *zerolog.Logger

	// FileMode is applied to newly written entries (default 0600)
	FileMode os.FileMode

	// DirMode is applied to newly created folders (default 0700)
	DirMode os.FileMode
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.KeyProvider == nil {
		return ErrNilKeyProvider
	}
	return c.validateModes()
}

func (c *Config) validateModes() error {
	if c.FileMode&^os.ModePerm != 0 {
		return NewValidationError("FileMode", c.FileMode, "only permission bits are allowed")
	}
	if c.DirMode&^os.ModePerm != 0 {
		return NewValidationError("DirMode", c.DirMode, "only permission bits are allowed")
	}
	return nil
}

// withDefaults returns a copy of c with unset fields filled in.
func (c Config) withDefaults() Config {
	if c.Encoder == nil {
		c.Encoder = Base64URLEncoder{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultFileMode
	}
	if c.DirMode == 0 {
		c.DirMode = DefaultDirMode
	}
	return c
}

// ListOptions controls what Repository.List yields
type ListOptions struct {
	// Recursively descends into sub-folders
	Recursively bool

	// IncludeFolders yields folder locations in addition to files
	IncludeFolders bool

	// IncludeDottedFilesAndFolders keeps entries whose name starts with '.' or '_'
	IncludeDottedFilesAndFolders bool
}
