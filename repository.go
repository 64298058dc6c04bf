package secretfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is an encrypted tree of text entries stored in an
// absfs.FileSystem. Every name on disk is base64url(AES-CBC(name)) under the
// repository's fixed salt and IV, and every file holds the raw AES-CBC
// ciphertext of its text. Because encryption is deterministic the physical
// path of a location is recomputed on every call; there is no index or cache.
//
// A Repository holds no mutable state and may be used from several
// goroutines. Concurrent writes to the same location race in the underlying
// filesystem and the last one wins.
type Repository struct {
	base     absfs.FileSystem
	root     string
	cipher   *Cipher
	encoder  StringEncoder
	log      zerolog.Logger
	fileMode os.FileMode
	dirMode  os.FileMode
}

// Open opens the repository rooted at root inside base, creating the root
// directory and a new bootstrap file when none exists.
func Open(base absfs.FileSystem, root string, config *Config) (*Repository, error) {
	if base == nil {
		return nil, fmt.Errorf("base filesystem cannot be nil")
	}
	if err := ValidateRootPath(root); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := config.withDefaults()

	if err := base.MkdirAll(root, cfg.DirMode); err != nil {
		return nil, NewIOError("mkdir", root, err)
	}

	cipher, _, err := OpenCipher(base, root, cfg.KeyProvider, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return newRepository(base, root, cipher, cfg), nil
}

// New wraps an existing cipher without touching the bootstrap file. config
// may be nil and its KeyProvider is not used.
func New(base absfs.FileSystem, root string, cipher *Cipher, config *Config) (*Repository, error) {
	if base == nil {
		return nil, fmt.Errorf("base filesystem cannot be nil")
	}
	if cipher == nil {
		return nil, fmt.Errorf("cipher cannot be nil")
	}
	if err := ValidateRootPath(root); err != nil {
		return nil, err
	}

	var cfg Config
	if config != nil {
		cfg = *config
	}
	if err := cfg.validateModes(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newRepository(base, root, cipher, cfg.withDefaults()), nil
}

func newRepository(base absfs.FileSystem, root string, cipher *Cipher, cfg Config) *Repository {
	return &Repository{
		base:     base,
		root:     root,
		cipher:   cipher,
		encoder:  cfg.Encoder,
		log:      *cfg.Logger,
		fileMode: cfg.FileMode,
		dirMode:  cfg.DirMode,
	}
}

// Cipher returns the repository's cipher
func (r *Repository) Cipher() *Cipher {
	return r.cipher
}

// RootPath returns the physical root inside the base filesystem
func (r *Repository) RootPath() string {
	return r.root
}

// Root returns the empty location
func (r *Repository) Root() Location {
	return Location{owner: r}
}

// FilesystemPath resolves loc to its physical path by encrypting and encoding
// each name and joining the results onto the root path.
func (r *Repository) FilesystemPath(loc Location) (string, error) {
	if !loc.belongsTo(r) {
		return "", &ValidationError{
			Field:   "location",
			Value:   loc.String(),
			Message: "location was not created by this repository",
			Err:     ErrForeignLocation,
		}
	}

	segments := make([]string, len(loc.names))
	for i, n := range loc.names {
		segments[i] = r.encryptName(n)
	}
	return joinPhysical(r.base.Separator(), r.root, segments...), nil
}

func (r *Repository) encryptName(n Name) string {
	return r.encoder.Encode(r.cipher.EncryptString(n.value))
}

// decryptName turns a physical entry name back into a Name. Any failure means
// the entry was not written by this repository (or with this key).
func (r *Repository) decryptName(entry string) (Name, error) {
	raw, err := r.encoder.Decode(entry)
	if err != nil {
		return Name{}, err
	}
	text, err := r.cipher.DecryptString(raw)
	if err != nil {
		return Name{}, err
	}
	return r.ParseName(text)
}

// Write stores text at loc, creating missing parent folders and replacing
// any existing entry.
func (r *Repository) Write(loc Location, text string) error {
	return r.WriteContext(context.Background(), loc, text)
}

// WriteContext is Write with cancellation. A cancelled write can leave a
// truncated file behind that later fails to decrypt.
func (r *Repository) WriteContext(ctx context.Context, loc Location, text string) error {
	log := r.opLogger(ctx, "write", loc)

	path, err := r.FilesystemPath(loc)
	if err != nil {
		return err
	}
	if loc.IsRoot() {
		return notAFile("write", loc)
	}

	parent, _, _ := loc.Up()
	if err := r.CreateFolder(parent); err != nil {
		return err
	}

	file, err := r.base.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, r.fileMode)
	if err != nil {
		return NewIOError("open", loc.String(), err)
	}

	n, err := r.cipher.EncryptContext(ctx, file, strings.NewReader(text))
	cerr := file.Close()
	if err != nil {
		log.Error().Err(err).Int64("written", n).Msg("write failed")
		return fmt.Errorf("failed to write %s: %w", loc, err)
	}
	if cerr != nil {
		return NewIOError("close", loc.String(), cerr)
	}

	log.Debug().Int64("bytes", n).Msg("entry written")
	return nil
}

// Read returns the text stored at loc
func (r *Repository) Read(loc Location) (string, error) {
	return r.ReadContext(context.Background(), loc)
}

// ReadContext is Read with cancellation
func (r *Repository) ReadContext(ctx context.Context, loc Location) (string, error) {
	log := r.opLogger(ctx, "read", loc)

	path, err := r.FilesystemPath(loc)
	if err != nil {
		return "", err
	}

	info, err := r.base.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return "", notFound("read", loc)
		}
		return "", NewIOError("stat", loc.String(), err)
	}
	if info.IsDir() {
		return "", notAFile("read", loc)
	}

	file, err := r.base.Open(path)
	if err != nil {
		return "", NewIOError("open", loc.String(), err)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := r.cipher.DecryptContext(ctx, &buf, file); err != nil {
		var ee *EncryptionError
		if errors.As(err, &ee) {
			ee.Path = loc.String()
		}
		log.Error().Err(err).Msg("read failed")
		return "", err
	}

	text, err := decodeText(buf.Bytes())
	if err != nil {
		return "", err
	}

	log.Debug().Int("bytes", buf.Len()).Msg("entry read")
	return text, nil
}

// CreateFolder creates the folder at loc and any missing parents. The root
// already exists and is left alone.
func (r *Repository) CreateFolder(loc Location) error {
	path, err := r.FilesystemPath(loc)
	if err != nil {
		return err
	}
	if loc.IsRoot() {
		return nil
	}

	if err := r.base.MkdirAll(path, r.dirMode); err != nil {
		return NewIOError("mkdir", loc.String(), err)
	}

	r.log.Debug().Stringer("location", loc).Msg("folder created")
	return nil
}

// Delete removes the file at loc. Folders cannot be deleted.
func (r *Repository) Delete(loc Location) error {
	log := r.opLogger(context.Background(), "delete", loc)

	path, err := r.FilesystemPath(loc)
	if err != nil {
		return err
	}
	if loc.IsRoot() {
		return notAFile("delete", loc)
	}

	info, err := r.base.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return notFound("delete", loc)
		}
		return NewIOError("stat", loc.String(), err)
	}
	if info.IsDir() {
		return notAFile("delete", loc)
	}

	if err := r.base.Remove(path); err != nil {
		if isNotExist(err) {
			return notFound("delete", loc)
		}
		return NewIOError("remove", loc.String(), err)
	}

	log.Debug().Msg("entry deleted")
	return nil
}

// Move is not supported. Renaming a folder would mean re-encrypting every
// descendant path and no semantics have been settled for that.
func (r *Repository) Move(from, to Location) error {
	r.log.Warn().Stringer("from", from).Stringer("to", to).Msg("move is not supported")
	return &UnsupportedError{Operation: "move"}
}

// FileExists reports whether loc is an existing file
func (r *Repository) FileExists(loc Location) bool {
	info, ok := r.stat(loc)
	return ok && !info.IsDir()
}

// FolderExists reports whether loc is an existing folder
func (r *Repository) FolderExists(loc Location) bool {
	info, ok := r.stat(loc)
	return ok && info.IsDir()
}

func (r *Repository) stat(loc Location) (os.FileInfo, bool) {
	path, err := r.FilesystemPath(loc)
	if err != nil {
		return nil, false
	}
	info, err := r.base.Stat(path)
	if err != nil {
		return nil, false
	}
	return info, true
}

// opLogger returns the logger for one operation. A logger carried by ctx
// wins; otherwise the repository logger is tagged with a fresh trace id.
func (r *Repository) opLogger(ctx context.Context, op string, loc Location) zerolog.Logger {
	l := r.log
	if cl := zerolog.Ctx(ctx); cl.GetLevel() != zerolog.Disabled {
		l = *cl
	} else if r.log.GetLevel() != zerolog.Disabled {
		l = r.log.With().Str("trace_id", uuid.NewString()).Logger()
	}
	return l.With().Str("op", op).Stringer("location", loc).Logger()
}

func notFound(op string, loc Location) error {
	return &IOError{
		Operation: op,
		Path:      loc.String(),
		Message:   ErrNotFound.Error(),
		Err:       ErrNotFound,
	}
}

func notAFile(op string, loc Location) error {
	return &IOError{
		Operation: op,
		Path:      loc.String(),
		Message:   ErrNotAFile.Error(),
		Err:       ErrNotAFile,
	}
}

// isNotExist also treats ENOTDIR as absence: a location below a file does not
// exist, but the host filesystem reports it as "not a directory".
func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// joinPhysical joins segments onto root with the base filesystem separator
func joinPhysical(separator uint8, root string, segments ...string) string {
	sep := string([]byte{separator})
	p := strings.TrimRight(root, sep)
	for _, s := range segments {
		p += sep + s
	}
	if p == "" {
		return sep
	}
	return p
}
