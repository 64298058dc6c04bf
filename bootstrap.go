package secretfs

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/absfs/absfs"
	"github.com/rs/zerolog"
)

// BootstrapFileName is the metadata file kept in every repository root
const BootstrapFileName = "pwd.json"

// bootstrapFile is the on-disk shape:
//
//	{"Cipher":{"InitialisationData":"<base64 of salt ‖ iv>"}}
type bootstrapFile struct {
	Cipher bootstrapCipher `json:"Cipher"`
}

type bootstrapCipher struct {
	InitialisationData string `json:"InitialisationData"`
}

// BootstrapPath returns the physical path of the bootstrap file under root
func BootstrapPath(fs absfs.FileSystem, root string) string {
	return joinPhysical(fs.Separator(), root, BootstrapFileName)
}

// LoadInitialisationData reads the bootstrap file under root. found is false
// when the file does not exist. A file that exists but cannot be used yields
// an error wrapping ErrConfigCorrupt.
func LoadInitialisationData(fs absfs.FileSystem, root string) (data InitialisationData, found bool, err error) {
	path := BootstrapPath(fs, root)

	file, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return data, false, nil
		}
		return data, false, NewIOError("open", path, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return data, true, NewCorruptionError(path, "failed to read bootstrap file", err)
	}

	var doc bootstrapFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return data, true, NewCorruptionError(path, "failed to decode bootstrap file", err)
	}
	if doc.Cipher.InitialisationData == "" {
		return data, true, NewCorruptionError(path, "Cipher.InitialisationData is missing", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(doc.Cipher.InitialisationData)
	if err != nil {
		return data, true, NewCorruptionError(path, "Cipher.InitialisationData is not base64", err)
	}

	data, err = ParseInitialisationData(decoded)
	if err != nil {
		return data, true, NewCorruptionError(path, "Cipher.InitialisationData has the wrong size", err)
	}

	return data, true, nil
}

// SaveInitialisationData writes the bootstrap file under root, replacing any
// existing one.
func SaveInitialisationData(fs absfs.FileSystem, root string, data InitialisationData, perm os.FileMode) error {
	path := BootstrapPath(fs, root)

	doc := bootstrapFile{
		Cipher: bootstrapCipher{
			InitialisationData: base64.StdEncoding.EncodeToString(data.Bytes()),
		},
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bootstrap file: %w", err)
	}

	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return NewIOError("create", path, err)
	}

	if _, err := file.Write(append(raw, '\n')); err != nil {
		file.Close()
		return NewIOError("write", path, err)
	}

	if err := file.Close(); err != nil {
		return NewIOError("close", path, err)
	}

	return nil
}

// OpenCipher loads the repository's initialisation data and builds its
// cipher. If there is no bootstrap file a new random one is generated and
// saved, which starts a new empty repository. A corrupt bootstrap file is an
// error: generating new data would orphan every existing entry.
func OpenCipher(fs absfs.FileSystem, root string, provider KeyProvider, log *zerolog.Logger) (c *Cipher, created bool, err error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	data, found, err := LoadInitialisationData(fs, root)
	if err != nil {
		log.Error().Err(err).Str("root", root).Msg("bootstrap file unusable")
		return nil, false, err
	}

	if found {
		c, err = NewCipher(provider, &data)
		if err != nil {
			return nil, false, err
		}
		log.Debug().Str("root", root).Msg("loaded repository initialisation data")
		return c, false, nil
	}

	c, err = NewCipher(provider, nil)
	if err != nil {
		return nil, false, err
	}

	if err := SaveInitialisationData(fs, root, c.InitialisationData(), DefaultFileMode); err != nil {
		return nil, false, fmt.Errorf("failed to save bootstrap file: %w", err)
	}

	log.Info().Str("root", root).Msg("created new repository")
	return c, true, nil
}
