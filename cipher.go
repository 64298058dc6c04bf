package secretfs

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"unicode/utf8"
)

// streamChunkSize is the unit of work between cancellation checks.
// It must be a multiple of aes.BlockSize.
const streamChunkSize = 256 * aes.BlockSize

// Cipher encrypts and decrypts with AES-256-CBC and PKCS7 padding using the
// repository's fixed IV. No salt, nonce or header is written to the output, so
// the same plaintext always produces the same ciphertext. Repository relies
// on this to find an entry's physical path without an index. The price is
// that equal plaintexts are visible as equal ciphertexts and CBC output is
// malleable; do not change the mode without migrating every repository.
//
// A Cipher is immutable after construction and safe for concurrent use.
type Cipher struct {
	block cipher.Block
	init  InitialisationData
}

// NewCipher derives the key from provider and the salt in init. When init is
// nil a random salt and IV are generated; the caller must then persist
// InitialisationData(), otherwise later ciphers for the same repository will
// not be able to read anything this one writes.
func NewCipher(provider KeyProvider, init *InitialisationData) (*Cipher, error) {
	if provider == nil {
		return nil, ErrNilKeyProvider
	}

	var data InitialisationData
	if init != nil {
		data = *init
	} else {
		var err error
		if data, err = NewInitialisationData(); err != nil {
			return nil, err
		}
	}

	key, err := provider.DeriveKey(data.Salt[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	if err := ValidateKey(key, KeySize); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &Cipher{block: block, init: data}, nil
}

// NewPasswordCipher builds a cipher whose key is derived from password with
// PBKDF2-HMAC-SHA256 (600,000 iterations). initialisationData is the 24-byte
// salt ‖ iv or nil for a fresh random pair.
func NewPasswordCipher(password string, initialisationData []byte) (*Cipher, error) {
	init, err := optionalInitialisationData(initialisationData)
	if err != nil {
		return nil, err
	}
	return NewCipher(NewPasswordKeyProvider([]byte(password), PBKDF2Params{}), init)
}

// NewKeyCipher builds a cipher from a raw 32-byte key.
func NewKeyCipher(key []byte, initialisationData []byte) (*Cipher, error) {
	init, err := optionalInitialisationData(initialisationData)
	if err != nil {
		return nil, err
	}
	return NewCipher(NewStaticKeyProvider(key), init)
}

func optionalInitialisationData(b []byte) (*InitialisationData, error) {
	if b == nil {
		return nil, nil
	}
	d, err := ParseInitialisationData(b)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InitialisationData returns the salt and IV this cipher was built with
func (c *Cipher) InitialisationData() InitialisationData {
	return c.init
}

// Encrypt reads src to EOF and writes the ciphertext to dst. It returns the
// number of bytes written. Neither stream is closed or flushed.
func (c *Cipher) Encrypt(dst io.Writer, src io.Reader) (int64, error) {
	return c.EncryptContext(context.Background(), dst, src)
}

// Decrypt reads ciphertext from src to EOF and writes the plaintext to dst.
func (c *Cipher) Decrypt(dst io.Writer, src io.Reader) (int64, error) {
	return c.DecryptContext(context.Background(), dst, src)
}

// EncryptContext is Encrypt with cancellation. ctx is checked between chunks;
// when it fires, dst keeps whatever prefix was already written and that prefix
// cannot be decrypted.
func (c *Cipher) EncryptContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	mode := cipher.NewCBCEncrypter(c.block, c.init.IV[:])
	buf := make([]byte, streamChunkSize+aes.BlockSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("encryption cancelled: %w", err)
		}

		n, err := io.ReadFull(src, buf[:streamChunkSize])
		switch err {
		case nil:
			mode.CryptBlocks(buf[:n], buf[:n])
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, NewIOError("write", "", werr)
			}
		case io.EOF, io.ErrUnexpectedEOF:
			padded := pkcs7Pad(buf, n)
			mode.CryptBlocks(padded, padded)
			w, werr := dst.Write(padded)
			written += int64(w)
			if werr != nil {
				return written, NewIOError("write", "", werr)
			}
			return written, nil
		default:
			return written, NewIOError("read", "", err)
		}
	}
}

// DecryptContext is Decrypt with cancellation. Plaintext is written one chunk
// behind the input so the final block can be unpadded; on failure dst may
// already hold a prefix of the plaintext.
func (c *Cipher) DecryptContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	mode := cipher.NewCBCDecrypter(c.block, c.init.IV[:])
	buf := make([]byte, streamChunkSize)
	held := make([]byte, 0, streamChunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("decryption cancelled: %w", err)
		}

		n, err := io.ReadFull(src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return written, NewIOError("read", "", err)
		}

		if n > 0 {
			if n%aes.BlockSize != 0 {
				return written, decryptionError("ciphertext is not a multiple of the block size")
			}
			if len(held) > 0 {
				w, werr := dst.Write(held)
				written += int64(w)
				if werr != nil {
					return written, NewIOError("write", "", werr)
				}
			}
			mode.CryptBlocks(buf[:n], buf[:n])
			held = append(held[:0], buf[:n]...)
		}

		if err != nil {
			if len(held) == 0 {
				return written, decryptionError("ciphertext is empty")
			}
			plaintext, uerr := pkcs7Unpad(held)
			if uerr != nil {
				return written, uerr
			}
			w, werr := dst.Write(plaintext)
			written += int64(w)
			if werr != nil {
				return written, NewIOError("write", "", werr)
			}
			return written, nil
		}
	}
}

// EncryptBytes encrypts a complete buffer
func (c *Cipher) EncryptBytes(plaintext []byte) []byte {
	buf := make([]byte, len(plaintext), len(plaintext)+aes.BlockSize)
	copy(buf, plaintext)
	padded := pkcs7Pad(buf[:cap(buf)], len(plaintext))
	cipher.NewCBCEncrypter(c.block, c.init.IV[:]).CryptBlocks(padded, padded)
	return padded
}

// DecryptBytes decrypts a complete buffer
func (c *Cipher) DecryptBytes(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, decryptionError("ciphertext is empty")
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, decryptionError("ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, c.init.IV[:]).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

// EncryptString encrypts the UTF-8 bytes of s
func (c *Cipher) EncryptString(s string) []byte {
	return c.EncryptBytes([]byte(s))
}

// DecryptString decrypts ciphertext and requires the result to be UTF-8
func (c *Cipher) DecryptString(ciphertext []byte) (string, error) {
	plaintext, err := c.DecryptBytes(ciphertext)
	if err != nil {
		return "", err
	}
	return decodeText(plaintext)
}

func decodeText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", &EncryptionError{
			Operation: "decode",
			Message:   "plaintext is not valid UTF-8",
			Err:       ErrEncoding,
		}
	}
	return string(b), nil
}

// pkcs7Pad pads buf[:n] in place. buf must have room for one extra block.
func pkcs7Pad(buf []byte, n int) []byte {
	p := aes.BlockSize - n%aes.BlockSize
	padded := buf[:n+p]
	for i := n; i < len(padded); i++ {
		padded[i] = byte(p)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, decryptionError("invalid padded length")
	}
	p := int(b[len(b)-1])
	if p == 0 || p > aes.BlockSize {
		return nil, decryptionError("invalid padding")
	}
	if !bytes.Equal(b[len(b)-p:], bytes.Repeat([]byte{byte(p)}, p)) {
		return nil, decryptionError("invalid padding")
	}
	return b[:len(b)-p], nil
}

func decryptionError(msg string) error {
	return &EncryptionError{
		Operation: "decrypt",
		Message:   msg,
		Err:       ErrDecryption,
	}
}
