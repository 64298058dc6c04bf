package secretfs

import "encoding/base64"

// StringEncoder maps ciphertext to text that is safe to use as a file name
type StringEncoder interface {
	Encode(data []byte) string
	Decode(text string) ([]byte, error)
}

// Base64URLEncoder is standard padded base64 with '+' replaced by '-' and
// '/' replaced by '_'
type Base64URLEncoder struct{}

// Encode encodes data as URL-safe base64
func (Base64URLEncoder) Encode(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}

// Decode reverses Encode. Anything else fails with a *FormatError.
func (Base64URLEncoder) Decode(text string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return nil, &FormatError{Text: text, Err: err}
	}
	return data, nil
}
