package secretfs

import "strings"

// Name is a single plaintext path segment. A Name belongs to the repository
// that parsed or decrypted it: names from different repositories never
// compare equal, even with identical text, because each repository encrypts
// them differently. A name is at most MaxNameLength bytes.
type Name struct {
	owner *Repository
	value string
}

// String returns the plaintext segment
func (n Name) String() string {
	return n.value
}

// Repository returns the repository the name belongs to
func (n Name) Repository() *Repository {
	return n.owner
}

// Equal reports whether n and other have the same text and owner
func (n Name) Equal(other Name) bool {
	return n.owner == other.owner && n.value == other.value
}

// IsZero reports whether n is the zero Name
func (n Name) IsZero() bool {
	return n.value == ""
}

// IsDotted reports whether the name is hidden from default listings
func (n Name) IsDotted() bool {
	return isDotted(n.value)
}

func isDotted(text string) bool {
	return strings.HasPrefix(text, ".") || strings.HasPrefix(text, "_")
}

// ParseName validates text and returns it as a Name of r
func (r *Repository) ParseName(text string) (Name, error) {
	if err := ValidateName(text); err != nil {
		return Name{}, err
	}
	return Name{owner: r, value: text}, nil
}

// TryParseName is ParseName without the error detail
func (r *Repository) TryParseName(text string) (Name, bool) {
	n, err := r.ParseName(text)
	return n, err == nil
}

// ParseLocation parses a '/'-separated path. Leading and trailing separators
// are ignored and "" or "/" is the root; empty inner segments are rejected.
func (r *Repository) ParseLocation(text string) (Location, error) {
	trimmed := strings.Trim(text, LocationSeparator)
	if trimmed == "" {
		return r.Root(), nil
	}

	parts := strings.Split(trimmed, LocationSeparator)
	names := make([]Name, 0, len(parts))
	for _, part := range parts {
		n, err := r.ParseName(part)
		if err != nil {
			return Location{}, err
		}
		names = append(names, n)
	}

	return Location{owner: r, names: names}, nil
}

// TryParseLocation is ParseLocation without the error detail
func (r *Repository) TryParseLocation(text string) (Location, bool) {
	l, err := r.ParseLocation(text)
	return l, err == nil
}
