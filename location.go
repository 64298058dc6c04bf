package secretfs

import (
	"slices"
	"strings"
)

// LocationSeparator separates names in the text form of a Location
const LocationSeparator = "/"

// Location is an immutable ordered path of names inside one repository.
// The zero-length location is the repository root.
type Location struct {
	owner *Repository
	names []Name
}

// Repository returns the repository the location belongs to
func (l Location) Repository() *Repository {
	return l.owner
}

// Names returns a copy of the segments
func (l Location) Names() []Name {
	return slices.Clone(l.names)
}

// Len returns the number of segments
func (l Location) Len() int {
	return len(l.names)
}

// IsRoot reports whether l is the empty path
func (l Location) IsRoot() bool {
	return len(l.names) == 0
}

// Last returns the final segment, or false at the root
func (l Location) Last() (Name, bool) {
	if l.IsRoot() {
		return Name{}, false
	}
	return l.names[len(l.names)-1], true
}

// Down returns a new location with name appended
func (l Location) Down(name Name) Location {
	names := make([]Name, len(l.names), len(l.names)+1)
	copy(names, l.names)
	return Location{owner: l.owner, names: append(names, name)}
}

// Up splits l into its parent and last segment. ok is false at the root.
func (l Location) Up() (parent Location, last Name, ok bool) {
	if l.IsRoot() {
		return l, Name{}, false
	}
	n := len(l.names)
	return Location{owner: l.owner, names: l.names[:n-1:n-1]}, l.names[n-1], true
}

// Equal reports structural equality within the same repository
func (l Location) Equal(other Location) bool {
	if l.owner != other.owner || len(l.names) != len(other.names) {
		return false
	}
	for i := range l.names {
		if !l.names[i].Equal(other.names[i]) {
			return false
		}
	}
	return true
}

// Compare orders locations segment by segment
func (l Location) Compare(other Location) int {
	for i := 0; i < len(l.names) && i < len(other.names); i++ {
		if c := strings.Compare(l.names[i].value, other.names[i].value); c != 0 {
			return c
		}
	}
	return len(l.names) - len(other.names)
}

// String returns the '/'-separated plaintext path; the root is "/"
func (l Location) String() string {
	parts := make([]string, len(l.names))
	for i, n := range l.names {
		parts[i] = n.value
	}
	return LocationSeparator + strings.Join(parts, LocationSeparator)
}

// SortLocations sorts locations in place. Listings come back in filesystem
// order, which is not stable across platforms.
func SortLocations(locations []Location) {
	slices.SortFunc(locations, Location.Compare)
}

// belongsTo reports whether every part of l was produced by r
func (l Location) belongsTo(r *Repository) bool {
	if l.owner != r {
		return false
	}
	for _, n := range l.names {
		if n.owner != r {
			return false
		}
	}
	return true
}
