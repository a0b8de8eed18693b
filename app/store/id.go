package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// segment sentinels. url.QueryEscape always escapes '&' and never escapes '.',
// so none of these tokens can be produced by encoding a real string.
const (
	folderNull   = "&null"
	folderEmpty  = "&empty"
	folderDot    = "%2E"
	folderDotDot = "%2E%2E"
)

// Segment is a single element of a job identifier, either a string value or
// absent. The zero value is an absent segment.
type Segment struct {
	value   string
	present bool
}

// Seg makes a present segment with the given value.
func Seg(v string) Segment { return Segment{value: v, present: true} }

// Null makes an absent segment.
func Null() Segment { return Segment{} }

// Present reports whether the segment holds a value.
func (s Segment) Present() bool { return s.present }

// Value returns the segment value, empty for an absent segment.
func (s Segment) Value() string { return s.value }

// encode converts the segment to a filesystem-safe path element. Empty and
// dot segments get dedicated tokens, everything else is query-escaped.
func (s Segment) encode() string {
	switch {
	case !s.present:
		return folderNull
	case s.value == "":
		return folderEmpty
	case s.value == ".":
		return folderDot
	case s.value == "..":
		return folderDotDot
	default:
		return url.QueryEscape(s.value)
	}
}

// MarshalJSON encodes a present segment as a string and an absent one as null.
func (s Segment) MarshalJSON() ([]byte, error) {
	if !s.present {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON accepts a string or null.
func (s *Segment) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Segment{}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Segment{value: v, present: true}
	return nil
}

// ID is an ordered job identifier. Order is significant, segments may be
// absent, and hierarchy implies containment: removing ["a"] removes the
// status of ["a","b"] as well.
type ID []Segment

// NewID makes an identifier of present segments.
func NewID(segs ...string) ID {
	id := make(ID, 0, len(segs))
	for _, s := range segs {
		id = append(id, Seg(s))
	}
	return id
}

// Key returns the canonical encoded form of the identifier, one encoded
// segment per path element joined with "/". The per-segment encoding is
// injective and never emits "/", so Key equality is identifier equality.
// An empty identifier maps to "".
func (id ID) Key() string {
	parts := make([]string, 0, len(id))
	for _, s := range id {
		parts = append(parts, s.encode())
	}
	return strings.Join(parts, "/")
}

// Equal reports element-by-element equality, including absence.
func (id ID) Equal(other ID) bool {
	if len(id) != len(other) {
		return false
	}
	for i := range id {
		if id[i] != other[i] {
			return false
		}
	}
	return true
}

func (id ID) String() string { return id.Key() }

// DecodeID parses the encoded form produced by Key back into an identifier.
func DecodeID(key string) (ID, error) {
	if key == "" {
		return ID{}, nil
	}
	parts := strings.Split(key, "/")
	id := make(ID, 0, len(parts))
	for _, p := range parts {
		switch p {
		case folderNull:
			id = append(id, Null())
		case folderEmpty:
			id = append(id, Seg(""))
		default:
			v, err := url.QueryUnescape(p)
			if err != nil {
				return nil, fmt.Errorf("invalid id element %q: %w", p, err)
			}
			id = append(id, Seg(v))
		}
	}
	return id, nil
}
