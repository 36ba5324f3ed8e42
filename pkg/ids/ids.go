// Package ids defines the opaque 128-bit identifiers used throughout the
// gateway. Identifiers only ever compare by value; callers must not assume
// anything about their internal structure.
package ids

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier with a canonical text form.
type ID struct {
	value uuid.UUID
}

// Nil is the zero-value ID, equal to the canonical all-zero UUID.
var Nil = ID{}

// New generates a fresh random ID.
func New() ID {
	return ID{value: uuid.New()}
}

// Parse parses the canonical text form of an ID.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("ids: parse %q: %w", s, err)
	}
	return ID{value: v}, nil
}

// MustParse is like Parse but panics on error; reserved for constants and tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsNil reports whether this is the zero ID.
func (id ID) IsNil() bool { return id.value == uuid.Nil }

// String returns the canonical text form.
func (id ID) String() string { return id.value.String() }

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) { return json.Marshal(id.value.String()) }

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("ids: unmarshal %q: %w", s, err)
	}
	id.value = v
	return nil
}

// Value implements driver.Valuer so an ID can be stored by a future SQL backend.
func (id ID) Value() (driver.Value, error) { return id.value.String(), nil }
