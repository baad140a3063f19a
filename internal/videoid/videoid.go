// Package videoid validates and mints the identifiers that name stored videos.
//
// An identifier is the canonical lowercase 8-4-4-4-12 textual UUID. Anything
// else is rejected before it can reach a storage key or a filesystem path.
package videoid

import (
	"strings"

	"github.com/google/uuid"

	"vidmerge/internal/services"
)

// ID is a validated, canonical video identifier.
type ID string

func (id ID) String() string { return string(id) }

const canonicalLength = 36

// Validate reports whether s is a well-formed identifier. It never errors.
func Validate(s string) bool {
	_, ok := parse(s)
	return ok
}

// Parse validates s and returns its canonical lowercase form. Failures carry
// services.KindMalformedID and name the "id" position, never the input text.
func Parse(s string) (ID, error) {
	id, ok := parse(s)
	if !ok {
		return "", services.Reject(services.KindMalformedID, "malformed video id", "id")
	}
	return id, nil
}

// New mints a fresh random identifier.
func New() ID {
	return ID(uuid.New().String())
}

func parse(s string) (ID, bool) {
	// uuid.Parse also accepts braces, urn: prefixes and the 32-digit form.
	if len(s) != canonicalLength {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		switch i {
		case 8, 13, 18, 23:
			if s[i] != '-' {
				return "", false
			}
		default:
			if !isHex(s[i]) {
				return "", false
			}
		}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	if parsed == uuid.Nil {
		return "", false
	}
	if v := parsed.Version(); v < 1 || v > 8 {
		return "", false
	}
	if parsed.Variant() != uuid.RFC4122 {
		return "", false
	}
	return ID(strings.ToLower(parsed.String())), true
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
