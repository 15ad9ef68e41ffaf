// Package idgen generates task identifiers.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ShortLength is the length of identifiers produced by Short
const ShortLength = 10

// Supported identifier formats
const (
	FormatShort = "short"
	FormatULID  = "ulid"
)

// Generator produces a new identifier on each call
type Generator func() string

// Short returns a short random lowercase alphanumeric identifier.
func Short() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:ShortLength]
}

// ULID returns a lexicographically sortable identifier.
func ULID() string {
	return ulid.Make().String()
}

// ForFormat returns the generator for the named format.
func ForFormat(format string) (Generator, error) {
	switch format {
	case "", FormatShort:
		return Short, nil
	case FormatULID:
		return ULID, nil
	default:
		return nil, fmt.Errorf("unknown id format %q", format)
	}
}
