// Package id generates the opaque identifiers used for comics, revisions, and
// other records.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Extended hex keeps the byte order, so ids sort the way their UUIDs do.
var encoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 encoding of a time-ordered
// UUIDv7. Ids generated later compare greater.
func NewID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// Generator produces identifiers; domain constructors accept one so tests can
// supply deterministic ids.
type Generator func() (string, error)

// Default is the generator backed by NewID.
var Default Generator = NewID
