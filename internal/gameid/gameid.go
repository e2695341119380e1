// Package gameid mints sortable identifiers for sessions and connections.
//
// Identifiers are UUIDv7 values rendered as 26 characters of Crockford
// base32, optionally behind a TypeID-style prefix ("conn_01h...").
package gameid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Crockford base32 alphabet, lower case
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const encodedLen = 26

// ConnPrefix prefixes connection identifiers.
const ConnPrefix = "conn"

// RandSource is the subset of *rand.Rand (math/rand/v2) the generator needs.
type RandSource interface {
	IntN(n int) int
}

// Generator mints identifiers. The zero value uses crypto/rand and the
// wall clock.
type Generator struct {
	rand RandSource
	now  func() time.Time
}

// NewGenerator creates a generator. A nil source falls back to crypto/rand
// and a nil now to time.Now.
func NewGenerator(source RandSource, now func() time.Time) *Generator {
	return &Generator{rand: source, now: now}
}

var defaultGenerator = &Generator{}

// Code returns a fresh session code.
func Code() string {
	return defaultGenerator.Code()
}

// ConnID returns a fresh connection identifier.
func ConnID() string {
	return defaultGenerator.ConnID()
}

// Code returns a fresh session code.
func (g *Generator) Code() string {
	return encode(g.uuidv7())
}

// ConnID returns a fresh connection identifier.
func (g *Generator) ConnID() string {
	return ConnPrefix + "_" + encode(g.uuidv7())
}

func (g *Generator) uuidv7() [16]byte {
	var id [16]byte

	now := time.Now
	if g.now != nil {
		now = g.now
	}
	ms := uint64(now().UnixMilli())
	for i := 0; i < 6; i++ {
		id[i] = byte(ms >> (40 - 8*i))
	}

	if g.rand != nil {
		for i := 6; i < 16; i++ {
			id[i] = byte(g.rand.IntN(256))
		}
	} else if _, err := rand.Read(id[6:]); err != nil {
		panic("gameid: crypto/rand failed: " + err.Error())
	}

	id[6] = (id[6] & 0x0f) | 0x70 // version 7
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// encode renders the 128-bit value as 26 base32 digits, most significant
// first. The leading digit carries only three bits and is always 0-7.
func encode(id [16]byte) string {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
		lo = lo<<8 | uint64(id[i+8])
	}

	out := make([]byte, encodedLen)
	for i := encodedLen - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out)
}

// Validate checks that id is a bare 26-character identifier.
func Validate(id string) error {
	if len(id) != encodedLen {
		return fmt.Errorf("id must be exactly %d characters, got %d", encodedLen, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("id first character must be 0-7, got %c", id[0])
	}
	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}

// ValidateConnID checks a prefixed connection identifier.
func ValidateConnID(id string) error {
	suffix, ok := strings.CutPrefix(id, ConnPrefix+"_")
	if !ok {
		return fmt.Errorf("connection id must start with %q", ConnPrefix+"_")
	}
	return Validate(suffix)
}
