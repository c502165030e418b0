// Package nonceid generates single-use session identifiers.
//
// A nonce is a 128-bit cryptographically random value rendered as a
// 36-character lowercase hyphenated hex string. That is exactly the shape of
// a v4 UUID, so New delegates to github.com/google/uuid rather than
// hand-rolling the formatting.
package nonceid

import (
	"regexp"

	"github.com/google/uuid"
)

// New returns a fresh, globally-unique nonce with negligible collision
// probability.
func New() string {
	return uuid.NewString()
}

// validFormat matches the broker's external nonce contract: lowercase hex
// digits and hyphens, 1 to 100 characters. It is deliberately looser than
// the UUID shape New produces, since callers may accept nonces minted by
// other broker instances or future format revisions.
var validFormat = regexp.MustCompile(`^[0-9a-f-]{1,100}$`)

// Valid reports whether s is a syntactically well-formed nonce.
func Valid(s string) bool {
	return validFormat.MatchString(s)
}
