// Package idgen generates the random identifiers behind conn.NewPipe's
// NewID, which the porter uses for IQ ids. DIGEST-MD5 cnonces in package
// sasl are generated separately from crypto/rand.
package idgen

import "github.com/google/uuid"

// New returns a fresh identifier, unique with overwhelming probability,
// satisfying spec's "8+ character, implementation-chosen charset" IQ id
// requirement. A UUIDv4's hex text is used verbatim rather than trimmed,
// the same identifier shape Aglay-fuchsia's request/session id generators
// produce from this package.
func New() string {
	return uuid.New().String()
}
