// Package sha3 provides the content identity of a fragment: a SHA3-256 hex
// digest and a short base64 fingerprint derived from the same digest.
package sha3

import (
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// FingerprintBytes is the digest prefix length used for fingerprints.
const FingerprintBytes = 12

// Identity holds both identifiers computed from a single digest.
type Identity struct {
	Hash        string
	Fingerprint string
}

// Hash returns the lowercase hex SHA3-256 digest of body.
func Hash(body string) string {
	sum := sha3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns unpadded base64 of the digest's first twelve bytes. It
// is a display id and is not safe as an equality key.
func Fingerprint(body string) string {
	sum := sha3.Sum256([]byte(body))
	return fingerprintOf(sum[:])
}

// Of computes hash and fingerprint from one digest pass.
func Of(body string) Identity {
	sum := sha3.Sum256([]byte(body))
	return Identity{
		Hash:        hex.EncodeToString(sum[:]),
		Fingerprint: fingerprintOf(sum[:]),
	}
}

func fingerprintOf(digest []byte) string {
	n := min(FingerprintBytes, len(digest))
	return base64.RawStdEncoding.EncodeToString(digest[:n])
}
