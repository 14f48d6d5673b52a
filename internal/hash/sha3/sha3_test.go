package sha3

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// TestHashKnownVectors pins the digest against published SHA3-256 vectors.
func TestHashKnownVectors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body        string
		hash        string
		fingerprint string
	}{
		{"", "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", "p//G+L8e12ZRwUdW"},
		{"hello world", "644bcc7e564373040999aac89e7622f3ca71fba1d972fd94a31c3bfbf24e3938", "ZEvMflZDcwQJmarI"},
		{"def f():\n    return 1\n", "554c70065a66824f65e036709800854b75f5bf94b69932fdde85d53a3238b555", "VUxwBlpmgk9l4DZw"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.hash, Hash(tc.body))
		require.Equal(t, tc.fingerprint, Fingerprint(tc.body))
		require.Equal(t, Identity{Hash: tc.hash, Fingerprint: tc.fingerprint}, Of(tc.body))
	}
}

// TestHashDeterministic ensures repeated hashing yields the same digest.
func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	got := Hash("hello world")
	require.Equal(t, got, Hash("hello world"))
	require.Regexp(t, hexDigest, got)
}

// TestHashSingleByteChange checks content addressing.
func TestHashSingleByteChange(t *testing.T) {
	t.Parallel()

	base := "fn main() {}\n"
	for i := range len(base) {
		mutated := []byte(base)
		mutated[i] ^= 0x01
		require.NotEqual(t, Hash(base), Hash(string(mutated)), "byte %d", i)
	}
}

func TestFingerprintIsUnpadded(t *testing.T) {
	t.Parallel()

	fp := Fingerprint("anything")
	require.Len(t, fp, 16)
	require.NotContains(t, fp, "=")
}
