package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArchivePath(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	got, err := ArchivePath("/cycles/", "0190c0de-0000-7000-8000-000000000001", at)
	require.NoError(t, err)
	require.Equal(t, "cycles/2026/03/10/0190c0de-0000-7000-8000-000000000001.json", got)

	got, err = ArchivePath("", "abc", at)
	require.NoError(t, err)
	require.Equal(t, "2026/03/10/abc.json", got)
}

func TestArchivePathRejectsBadIDs(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "  ", "../etc", "a/b", `a\b`} {
		_, err := ArchivePath("cycles", id, time.Now())
		require.Error(t, err, "id %q", id)
	}
}
