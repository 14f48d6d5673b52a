package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"iterations":1}`)
	uri, err := store.PutObject(context.Background(), "cycles/a.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://cycles/a.json", uri)

	payload[0] = 'X'
	stored, ok := store.Object("cycles/a.json")
	require.True(t, ok)
	require.Equal(t, `{"iterations":1}`, string(stored))

	stored[0] = 'Y'
	again, _ := store.Object("cycles/a.json")
	require.Equal(t, byte('{'), again[0])
	require.Equal(t, []string{"cycles/a.json"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
}
