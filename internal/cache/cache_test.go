package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenWithEmptyDirDisablesCache(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = c.Lookup("anything")
	require.ErrorIs(t, err, ErrMiss)
	require.NoError(t, c.Store("anything", []byte("ignored")))
	require.NoError(t, c.Close())
}

func TestStoreThenLookupRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()

	digest := Digest([]byte{1, 2, 3}, 5)
	_, err = c.Lookup(digest)
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Store(digest, []byte(`{"ok":true}`)))

	result, err := c.Lookup(digest)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(result))
}

func TestStoreOverwritesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	digest := Digest([]byte("image"), 5)
	require.NoError(t, c.Store(digest, []byte(`1`)))
	require.NoError(t, c.Store(digest, []byte(`2`)))

	result, err := c.Lookup(digest)
	require.NoError(t, err)
	require.Equal(t, "2", string(result))
}

func TestDigestDependsOnThreshold(t *testing.T) {
	bytecodes := []byte{9, 9, 9}
	require.NotEqual(t, Digest(bytecodes, 5), Digest(bytecodes, 6))
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	digest := Digest([]byte("x"), 5)

	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.Store(digest, []byte(`"v1"`)))
	require.NoError(t, first.Close())

	second, err := Open(filepath.Clean(dir))
	require.NoError(t, err)
	defer second.Close()

	result, err := second.Lookup(digest)
	require.NoError(t, err)
	require.Equal(t, `"v1"`, string(result))
}
