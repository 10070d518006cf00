package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("routine-1", "routines/cst_1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ref, path, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "routine-1", ref)
	assert.Equal(t, "routines/cst_1.pdf", path)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerRejectsTamperingAndExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("routine-1", "a.csv")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("other", time.Hour).Parse(token)
	assert.Error(t, err)
	_, _, _, err = signer.Parse("broken")
	assert.Error(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, _, err = signer.Parse(token)
	assert.ErrorIs(t, err, ErrLinkExpired)

	_, _, err = signer.Generate("has.dot", "a.csv")
	assert.Error(t, err)
}

func TestLocalStorageSaveReadCleanup(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	name, err := store.Save("routines/a.csv", []byte("day\n"))
	require.NoError(t, err)
	data, err := store.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "day\n", string(data))

	_, err = store.Save("../escape.csv", []byte("x"))
	assert.Error(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "routines/a.csv"), old, old))
	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("routines", "a.csv")}, deleted)
}

func TestLocalStorageSaveLeavesNoPartialFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("r1.pdf", []byte("first"))
	require.NoError(t, err)
	_, err = store.Save("r1.pdf", []byte("second"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r1.pdf", entries[0].Name())

	data, err := store.Read("r1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	_, err = store.Save("../escape.pdf", []byte("x"))
	assert.Error(t, err)
}
