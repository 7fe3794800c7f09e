package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanzlab/authcore/internal/domain"
)

func testCreds() *Credentials {
	return &Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         &domain.User{ID: "u-1", Email: "fan@x.com"},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds, "empty store must load as nil")

	require.NoError(t, store.Save(testCreds()))

	creds, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
	assert.Equal(t, "u-1", creds.User.ID)
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(testCreds()))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestFileStore_RefusesPartialCredentials(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	assert.Error(t, store.Save(nil))
	assert.Error(t, store.Save(&Credentials{AccessToken: "a"}))
	assert.Error(t, store.Save(&Credentials{User: &domain.User{ID: "u-1"}}))
}

func TestFileStore_CorruptFileLoadsAsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewFileStore(path)
	_, err := store.Load()
	assert.Error(t, err)
}

func TestFileStore_PermissionsAreOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(testCreds()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)

	require.NoError(t, store.Save(testCreds()))

	creds, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "access-1", creds.AccessToken)

	require.NoError(t, store.Clear())
	creds, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}
