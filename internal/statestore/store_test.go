package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestLoadMissingReturnsEmptyState(t *testing.T) {
	store := newTestStore(t)

	state := store.Load("alice")

	require.NotNil(t, state)
	assert.Empty(t, state.Cookies)
	assert.Empty(t, state.Origins)
}

func TestPersistThenLoadRoundTrips(t *testing.T) {
	store := newTestStore(t)

	state := &models.SessionState{
		Cookies: []models.Cookie{
			{Name: "li_at", Value: "secret", Domain: ".linkedin.com", Path: "/", Secure: true},
		},
		Origins: []models.Origin{
			{
				Origin: "https://www.linkedin.com",
				LocalStorage: []models.LocalStorageEntry{
					{Name: "theme", Value: "dark"},
				},
			},
		},
	}

	require.NoError(t, store.Persist("alice", state))

	loaded := store.Load("alice")
	assert.Equal(t, state.Cookies, loaded.Cookies)
	assert.Equal(t, state.Origins, loaded.Origins)
}

func TestPersistIsAtomicOverwrite(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Persist("alice", &models.SessionState{
		Cookies: []models.Cookie{{Name: "old", Value: "1"}},
	}))
	require.NoError(t, store.Persist("alice", &models.SessionState{
		Cookies: []models.Cookie{{Name: "new", Value: "2"}},
	}))

	loaded := store.Load("alice")
	require.Len(t, loaded.Cookies, 1)
	assert.Equal(t, "new", loaded.Cookies[0].Name)

	// No temp files left behind.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice.json", entries[0].Name())
}

func TestLoadCorruptedFileReturnsEmptyState(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "alice.json"), []byte("{not json"), 0o644))

	state := store.Load("alice")

	assert.True(t, state.IsEmpty())
}

func TestPersistNilStateWritesEmptyDocument(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Persist("alice", nil))

	assert.True(t, store.Load("alice").IsEmpty())
}

func TestUsernameIsSanitized(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Persist("../evil", models.EmptySessionState()))

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "..")
}

func TestDeleteMissingIsNoError(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Delete("ghost"))
}
