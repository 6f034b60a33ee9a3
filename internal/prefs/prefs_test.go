package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapStore_GetSetDelete(t *testing.T) {
	m := NewMapStore()

	_, ok, err := m.Get(KeyLocationHome)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(KeyLocationHome, "123 Main St"))
	v, ok, err := m.Get(KeyLocationHome)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "123 Main St", v)

	require.NoError(t, m.Delete(KeyLocationHome))
	_, ok, err = m.Get(KeyLocationHome)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInitialized(t *testing.T) {
	m := NewMapStore()

	initialized, err := IsInitialized(m)
	require.NoError(t, err)
	assert.False(t, initialized)

	require.NoError(t, MarkInitialized(m))

	initialized, err = IsInitialized(m)
	require.NoError(t, err)
	assert.True(t, initialized)
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(KeyPreferredTemp, "fahrenheit"))
	v, ok, err := store.Get(KeyPreferredTemp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fahrenheit", v)

	require.NoError(t, store.Set(KeyPreferredTemp, "celsius"))
	v, ok, err = store.Get(KeyPreferredTemp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "celsius", v)

	require.NoError(t, store.Delete(KeyPreferredTemp))
	_, ok, err = store.Get(KeyPreferredTemp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyInitialized, "true"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	initialized, err := IsInitialized(reopened)
	require.NoError(t, err)
	assert.True(t, initialized)
}
