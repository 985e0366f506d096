package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip exercises the KVStore contract shared by every backend.
func roundTrip(t *testing.T, kv KVStore) {
	t.Helper()

	blob, err := kv.Get("absent")
	require.NoError(t, err)
	assert.Nil(t, blob, "absent namespace must be (nil, nil), not an error")

	require.NoError(t, kv.Set("ns.one", []byte(`{"a":1}`)))
	require.NoError(t, kv.Set("ns.two", []byte(`{"b":2}`)))

	blob, err = kv.Get("ns.one")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), blob)

	// Overwrite replaces, never appends.
	require.NoError(t, kv.Set("ns.one", []byte(`{"a":9}`)))
	blob, err = kv.Get("ns.one")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":9}`), blob)

	require.NoError(t, kv.Remove("ns.one"))
	blob, err = kv.Get("ns.one")
	require.NoError(t, err)
	assert.Nil(t, blob)

	// Removing an absent namespace is not an error.
	require.NoError(t, kv.Remove("ns.never"))

	blob, err = kv.Get("ns.two")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"b":2}`), blob)
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestMemoryStore_CopiesBlobs(t *testing.T) {
	kv := NewMemoryStore()

	src := []byte("original")
	require.NoError(t, kv.Set("ns", src))
	src[0] = 'X'

	blob, err := kv.Get("ns")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), blob, "caller mutation must not leak into the store")

	blob[0] = 'Y'
	again, err := kv.Get("ns")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again, "returned blob must be a copy")
}

func TestFileStore(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	roundTrip(t, fs)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	fs1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs1.Set("ns.persist", []byte("durable")))

	fs2, err := NewFileStore(dir)
	require.NoError(t, err)
	blob, err := fs2.Get("ns.persist")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), blob)
}

func TestSQLiteStore(t *testing.T) {
	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer db.Close()

	roundTrip(t, db)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	db1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, db1.Set("ns.persist", []byte("durable")))
	require.NoError(t, db1.Close())

	db2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer db2.Close()

	blob, err := db2.Get("ns.persist")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), blob)
}
