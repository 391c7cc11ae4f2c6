package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiskDefaultFilename(t *testing.T) {
	assert.Equal(t, DefaultFilename, NewDisk("").Location())
}

func TestDiskLoadMissingFile(t *testing.T) {
	d := NewDisk(filepath.Join(t.TempDir(), "missing.json"))
	store := d.Load()
	assert.NotNil(t, store)
	assert.Empty(t, store)
}

func TestDiskLoadCorruptedFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "this is not json"},
		{name: "truncated", content: `{"k": "v"`},
		{name: "wrong shape", content: `["k", "v"]`},
		{name: "null", content: "null"},
		{name: "empty", content: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			store := NewDisk(path).Load()
			assert.NotNil(t, store)
			assert.Empty(t, store)
		})
	}
}

func TestDiskPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.json")
	d := NewDisk(path)

	store := Store{
		"https://www.lib.umich.edu/locations-and-hours": json.RawMessage(`"<html></html>"`),
		"https://api.yelp.com/v3/businesses/search?limit=10_location=x": json.RawMessage(`{"businesses":[{"name":"a","rating":4.5}],"total":1}`),
		"number": json.RawMessage(`42`),
		"null":   json.RawMessage(`null`),
	}
	require.NoError(t, d.Persist(store))

	loaded := d.Load()
	require.Len(t, loaded, len(store))
	for k, v := range store {
		assert.JSONEq(t, string(v), string(loaded[k]), "key %s", k)
	}
}

func TestDiskPersistReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	d := NewDisk(path)

	require.NoError(t, d.Persist(Store{"old": json.RawMessage(`"x"`)}))
	require.NoError(t, d.Persist(Store{"new": json.RawMessage(`"y"`)}))

	loaded := d.Load()
	assert.NotContains(t, loaded, "old")
	assert.Contains(t, loaded, "new")

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}
