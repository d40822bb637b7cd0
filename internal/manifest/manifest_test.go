package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsIdempotentAndSorted(t *testing.T) {
	m := New(true)

	_, name1, err := m.GetOrCreate("/a/two.txt", 100)
	require.NoError(t, err)
	_, _, err = m.GetOrCreate("/a/one.txt", 200)
	require.NoError(t, err)

	ts, name1Again, err := m.GetOrCreate("/a/two.txt", 999)
	require.NoError(t, err)
	require.Equal(t, int64(100), ts, "existing entry keeps its stored timestamp")
	require.Equal(t, name1, name1Again, "existing entry keeps its remote name")

	entries := m.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "/a/one.txt", entries[0].Path)
	require.Equal(t, "/a/two.txt", entries[1].Path)
}

func TestGetOrCreateUnmaskedUsesPathDerivedName(t *testing.T) {
	m := New(false)
	_, name, err := m.GetOrCreate("/srv/data/file.txt", 1)
	require.NoError(t, err)
	require.Equal(t, "srv/data/file.txt", name)
}

func TestGetOrCreateMaskedUsesRandomName(t *testing.T) {
	m := New(true)
	_, name, err := m.GetOrCreate("/srv/data/file.txt", 1)
	require.NoError(t, err)
	require.Len(t, name, MaskSize)
	require.NotContains(t, name, "/")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := New(true)
	_, _, err := m.GetOrCreate("/a.txt", 111)
	require.NoError(t, err)
	_, _, err = m.GetOrCreate("/b.txt", 222)
	require.NoError(t, err)
	m.SetRemoteID("file-id-1")

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, m.Save(path))

	reloaded, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "file-id-1", reloaded.RemoteID())
	require.Equal(t, m.Entries(), reloaded.Entries())
}

func TestRemoveByPathAndByRemoteName(t *testing.T) {
	m := New(false)
	_, nameA, err := m.GetOrCreate("/a.txt", 1)
	require.NoError(t, err)
	_, _, err = m.GetOrCreate("/b.txt", 2)
	require.NoError(t, err)

	require.True(t, m.RemoveByPath("/a.txt"))
	require.False(t, m.RemoveByPath("/a.txt"))
	require.Equal(t, 1, m.Len())

	require.False(t, m.RemoveByRemoteName(nameA))

	_, nameB, err := m.GetOrCreate("/c.txt", 3)
	require.NoError(t, err)
	require.True(t, m.RemoveByRemoteName(nameB))
	require.Equal(t, 1, m.Len())
}

func TestLookupByRemoteName(t *testing.T) {
	m := New(false)
	_, name, err := m.GetOrCreate("/a.txt", 42)
	require.NoError(t, err)

	entry, ok := m.LookupByRemoteName(name)
	require.True(t, ok)
	require.Equal(t, "/a.txt", entry.Path)

	_, ok = m.LookupByRemoteName("does-not-exist")
	require.False(t, ok)
}

func TestRemoteNamesSorted(t *testing.T) {
	m := New(false)
	_, _, err := m.GetOrCreate("/z.txt", 1)
	require.NoError(t, err)
	_, _, err = m.GetOrCreate("/a.txt", 1)
	require.NoError(t, err)

	names := m.RemoteNames()
	require.Len(t, names, 2)
	require.True(t, names[0] < names[1])
}

func TestUpdateTimestampOnlyAffectsExisting(t *testing.T) {
	m := New(false)
	_, _, err := m.GetOrCreate("/a.txt", 1)
	require.NoError(t, err)

	m.UpdateTimestamp("/a.txt", 500)
	ts, _, ok := m.Lookup("/a.txt")
	require.True(t, ok)
	require.Equal(t, int64(500), ts)

	m.UpdateTimestamp("/missing.txt", 999)
	_, _, ok = m.Lookup("/missing.txt")
	require.False(t, ok)
}
