package key

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retain-rs-key")
	require.NoError(t, Generate(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(Size), info.Size())

	k, err := Load(path)
	require.NoError(t, err)
	defer k.Destroy()
	require.Len(t, k.Bytes(), Size)
}

func TestGenerateRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retain-rs-key")
	require.NoError(t, Generate(path))

	err := Generate(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "refusing to overwrite")
}

func TestLoadRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short-key")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must contain exactly")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestTwoGeneratedKeysDiffer(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "k1")
	p2 := filepath.Join(dir, "k2")
	require.NoError(t, Generate(p1))
	require.NoError(t, Generate(p2))

	k1, err := Load(p1)
	require.NoError(t, err)
	defer k1.Destroy()
	k2, err := Load(p2)
	require.NoError(t, err)
	defer k2.Destroy()

	require.NotEqual(t, k1.Bytes(), k2.Bytes())
}
