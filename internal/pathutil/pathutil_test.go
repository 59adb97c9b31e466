package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelativeNested(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	f := filepath.Join(dir, "sub", "c.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	require.Equal(t, "sub/c.txt", Relative(f, dir))
}

func TestRelativeTopLevel(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	require.Equal(t, "a.txt", Relative(f, dir))
}

func TestRelativeOutsideBaseFallsBack(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	f := filepath.Join(other, "a.txt")

	require.Equal(t, f, Relative(f, dir))
}
