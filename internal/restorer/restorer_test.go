package restorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arumry/backuptool/internal/snapshotter"
	"github.com/arumry/backuptool/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "backups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestRestoreBitExactRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	src := t.TempDir()

	writeFile(t, src, "a.txt", "Hello World")
	writeFile(t, src, "b.txt", "Another file")
	writeFile(t, src, "sub/c.txt", "Nested file")

	summary0, err := snapshotter.Create(ctx, s, src)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "out")
	summary, err := Restore(ctx, s, summary0.SnapshotID, dst)
	require.NoError(t, err)
	require.Equal(t, 3, summary.FilesRestored)

	for rel, want := range map[string]string{
		"a.txt":     "Hello World",
		"b.txt":     "Another file",
		"sub/c.txt": "Nested file",
	} {
		got, err := os.ReadFile(filepath.Join(dst, rel))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestRestoreBinaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	src := t.TempDir()

	data := make([]byte, 0, 256+8)
	for i := 0; i < 256; i++ {
		data = append(data, byte(i))
	}
	for i := 0; i < 4; i++ {
		data = append(data, 0x00)
	}
	for i := 0; i < 4; i++ {
		data = append(data, 0xFF)
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "all_bytes.bin"), data, 0o644))

	summary0, err := snapshotter.Create(ctx, s, src)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "out")
	_, err = Restore(ctx, s, summary0.SnapshotID, dst)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dst, "all_bytes.bin"))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestRestoreNonexistentSnapshotFails(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := Restore(ctx, s, 999, t.TempDir())
	require.Error(t, err)
	require.True(t, errors.Is(err, store.ErrNotFound))
}
