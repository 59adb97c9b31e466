package snapshotter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

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

func TestCreateBasicSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	dir := t.TempDir()

	writeFile(t, dir, "a.txt", "Hello World")
	writeFile(t, dir, "b.txt", "Another file")
	writeFile(t, dir, "sub/c.txt", "Nested file")

	summary, err := Create(ctx, s, dir)
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.SnapshotID)
	require.Equal(t, 3, summary.FilesScanned)
	require.Equal(t, 0, summary.FilesDeduped)

	files, err := s.GetSnapshotFiles(ctx, summary.SnapshotID)
	require.NoError(t, err)
	require.Len(t, files, 3)
}

func TestCreateDedupsIdenticalContent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	dir := t.TempDir()

	writeFile(t, dir, "x.txt", "Same content")
	writeFile(t, dir, "y.txt", "Same content")
	writeFile(t, dir, "z.txt", "Different content")

	summary, err := Create(ctx, s, dir)
	require.NoError(t, err)
	require.Equal(t, 3, summary.FilesScanned)
	require.Equal(t, 1, summary.FilesDeduped)

	files, err := s.GetSnapshotFiles(ctx, summary.SnapshotID)
	require.NoError(t, err)
	require.Len(t, files, 3)
}

func TestCreateTwiceOverDeletion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	dir := t.TempDir()

	writeFile(t, dir, "f1.txt", "one")
	writeFile(t, dir, "f2.txt", "two")
	writeFile(t, dir, "f3.txt", "three")

	first, err := Create(ctx, s, dir)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.SnapshotID)

	require.NoError(t, os.Remove(filepath.Join(dir, "f2.txt")))

	second, err := Create(ctx, s, dir)
	require.NoError(t, err)
	require.Equal(t, int64(2), second.SnapshotID)

	firstFiles, err := s.GetSnapshotFiles(ctx, first.SnapshotID)
	require.NoError(t, err)
	require.Len(t, firstFiles, 3)

	secondFiles, err := s.GetSnapshotFiles(ctx, second.SnapshotID)
	require.NoError(t, err)
	require.Len(t, secondFiles, 2)
}

func TestCreateSkipsUnreadableFileButCommits(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	dir := t.TempDir()

	writeFile(t, dir, "ok.txt", "fine")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	if os.Getuid() == 0 {
		t.Skip("root can read files regardless of permission bits")
	}

	summary, err := Create(ctx, s, dir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.FilesScanned)
}
