// Package store implements the content-addressed database at the heart of
// backuptool: the schema linking snapshots to files to content blobs, and
// the operations that keep a snapshot creation or a prune atomic.
//
// The backing engine is SQLite through database/sql and the mattn/go-sqlite3
// driver, registered blank-import style ("_ " importing the package to
// register the "sqlite3" driver name). One *sql.DB per process, one
// *sql.Tx per command.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arumry/backuptool/internal/backuplog"
)

// Sentinel errors distinguishing missing data from corrupted data. Wrap
// these with fmt.Errorf("...: %w", ErrNotFound) at call sites that need
// more context; callers identify the kind with errors.Is.
var (
	// ErrNotFound is returned when a referenced snapshot ID or blob digest
	// does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrIntegrity is returned when an invariant violation is discovered at
	// runtime, e.g. a file record referencing a missing blob.
	ErrIntegrity = errors.New("store: integrity violation")
)

// OpenError wraps a failure to open or initialize the database file.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("store: cannot open database %q: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	target_directory TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS content_blocks (
	hash TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	content BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	content_hash TEXT NOT NULL REFERENCES content_blocks(hash),
	size INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_files (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
	file_id INTEGER NOT NULL REFERENCES files(id),
	PRIMARY KEY(snapshot_id, file_id)
);
`

// FileEntry is one (relative path, digest) pair belonging to a snapshot.
type FileEntry struct {
	RelPath string
	Digest  string
}

// SnapshotReport is one row of the list output: the raw fields Lister needs
// to render the fixed-width summary table.
type SnapshotReport struct {
	ID         int64
	Timestamp  time.Time
	TotalSize  int64
	UniqueSize int64
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting every operation
// below run standalone or inside the caller's transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is a handle to the backing database. The zero value is not usable;
// construct one with Open.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
// It fails with *OpenError if the file cannot be opened or initialized.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	// Only one writer touches a database file at a time; capping the pool to
	// a single connection makes that explicit instead of relying on
	// SQLite's own file lock to serialize a larger pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx runs fn against a fresh transaction, committing on success and rolling
// back on any error fn returns, so a snapshot creation or a prune commits
// as a single atomic unit.
func (s *Store) Tx(ctx context.Context, fn func(*Ops) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(&Ops{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			backuplog.Error("rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// ops returns a non-transactional view over the store's *sql.DB, for
// single-operation callers (Restorer, Lister) that don't need their own
// transaction wrapping multiple calls.
func (s *Store) ops() *Ops { return &Ops{q: s.db} }

// Ops is the set of operations on snapshots, files, and blobs, bound to
// either the store's *sql.DB or a single *sql.Tx. Obtain one via Store.Tx
// for a multi-call atomic command, or treat the Store itself as an Ops for
// single calls (CreateSnapshot, GetBlob, ...).
type Ops struct {
	q queryer
}

// CreateSnapshot appends a snapshot row stamped with the current UTC time
// and returns its newly assigned ID.
func (o *Ops) CreateSnapshot(ctx context.Context, targetDir string) (int64, error) {
	ts := time.Now().UTC().Format(time.RFC3339)
	res, err := o.q.ExecContext(ctx,
		`INSERT INTO snapshots(timestamp, target_directory) VALUES (?, ?)`, ts, targetDir)
	if err != nil {
		return 0, fmt.Errorf("store: create snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create snapshot: %w", err)
	}
	return id, nil
}

// StoreBlob inserts (digest, len(data), data) if no row with this digest
// exists yet. It returns existed=true when the row was already present,
// which callers use as the deduplication signal.
func (o *Ops) StoreBlob(ctx context.Context, digestHex string, data []byte) (existed bool, err error) {
	var dummy int
	err = o.q.QueryRowContext(ctx, `SELECT 1 FROM content_blocks WHERE hash = ?`, digestHex).Scan(&dummy)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return false, fmt.Errorf("store: store blob: %w", err)
	}
	_, err = o.q.ExecContext(ctx,
		`INSERT INTO content_blocks(hash, size, content) VALUES (?, ?, ?)`,
		digestHex, len(data), data)
	if err != nil {
		return false, fmt.Errorf("store: store blob: %w", err)
	}
	return false, nil
}

// AddFileToSnapshot finds or creates a file record for (relPath, digestHex)
// and links it to snapshotID. Both the find-or-create and the link insert
// are idempotent. It does not verify the blob exists; the caller (the
// snapshotter) is responsible for having stored it first.
func (o *Ops) AddFileToSnapshot(ctx context.Context, snapshotID int64, relPath, digestHex string, size int64) error {
	var fileID int64
	err := o.q.QueryRowContext(ctx,
		`SELECT id FROM files WHERE path = ? AND content_hash = ?`, relPath, digestHex).Scan(&fileID)
	switch {
	case err == nil:
		// existing file record, reuse it
	case errors.Is(err, sql.ErrNoRows):
		res, insErr := o.q.ExecContext(ctx,
			`INSERT INTO files(path, content_hash, size) VALUES (?, ?, ?)`, relPath, digestHex, size)
		if insErr != nil {
			return fmt.Errorf("store: add file to snapshot: %w", insErr)
		}
		fileID, insErr = res.LastInsertId()
		if insErr != nil {
			return fmt.Errorf("store: add file to snapshot: %w", insErr)
		}
	default:
		return fmt.Errorf("store: add file to snapshot: %w", err)
	}

	_, err = o.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO snapshot_files(snapshot_id, file_id) VALUES (?, ?)`, snapshotID, fileID)
	if err != nil {
		return fmt.Errorf("store: add file to snapshot: %w", err)
	}
	return nil
}

// GetSnapshotFiles returns the (rel_path, digest) pairs linked to
// snapshotID, ordered by file record insertion — stable within one
// transaction.
func (o *Ops) GetSnapshotFiles(ctx context.Context, snapshotID int64) ([]FileEntry, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT f.path, f.content_hash
		FROM snapshot_files sf
		JOIN files f ON f.id = sf.file_id
		WHERE sf.snapshot_id = ?
		ORDER BY f.id`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("store: get snapshot files: %w", err)
	}
	defer rows.Close()

	var out []FileEntry
	for rows.Next() {
		var fe FileEntry
		if err := rows.Scan(&fe.RelPath, &fe.Digest); err != nil {
			return nil, fmt.Errorf("store: get snapshot files: %w", err)
		}
		out = append(out, fe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get snapshot files: %w", err)
	}
	return out, nil
}

// GetBlob returns the bytes stored under digestHex, or ErrNotFound if no
// such blob exists.
func (o *Ops) GetBlob(ctx context.Context, digestHex string) ([]byte, error) {
	var content []byte
	err := o.q.QueryRowContext(ctx, `SELECT content FROM content_blocks WHERE hash = ?`, digestHex).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get blob %s: %w", digestHex, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get blob: %w", err)
	}
	return content, nil
}

// DeleteSnapshot removes the snapshot row and all its snapshot_files links.
// It does not delete file records or blobs on its own — that's
// CleanupOrphans' job, so the two compose into pruner.Prune.
func (o *Ops) DeleteSnapshot(ctx context.Context, snapshotID int64) error {
	if _, err := o.q.ExecContext(ctx, `DELETE FROM snapshot_files WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	if _, err := o.q.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, snapshotID); err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

// SnapshotExists reports whether a snapshot with the given ID exists.
func (o *Ops) SnapshotExists(ctx context.Context, snapshotID int64) (bool, error) {
	var dummy int
	err := o.q.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE id = ?`, snapshotID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: snapshot exists: %w", err)
	}
	return true, nil
}

// CleanupOrphans deletes every file record with no remaining snapshot-file
// link, then every blob with no remaining file record. Safe to call when
// there are no orphans.
func (o *Ops) CleanupOrphans(ctx context.Context) error {
	if _, err := o.q.ExecContext(ctx, `
		DELETE FROM files
		WHERE id NOT IN (SELECT DISTINCT file_id FROM snapshot_files)`); err != nil {
		return fmt.Errorf("store: cleanup orphans (files): %w", err)
	}
	if _, err := o.q.ExecContext(ctx, `
		DELETE FROM content_blocks
		WHERE hash NOT IN (SELECT DISTINCT content_hash FROM files)`); err != nil {
		return fmt.Errorf("store: cleanup orphans (blobs): %w", err)
	}
	return nil
}

// ListSnapshots returns one SnapshotReport per snapshot, ordered by ID
// ascending. unique_size sums the sizes of file records whose content_hash
// appears in exactly one row of the files table, globally — not
// per-snapshot uniqueness.
func (o *Ops) ListSnapshots(ctx context.Context) ([]SnapshotReport, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT
			s.id,
			s.timestamp,
			COALESCE((
				SELECT SUM(f.size)
				FROM snapshot_files sf
				JOIN files f ON f.id = sf.file_id
				WHERE sf.snapshot_id = s.id
			), 0) AS total_size,
			COALESCE((
				SELECT SUM(f.size)
				FROM snapshot_files sf
				JOIN files f ON f.id = sf.file_id
				WHERE sf.snapshot_id = s.id
				AND (SELECT COUNT(*) FROM files f2 WHERE f2.content_hash = f.content_hash) = 1
			), 0) AS unique_size
		FROM snapshots s
		ORDER BY s.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotReport
	for rows.Next() {
		var (
			r  SnapshotReport
			ts string
		)
		if err := rows.Scan(&r.ID, &ts, &r.TotalSize, &r.UniqueSize); err != nil {
			return nil, fmt.Errorf("store: list snapshots: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("store: list snapshots: parse timestamp %q: %w", ts, err)
		}
		r.Timestamp = parsed
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	return out, nil
}

// The Store itself exposes the same operations as single-call convenience
// wrappers, each running in its own implicit transaction via *sql.DB.

func (s *Store) CreateSnapshot(ctx context.Context, targetDir string) (int64, error) {
	return s.ops().CreateSnapshot(ctx, targetDir)
}

func (s *Store) StoreBlob(ctx context.Context, digestHex string, data []byte) (bool, error) {
	return s.ops().StoreBlob(ctx, digestHex, data)
}

func (s *Store) AddFileToSnapshot(ctx context.Context, snapshotID int64, relPath, digestHex string, size int64) error {
	return s.ops().AddFileToSnapshot(ctx, snapshotID, relPath, digestHex, size)
}

func (s *Store) GetSnapshotFiles(ctx context.Context, snapshotID int64) ([]FileEntry, error) {
	return s.ops().GetSnapshotFiles(ctx, snapshotID)
}

func (s *Store) GetBlob(ctx context.Context, digestHex string) ([]byte, error) {
	return s.ops().GetBlob(ctx, digestHex)
}

func (s *Store) DeleteSnapshot(ctx context.Context, snapshotID int64) error {
	return s.ops().DeleteSnapshot(ctx, snapshotID)
}

func (s *Store) SnapshotExists(ctx context.Context, snapshotID int64) (bool, error) {
	return s.ops().SnapshotExists(ctx, snapshotID)
}

func (s *Store) CleanupOrphans(ctx context.Context) error {
	return s.ops().CleanupOrphans(ctx)
}

func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotReport, error) {
	return s.ops().ListSnapshots(ctx)
}
