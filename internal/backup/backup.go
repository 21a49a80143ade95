// Package backup snapshots the SQLite store to a compressed file, manages
// local retention, and optionally pushes/pulls snapshots to an S3-compatible
// remote.
package backup

import (
	"compress/gzip"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// filenamePattern matches "{prefix}-YYYY-MM-DD-HHMMSS.{ext}.gz".
var filenamePattern = regexp.MustCompile(`^(.+)-(\d{4}-\d{2}-\d{2}-\d{6})\.([a-zA-Z0-9]+)\.gz$`)

// Snapshot describes one backup file on disk.
type Snapshot struct {
	// ID is a ULID assigned by Create: sortable by creation order and
	// independent of the on-disk filename format. It is not persisted, so
	// snapshots returned by List have an empty ID.
	ID        string
	Path      string
	Prefix    string
	Ext       string
	Timestamp time.Time
}

// Engine manages local backup snapshots of a SQLite database file.
type Engine struct {
	dbPath    string
	backupDir string
	prefix    string
	retention int
	log       *slog.Logger
	now       func() time.Time
	remote    *RemoteStore
}

// New builds a backup Engine. retention is the number of newest snapshots to
// keep locally; 0 means unbounded.
func New(dbPath, backupDir, prefix string, retention int, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if prefix == "" {
		prefix = "hone"
	}
	return &Engine{dbPath: dbPath, backupDir: backupDir, prefix: prefix, retention: retention, log: log, now: time.Now}
}

// SetRemote attaches a RemoteStore that every future Create pushes its
// snapshot to, in addition to the local retained copy. A nil remote
// disables remote push.
func (e *Engine) SetRemote(remote *RemoteStore) {
	e.remote = remote
}

// Create takes a consistent copy of the database file, compresses it, and
// prunes old snapshots per the retention policy. SQLite's WAL mode means a
// plain file copy is not crash-consistent unless a checkpoint has run first;
// callers are expected to have issued "PRAGMA wal_checkpoint(TRUNCATE)"
// before calling Create.
func (e *Engine) Create(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(e.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	ts := e.now()
	ext := strings.TrimPrefix(filepath.Ext(e.dbPath), ".")
	if ext == "" {
		ext = "db"
	}
	filename := fmt.Sprintf("%s-%s.%s.gz", e.prefix, ts.Format("2006-01-02-150405"), ext)
	destPath := filepath.Join(e.backupDir, filename)

	if err := e.compressFile(e.dbPath, destPath); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}

	pruned, err := e.prune()
	if err != nil {
		e.log.Warn("pruning old backups failed", "error", err)
	} else if pruned > 0 {
		e.log.Info("pruned old backups", "count", pruned)
	}

	if e.remote != nil {
		if err := e.remote.Push(ctx, destPath); err != nil {
			e.log.Warn("pushing snapshot to remote store failed", "error", err, "path", destPath)
		}
	}

	id := ulid.MustNew(ulid.Timestamp(ts), ulid.Monotonic(rand.Reader, 0)).String()

	return &Snapshot{ID: id, Path: destPath, Prefix: e.prefix, Ext: ext, Timestamp: ts}, nil
}

func (e *Engine) compressFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	gw := gzip.NewWriter(dest)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// List returns all snapshots in the backup directory, newest first.
func (e *Engine) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(e.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		ts, err := time.Parse("2006-01-02-150405", m[2])
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{
			Path:      filepath.Join(e.backupDir, entry.Name()),
			Prefix:    m[1],
			Ext:       m[3],
			Timestamp: ts,
		})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp.After(snaps[j].Timestamp) })
	return snaps, nil
}

// prune removes all but the newest `retention` snapshots for this engine's
// prefix. A retention of 0 disables pruning.
func (e *Engine) prune() (int, error) {
	if e.retention <= 0 {
		return 0, nil
	}
	snaps, err := e.List()
	if err != nil {
		return 0, err
	}
	var mine []Snapshot
	for _, s := range snaps {
		if s.Prefix == e.prefix {
			mine = append(mine, s)
		}
	}
	if len(mine) <= e.retention {
		return 0, nil
	}
	pruned := 0
	for _, s := range mine[e.retention:] {
		if err := os.Remove(s.Path); err != nil {
			e.log.Warn("removing old backup failed", "path", s.Path, "error", err)
			continue
		}
		pruned++
	}
	return pruned, nil
}

// Restore decompresses snapshotPath over the live database file. Refuses
// unless force is true, since this discards the current database. Also
// removes the companion -wal/-shm journal files so SQLite doesn't replay a
// WAL against a file it no longer matches.
func (e *Engine) Restore(ctx context.Context, snapshotPath string, force bool) error {
	if !force {
		return fmt.Errorf("restore requires force=true: this overwrites %s", e.dbPath)
	}

	src, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	gr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	defer gr.Close()

	tmpPath := e.dbPath + ".restoring"
	dest, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating restore target: %w", err)
	}
	if _, err := io.Copy(dest, gr); err != nil {
		dest.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("decompressing snapshot: %w", err)
	}
	if err := dest.Close(); err != nil {
		return err
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(e.dbPath + suffix)
	}
	return os.Rename(tmpPath, e.dbPath)
}

// Verify decompresses a snapshot in full, discarding the output, and confirms
// it has non-zero size, without touching the live database. It does not write
// the result to disk or open it as a database.
func (e *Engine) Verify(snapshotPath string) error {
	src, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	gr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("snapshot is not valid gzip: %w", err)
	}
	defer gr.Close()

	n, err := io.Copy(io.Discard, gr)
	if err != nil {
		return fmt.Errorf("snapshot is corrupt: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("snapshot decompressed to zero bytes")
	}
	return nil
}
