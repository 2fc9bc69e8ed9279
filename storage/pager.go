package storage

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Directory layout (spec §4.B):
//
//	<dataDir>/
//	  catalog          — serialized catalog snapshot
//	  tables/<id>.heap  — append-only row file
//	  tables/<id>.ids   — last issued row_id (single u64, rewritten atomically)
//	  indexes/<id>/<id>.idx — serialized sorted index snapshot
//	  wal              — append-only write-ahead log
//	  .lock            — exclusive lock file (gofrs/flock), never replayed
const (
	CatalogFileName = "catalog"
	TablesDirName   = "tables"
	IndexesDirName  = "indexes"
	WalFileName     = "wal"
	lockFileName    = ".lock"
)

// Pager owns the data directory: the exclusive process lock and the
// write-temp-then-rename primitive every snapshot file uses.
type Pager struct {
	dataDir string
	lock    *flock.Flock
}

// OpenPager creates dataDir if needed, acquires the exclusive lock file, and
// ensures the tables/ and indexes/ subdirectories exist.
func OpenPager(dataDir string) (*Pager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir data dir", Err: err}
	}
	if err := os.MkdirAll(filepath.Join(dataDir, TablesDirName), 0o755); err != nil {
		return nil, &IOError{Op: "mkdir tables dir", Err: err}
	}
	if err := os.MkdirAll(filepath.Join(dataDir, IndexesDirName), 0o755); err != nil {
		return nil, &IOError{Op: "mkdir indexes dir", Err: err}
	}

	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &IOError{Op: "acquire lock file", Err: err}
	}
	if !locked {
		return nil, &DbLockedError{DataDir: dataDir}
	}

	return &Pager{dataDir: dataDir, lock: lock}, nil
}

// Close releases the exclusive lock.
func (p *Pager) Close() error {
	return p.lock.Unlock()
}

// DataDir returns the root data directory.
func (p *Pager) DataDir() string { return p.dataDir }

// CatalogPath returns the path to the catalog snapshot file.
func (p *Pager) CatalogPath() string {
	return filepath.Join(p.dataDir, CatalogFileName)
}

// WalPath returns the path to the single global WAL file.
func (p *Pager) WalPath() string {
	return filepath.Join(p.dataDir, WalFileName)
}

// HeapPath returns the path to a table's append-only heap file.
func (p *Pager) HeapPath(tableID string) string {
	return filepath.Join(p.dataDir, TablesDirName, tableID+".heap")
}

// IDsPath returns the path to a table's last-issued-row_id file.
func (p *Pager) IDsPath(tableID string) string {
	return filepath.Join(p.dataDir, TablesDirName, tableID+".ids")
}

// IndexDir returns the directory holding snapshot files for a table's indexes.
func (p *Pager) IndexDir(tableID string) string {
	return filepath.Join(p.dataDir, IndexesDirName, tableID)
}

// IndexPath returns the path to one index's snapshot file.
func (p *Pager) IndexPath(tableID, indexID string) string {
	return filepath.Join(p.IndexDir(tableID), indexID+".idx")
}

// NewTableID mints a fresh stable identifier for a table, used both as the
// catalog's table_id and as the on-disk file stem.
func NewTableID() string { return uuid.NewString() }

// NewIndexID mints a fresh stable identifier for an index.
func NewIndexID() string { return uuid.NewString() }

// WriteFileAtomic writes data to path via a temp file in the same
// directory, fsyncs it, then renames over path — so a concurrent reader (or
// a crash mid-write) never observes a partial file. The temp name is
// suffixed with a fresh UUID so concurrent checkpoints never collide.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return &IOError{Op: "create temp file", Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Op: "write temp file", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Op: "fsync temp file", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "close temp file", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "rename temp file", Err: err}
	}
	return nil
}

// ReadFileIfExists reads path, returning (nil, false, nil) if it doesn't exist.
func ReadFileIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &IOError{Op: "read file", Err: err}
	}
	return data, true, nil
}
