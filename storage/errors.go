package storage

import (
	"strconv"

	"skepadb/dberr"
)

// Kind implements dberr.Kinded.
func (e *CodecError) Kind() dberr.Kind { return dberr.CodecErr }

// WalCorruptError is returned when the WAL header is truncated or has a bad
// magic, or when a frame body is too short to decode. A frame that fails its
// CRC check during Replay is not reported; it ends the log instead.
type WalCorruptError struct {
	Reason string
}

func (e *WalCorruptError) Error() string    { return "WAL corrupt: " + e.Reason }
func (e *WalCorruptError) Kind() dberr.Kind { return dberr.WalCorrupt }

// WalVersionError is returned when a WAL file's header version is
// incompatible with the version this build understands.
type WalVersionError struct {
	Found, Want uint16
}

func (e *WalVersionError) Error() string {
	return "WAL file version " + strconv.Itoa(int(e.Found)) + " is not compatible with required version " + strconv.Itoa(int(e.Want))
}
func (e *WalVersionError) Kind() dberr.Kind { return dberr.WalCorrupt }

// IOError wraps an underlying filesystem error with the IoError kind.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string    { return "io error during " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error    { return e.Err }
func (e *IOError) Kind() dberr.Kind { return dberr.IoError }

// DbLockedError is returned when the data directory's lock file is already
// held by another process.
type DbLockedError struct {
	DataDir string
}

func (e *DbLockedError) Error() string    { return "database directory " + e.DataDir + " is locked by another process" }
func (e *DbLockedError) Kind() dberr.Kind { return dberr.DbLocked }
