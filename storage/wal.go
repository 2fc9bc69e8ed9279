package storage

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
)

// WAL file header: [4-byte magic "SKWL"][uint16 version], little-endian
// throughout (spec §6: "All integers little-endian").
const (
	walMagic          = "SKWL"
	walHeaderSize     = 6
	WalCurrentVersion = uint16(1)
)

// Frame kinds (spec §4.C).
const (
	KindBegin         byte = 1
	KindInsert        byte = 2
	KindUpdate        byte = 3
	KindDelete        byte = 4
	KindCatalogChange byte = 5
	KindCommit        byte = 6
	KindAbort         byte = 7
	KindCheckpoint    byte = 8
)

// Frame is one decoded WAL record: [lsn][tx_id][kind][body][crc32].
type Frame struct {
	LSN   uint64
	TxID  uint64
	Kind  byte
	Body  []byte
}

// InsertBody is the decoded payload of a KindInsert frame.
type InsertBody struct {
	Table string
	RowID int64
	Row   []byte
}

// UpdateBody is the decoded payload of a KindUpdate frame.
type UpdateBody struct {
	Table  string
	RowID  int64
	NewRow []byte
	OldRow []byte
}

// DeleteBody is the decoded payload of a KindDelete frame.
type DeleteBody struct {
	Table string
	RowID int64
	Row   []byte
}

// WAL manages the single append-only write-ahead log for the whole
// database. A transaction can span every table, so one ordered log is
// required rather than a WAL per table.
type WAL struct {
	file    *os.File
	nextLSN uint64
	fsync   bool
}

// OpenWAL opens (creating if absent) the WAL file at path, writing the
// header on a fresh file and validating it on an existing one. The file
// position is left at EOF, ready for appends; callers that need to replay
// must call Replay before any append.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &IOError{Op: "open WAL", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat WAL", Err: err}
	}

	if info.Size() == 0 {
		if err := writeWALHeader(f); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := validateWALHeader(f); err != nil {
			f.Close()
			return nil, err
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, &IOError{Op: "seek WAL", Err: err}
	}

	return &WAL{file: f, fsync: true}, nil
}

// SetFsync toggles whether commits fsync the WAL (teacher's
// storage.engine.SetFsync; disabling trades crash durability for speed).
func (w *WAL) SetFsync(enabled bool) { w.fsync = enabled }

func writeWALHeader(f *os.File) error {
	var hdr [walHeaderSize]byte
	copy(hdr[:4], walMagic)
	binary.LittleEndian.PutUint16(hdr[4:], WalCurrentVersion)
	if _, err := f.Write(hdr[:]); err != nil {
		return &IOError{Op: "write WAL header", Err: err}
	}
	return nil
}

func validateWALHeader(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return &IOError{Op: "seek WAL header", Err: err}
	}
	var hdr [walHeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return &WalCorruptError{Reason: "truncated header"}
	}
	if string(hdr[:4]) != walMagic {
		return &WalCorruptError{Reason: "bad magic"}
	}
	version := binary.LittleEndian.Uint16(hdr[4:])
	if version != WalCurrentVersion {
		return &WalVersionError{Found: version, Want: WalCurrentVersion}
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	if err := w.file.Close(); err != nil {
		return &IOError{Op: "close WAL", Err: err}
	}
	return nil
}

// AllocateLSN hands out the next log sequence number.
func (w *WAL) AllocateLSN() uint64 {
	w.nextLSN++
	return w.nextLSN
}

// SetNextLSN resumes LSN allocation after replay.
func (w *WAL) SetNextLSN(n uint64) { w.nextLSN = n }

func encodeFrame(lsn, txID uint64, kind byte, body []byte) []byte {
	buf := make([]byte, 0, 8+8+1+len(body)+4)
	buf = binary.LittleEndian.AppendUint64(buf, lsn)
	buf = binary.LittleEndian.AppendUint64(buf, txID)
	buf = append(buf, kind)
	buf = append(buf, body...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return buf
}

// appendAndSync writes frames (already carrying final LSNs/tx_id/kind via
// the caller-supplied raw bytes from encodeFrame) sequentially and fsyncs
// once at the end — used for commit, where durability is all-or-nothing
// across the whole batch.
func (w *WAL) appendAndSync(raw [][]byte) error {
	for _, r := range raw {
		if _, err := w.file.Write(r); err != nil {
			return &IOError{Op: "append WAL frame", Err: err}
		}
	}
	if w.fsync {
		if err := w.file.Sync(); err != nil {
			return &IOError{Op: "fsync WAL", Err: err}
		}
	}
	return nil
}

// writeUnsynced encodes and appends one frame of any kind without fsyncing.
func (w *WAL) writeUnsynced(lsn, txID uint64, kind byte, body []byte) error {
	raw := encodeFrame(lsn, txID, kind, body)
	if _, err := w.file.Write(raw); err != nil {
		return &IOError{Op: "append WAL frame", Err: err}
	}
	return nil
}

// WriteAbort appends and fsyncs a standalone Abort frame — used only when a
// commit attempt partially wrote frames before an I/O failure, to mark the
// attempt void for replay (spec §4.H: IoError during commit forces Aborting).
func (w *WAL) WriteAbort(txID uint64) error {
	lsn := w.AllocateLSN()
	raw := encodeFrame(lsn, txID, KindAbort, nil)
	if err := w.appendAndSync([][]byte{raw}); err != nil {
		return err
	}
	return nil
}

// WriteCheckpoint appends and fsyncs a Checkpoint frame recording the LSN up
// to which heap/index/catalog state has been durably snapshotted.
func (w *WAL) WriteCheckpoint(upToLSN uint64) error {
	lsn := w.AllocateLSN()
	body := binary.LittleEndian.AppendUint64(nil, upToLSN)
	raw := encodeFrame(lsn, 0, KindCheckpoint, body)
	return w.appendAndSync([][]byte{raw})
}

// Truncate discards the WAL content before a checkpoint by recreating the
// file with just the header — called after a successful checkpoint snapshot
// has been durably written.
func (w *WAL) Truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return &IOError{Op: "truncate WAL", Err: err}
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return &IOError{Op: "seek WAL", Err: err}
	}
	if err := writeWALHeader(w.file); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return &IOError{Op: "seek WAL", Err: err}
	}
	return nil
}

// -------------------------------------------------------------------------
// Pending-frame builder — used by the transaction manager to stage frames
// in memory, assigning LSNs only at commit time.
// -------------------------------------------------------------------------

// PendingTxn accumulates encoded frame bodies for one transaction until
// commit, when they are all written to the WAL in one fsynced batch.
type PendingTxn struct {
	TxID   uint64
	kinds  []byte
	bodies [][]byte
}

// NewPendingTxn starts a new in-memory frame buffer for txID, staging the
// Begin frame as position 0.
func NewPendingTxn(txID uint64) *PendingTxn {
	p := &PendingTxn{TxID: txID}
	p.stage(KindBegin, nil)
	return p
}

func (p *PendingTxn) stage(kind byte, body []byte) {
	p.kinds = append(p.kinds, kind)
	p.bodies = append(p.bodies, body)
}

// StageInsert buffers an Insert frame body.
func (p *PendingTxn) StageInsert(table string, rowID int64, row []byte) {
	body := encodeString(nil, table)
	body = binary.LittleEndian.AppendUint64(body, uint64(rowID))
	body = encodeBytes(body, row)
	p.stage(KindInsert, body)
}

// StageUpdate buffers an Update frame body.
func (p *PendingTxn) StageUpdate(table string, rowID int64, newRow, oldRow []byte) {
	body := encodeString(nil, table)
	body = binary.LittleEndian.AppendUint64(body, uint64(rowID))
	body = encodeBytes(body, newRow)
	body = encodeBytes(body, oldRow)
	p.stage(KindUpdate, body)
}

// StageDelete buffers a Delete frame body.
func (p *PendingTxn) StageDelete(table string, rowID int64, oldRow []byte) {
	body := encodeString(nil, table)
	body = binary.LittleEndian.AppendUint64(body, uint64(rowID))
	body = encodeBytes(body, oldRow)
	p.stage(KindDelete, body)
}

// StageCatalogChange buffers a CatalogChange frame body.
func (p *PendingTxn) StageCatalogChange(snapshot []byte) {
	p.stage(KindCatalogChange, encodeBytes(nil, snapshot))
}

// Empty reports whether only the implicit Begin frame is staged.
func (p *PendingTxn) Empty() bool { return len(p.kinds) <= 1 }

// Mark returns the current number of staged frames, for a caller that may
// need to discard everything staged after this point if the in-progress
// statement fails partway through (spec §5: a failed statement's partial
// effects are undone before control returns, without aborting the
// transaction).
func (p *PendingTxn) Mark() int { return len(p.kinds) }

// TruncateTo discards every frame staged after mark.
func (p *PendingTxn) TruncateTo(mark int) {
	p.kinds = p.kinds[:mark]
	p.bodies = p.bodies[:mark]
}

// Commit assigns LSNs to every staged frame plus a trailing Commit frame,
// writes them sequentially, and fsyncs once. On success it returns the
// commit frame's LSN. On I/O failure, the caller must treat the
// transaction as Aborting per spec §4.H/§7 and should call WriteAbort.
func (p *PendingTxn) Commit(w *WAL) (uint64, error) {
	raw := make([][]byte, 0, len(p.kinds)+1)
	for i, kind := range p.kinds {
		lsn := w.AllocateLSN()
		raw = append(raw, encodeFrame(lsn, p.TxID, kind, p.bodies[i]))
	}
	commitLSN := w.AllocateLSN()
	raw = append(raw, encodeFrame(commitLSN, p.TxID, KindCommit, nil))

	if err := w.appendAndSync(raw); err != nil {
		return 0, err
	}
	return commitLSN, nil
}

// -------------------------------------------------------------------------
// Replay
// -------------------------------------------------------------------------

// Replay reads every frame from just after the header to EOF (or to the
// first torn/corrupt frame, which is treated as EOF per spec §4.C), returns
// the ordered list, and sets the next LSN from the highest LSN observed so
// the WAL can resume numbering. It does not interpret transaction
// boundaries — that is the caller's job (see engine.Open), because only the caller knows
// which frames to apply to which in-memory structures.
func (w *WAL) Replay() ([]Frame, error) {
	if _, err := w.file.Seek(walHeaderSize, io.SeekStart); err != nil {
		return nil, &IOError{Op: "seek WAL", Err: err}
	}

	var frames []Frame
	var maxLSN uint64

	for {
		var head [8 + 8 + 1]byte
		n, err := io.ReadFull(w.file, head[:])
		if err != nil || n != len(head) {
			break // clean EOF or torn frame: stop as if at EOF
		}
		lsn := binary.LittleEndian.Uint64(head[0:8])
		txID := binary.LittleEndian.Uint64(head[8:16])
		kind := head[16]

		body, ok := readFrameBody(w.file, kind)
		if !ok {
			break
		}

		crcBuf := make([]byte, 0, len(head)+len(body))
		crcBuf = append(crcBuf, head[:]...)
		crcBuf = append(crcBuf, body...)

		var crcField [4]byte
		if _, err := io.ReadFull(w.file, crcField[:]); err != nil {
			break
		}
		storedCRC := binary.LittleEndian.Uint32(crcField[:])
		if crc32.ChecksumIEEE(crcBuf) != storedCRC {
			break // torn/corrupt frame — tolerate as EOF
		}

		frames = append(frames, Frame{LSN: lsn, TxID: txID, Kind: kind, Body: body})
		if lsn > maxLSN {
			maxLSN = lsn
		}
	}

	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return nil, &IOError{Op: "seek WAL", Err: err}
	}
	w.nextLSN = maxLSN
	return frames, nil
}

// readFrameBody reads the kind-specific body for a frame being replayed. It
// reports ok=false on any truncation, which the caller treats as a torn
// frame (end of usable log).
func readFrameBody(f *os.File, kind byte) ([]byte, bool) {
	switch kind {
	case KindBegin, KindCommit, KindAbort:
		return nil, true
	case KindCheckpoint:
		var b [8]byte
		if _, err := io.ReadFull(f, b[:]); err != nil {
			return nil, false
		}
		return b[:], true
	case KindInsert, KindUpdate, KindDelete, KindCatalogChange:
		return readVariableBody(f, kind)
	default:
		return nil, false
	}
}

// readVariableBody reads the length-prefixed fields of Insert/Update/Delete/
// CatalogChange bodies by speculatively decoding them, since their total
// length is not separately framed — only the structure of the body itself
// tells us where it ends.
func readVariableBody(f *os.File, kind byte) ([]byte, bool) {
	var out []byte

	readStr := func() ([]byte, bool) {
		var lb [2]byte
		if _, err := io.ReadFull(f, lb[:]); err != nil {
			return nil, false
		}
		l := binary.LittleEndian.Uint16(lb[:])
		s := make([]byte, l)
		if _, err := io.ReadFull(f, s); err != nil {
			return nil, false
		}
		out = append(out, lb[:]...)
		out = append(out, s...)
		return s, true
	}
	readU64 := func() bool {
		var b [8]byte
		if _, err := io.ReadFull(f, b[:]); err != nil {
			return false
		}
		out = append(out, b[:]...)
		return true
	}
	readBytes := func() bool {
		var lb [4]byte
		if _, err := io.ReadFull(f, lb[:]); err != nil {
			return false
		}
		l := binary.LittleEndian.Uint32(lb[:])
		b := make([]byte, l)
		if _, err := io.ReadFull(f, b); err != nil {
			return false
		}
		out = append(out, lb[:]...)
		out = append(out, b...)
		return true
	}

	switch kind {
	case KindCatalogChange:
		if !readBytes() {
			return nil, false
		}
	case KindInsert:
		if _, ok := readStr(); !ok {
			return nil, false
		}
		if !readU64() {
			return nil, false
		}
		if !readBytes() {
			return nil, false
		}
	case KindDelete:
		if _, ok := readStr(); !ok {
			return nil, false
		}
		if !readU64() {
			return nil, false
		}
		if !readBytes() {
			return nil, false
		}
	case KindUpdate:
		if _, ok := readStr(); !ok {
			return nil, false
		}
		if !readU64() {
			return nil, false
		}
		if !readBytes() {
			return nil, false
		}
		if !readBytes() {
			return nil, false
		}
	}
	return out, true
}

// DecodeInsert decodes an Insert frame body.
func DecodeInsert(body []byte) (InsertBody, error) {
	table, rest, err := decodeString(body)
	if err != nil {
		return InsertBody{}, err
	}
	if len(rest) < 8 {
		return InsertBody{}, &WalCorruptError{Reason: "truncated insert row id"}
	}
	rowID := int64(binary.LittleEndian.Uint64(rest[:8]))
	rest = rest[8:]
	row, _, err := decodeBytes(rest)
	if err != nil {
		return InsertBody{}, err
	}
	return InsertBody{Table: table, RowID: rowID, Row: row}, nil
}

// DecodeUpdate decodes an Update frame body.
func DecodeUpdate(body []byte) (UpdateBody, error) {
	table, rest, err := decodeString(body)
	if err != nil {
		return UpdateBody{}, err
	}
	if len(rest) < 8 {
		return UpdateBody{}, &WalCorruptError{Reason: "truncated update row id"}
	}
	rowID := int64(binary.LittleEndian.Uint64(rest[:8]))
	rest = rest[8:]
	newRow, rest, err := decodeBytes(rest)
	if err != nil {
		return UpdateBody{}, err
	}
	oldRow, _, err := decodeBytes(rest)
	if err != nil {
		return UpdateBody{}, err
	}
	return UpdateBody{Table: table, RowID: rowID, NewRow: newRow, OldRow: oldRow}, nil
}

// DecodeDelete decodes a Delete frame body.
func DecodeDelete(body []byte) (DeleteBody, error) {
	table, rest, err := decodeString(body)
	if err != nil {
		return DeleteBody{}, err
	}
	if len(rest) < 8 {
		return DeleteBody{}, &WalCorruptError{Reason: "truncated delete row id"}
	}
	rowID := int64(binary.LittleEndian.Uint64(rest[:8]))
	rest = rest[8:]
	row, _, err := decodeBytes(rest)
	if err != nil {
		return DeleteBody{}, err
	}
	return DeleteBody{Table: table, RowID: rowID, Row: row}, nil
}

// DecodeCatalogChange decodes a CatalogChange frame body.
func DecodeCatalogChange(body []byte) ([]byte, error) {
	snap, _, err := decodeBytes(body)
	return snap, err
}

// DecodeCheckpoint decodes a Checkpoint frame body.
func DecodeCheckpoint(body []byte) (uint64, error) {
	if len(body) < 8 {
		return 0, &WalCorruptError{Reason: "truncated checkpoint"}
	}
	return binary.LittleEndian.Uint64(body[:8]), nil
}

// -------------------------------------------------------------------------
// Small encoding helpers shared by WAL frame bodies.
// -------------------------------------------------------------------------

func encodeString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func decodeString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, &WalCorruptError{Reason: "truncated string length"}
	}
	n := binary.LittleEndian.Uint16(data[:2])
	data = data[2:]
	if len(data) < int(n) {
		return "", nil, &WalCorruptError{Reason: "truncated string data"}
	}
	return string(data[:n]), data[n:], nil
}

func encodeBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func decodeBytes(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, &WalCorruptError{Reason: "truncated bytes length"}
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, &WalCorruptError{Reason: "truncated bytes data"}
	}
	return data[:n], data[n:], nil
}
