package engine

import (
	"encoding/binary"
	"io"
	"os"
	"sort"

	"skepadb/storage"
)

// heap holds one table's row data, both the in-memory reconstruction used
// to answer every read/write and the append-only file it is rebuilt from
// (spec §4.E). Entries are `[len: u32][row_id: u64][payload]`; a len of 0
// marks a tombstone. Writes to the file are best-effort — the WAL, not the
// heap file, is the durable record of a committed write (spec §4.C).
type heap struct {
	tableID   string
	file      *os.File
	rows      map[int64][]byte // rowID → latest live payload; tombstoned rows absent
	nextRowID int64            // highest row_id ever assigned, live or tombstoned
}

// openHeap opens (creating if absent) the heap file for tableID and
// reconstructs live row state by scanning it end to end.
func openHeap(p *storage.Pager, tableID string) (*heap, error) {
	path := p.HeapPath(tableID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &storage.IOError{Op: "open heap file", Err: err}
	}
	rows, maxSeen, err := scanHeapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	// A checkpoint compacts the heap file down to live rows only, which
	// drops the tombstone entries a plain file scan would otherwise use to
	// recover the high-water mark. The .ids file persists that mark
	// separately so row_ids a checkpoint forgot about are never reissued.
	lastIssued, err := readIDsFile(p, tableID)
	if err != nil {
		f.Close()
		return nil, err
	}
	if lastIssued > maxSeen {
		maxSeen = lastIssued
	}

	return &heap{tableID: tableID, file: f, rows: rows, nextRowID: maxSeen}, nil
}

// readIDsFile returns the last-issued row_id recorded for tableID, or 0 if
// no .ids file has been written yet (a brand new table, or a database
// created before its first checkpoint).
func readIDsFile(p *storage.Pager, tableID string) (int64, error) {
	data, ok, err := storage.ReadFileIfExists(p.IDsPath(tableID))
	if err != nil {
		return 0, err
	}
	if !ok || len(data) < 8 {
		return 0, nil
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// writeIDsFile atomically rewrites tableID's .ids file with the current
// high-water mark, so a checkpoint's heap compaction never loses track of
// row_ids used by rows that are no longer live.
func (h *heap) writeIDsFile(p *storage.Pager) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(h.nextRowID))
	return storage.WriteFileAtomic(p.IDsPath(h.tableID), buf[:], 0o644)
}

// scanHeapFile replays the heap file, returning the live-row map and the
// highest row_id observed (live or tombstoned) — row_ids must never be
// reused, so the tombstone's id still counts (spec §3 invariant 5).
func scanHeapFile(f *os.File) (map[int64][]byte, int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, &storage.IOError{Op: "seek heap file", Err: err}
	}
	rows := make(map[int64][]byte)
	var maxSeen int64
	var head [4 + 8]byte
	for {
		if _, err := io.ReadFull(f, head[:]); err != nil {
			// Clean EOF or a torn trailing entry — both stop replay here,
			// the same tolerance the WAL applies to its own frames.
			break
		}
		length := binary.LittleEndian.Uint32(head[0:4])
		rowID := int64(binary.LittleEndian.Uint64(head[4:12]))
		if rowID > maxSeen {
			maxSeen = rowID
		}
		if length == 0 {
			delete(rows, rowID)
			continue
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		rows[rowID] = payload
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, 0, &storage.IOError{Op: "seek heap file", Err: err}
	}
	return rows, maxSeen, nil
}

func (h *heap) close() error {
	if err := h.file.Close(); err != nil {
		return &storage.IOError{Op: "close heap file", Err: err}
	}
	return nil
}

// appendEntry writes one heap-file record. payload == nil writes a
// tombstone. Best-effort: callers never depend on this for durability.
func (h *heap) appendEntry(rowID int64, payload []byte) error {
	var head [4 + 8]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint64(head[4:12], uint64(rowID))
	if _, err := h.file.Write(head[:]); err != nil {
		return &storage.IOError{Op: "append heap entry", Err: err}
	}
	if len(payload) > 0 {
		if _, err := h.file.Write(payload); err != nil {
			return &storage.IOError{Op: "append heap entry", Err: err}
		}
	}
	return nil
}

// applyInsert / applyUpdate set the in-memory row; applyDelete tombstones
// it. These mutate only the live map — WAL staging and file append happen
// in the caller (constraint engine / replay), keeping "apply to
// in-memory state" separate from "apply to on-disk files".
func (h *heap) applyInsert(rowID int64, row []byte) { h.rows[rowID] = row; h.noteRowID(rowID) }
func (h *heap) applyUpdate(rowID int64, row []byte) { h.rows[rowID] = row }
func (h *heap) applyDelete(rowID int64)             { delete(h.rows, rowID) }

// noteRowID bumps the high-water mark used by allocateRowID, needed when a
// committed Insert frame's row_id is higher than anything seen by the heap
// file scan (the flush to disk is best-effort and may not have happened
// before a crash).
func (h *heap) noteRowID(rowID int64) {
	if rowID > h.nextRowID {
		h.nextRowID = rowID
	}
}

// allocateRowID mints a fresh, never-reused row_id for this table.
func (h *heap) allocateRowID() int64 {
	h.nextRowID++
	return h.nextRowID
}

// get returns a row's current payload, or (nil, false) if absent/deleted.
func (h *heap) get(rowID int64) ([]byte, bool) {
	row, ok := h.rows[rowID]
	return row, ok
}

// scanOrdered returns every live (rowID, payload) pair in ascending rowID
// order (spec §4.E: "Ordering: ascending row_id").
func (h *heap) scanOrdered() []rowEntry {
	out := make([]rowEntry, 0, len(h.rows))
	for id, payload := range h.rows {
		out = append(out, rowEntry{RowID: id, Payload: payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out
}

type rowEntry struct {
	RowID   int64
	Payload []byte
}

// compact rewrites the heap file containing only currently-live rows,
// called during a checkpoint once the in-memory state is known-durable via
// the catalog+heap+index snapshot that accompanies it.
func (h *heap) compact() error {
	tmpPath := h.file.Name() + ".compact"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &storage.IOError{Op: "create heap compaction file", Err: err}
	}
	for _, e := range h.scanOrdered() {
		var head [4 + 8]byte
		binary.LittleEndian.PutUint32(head[0:4], uint32(len(e.Payload)))
		binary.LittleEndian.PutUint64(head[4:12], uint64(e.RowID))
		if _, err := f.Write(head[:]); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return &storage.IOError{Op: "write heap compaction file", Err: err}
		}
		if _, err := f.Write(e.Payload); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return &storage.IOError{Op: "write heap compaction file", Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &storage.IOError{Op: "fsync heap compaction file", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &storage.IOError{Op: "close heap compaction file", Err: err}
	}
	if err := h.file.Close(); err != nil {
		return &storage.IOError{Op: "close heap file", Err: err}
	}
	if err := os.Rename(tmpPath, h.file.Name()); err != nil {
		return &storage.IOError{Op: "rename heap compaction file", Err: err}
	}
	reopened, err := os.OpenFile(h.file.Name(), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return &storage.IOError{Op: "reopen heap file", Err: err}
	}
	h.file = reopened
	return nil
}
