// Package engine implements the transactional core of skepa-db: the table
// heap, index manager, constraint engine, and planner/executor (spec
// components E–I), wired together behind a single Engine value that owns
// the catalog, heap/index state, WAL handle, and transaction slot (spec
// §9: "modeled as an explicit Engine value... passed explicitly rather
// than as ambient state").
package engine

import (
	"skepadb/catalog"
	"skepadb/storage"
	"skepadb/txn"
)

// Engine is the single-process, single-writer database handle returned by
// Open. All statement execution goes through its methods.
type Engine struct {
	pager *storage.Pager
	wal   *storage.WAL
	cat   *catalog.Catalog

	heaps   map[string]*heap     // table_id → heap
	indexes map[string]*indexSet // table_id → indexSet

	txns *txn.Manager

	// catalogDirty marks that the in-flight transaction changed the
	// catalog and its snapshot must be rewritten at commit.
	catalogDirty bool
}

// Open opens (creating if absent) the database rooted at dataDir: it
// acquires the exclusive lock, loads the last catalog snapshot, opens the
// WAL, and replays committed transactions to reconstruct heap and index
// state (spec §2, §4.C).
func Open(dataDir string) (*Engine, error) {
	pager, err := storage.OpenPager(dataDir)
	if err != nil {
		return nil, err
	}

	catRaw, _, err := storage.ReadFileIfExists(pager.CatalogPath())
	if err != nil {
		pager.Close()
		return nil, err
	}
	catBytes, err := storage.DecompressSnapshot(catRaw)
	if err != nil {
		pager.Close()
		return nil, err
	}
	cat, err := catalog.LoadSnapshot(catBytes)
	if err != nil {
		pager.Close()
		return nil, &InternalError{Reason: err.Error()}
	}

	wal, err := storage.OpenWAL(pager.WalPath())
	if err != nil {
		pager.Close()
		return nil, err
	}

	frames, err := wal.Replay()
	if err != nil {
		wal.Close()
		pager.Close()
		return nil, err
	}

	committed, maxTxID, err := groupCommittedFrames(frames)
	if err != nil {
		wal.Close()
		pager.Close()
		return nil, err
	}

	// A committed DDL transaction carries a full catalog snapshot; the
	// latest one observed wins, since DDL always runs alone in its own
	// transaction (spec §4.H: DDL is refused inside an explicit txn).
	for _, txnFrames := range committed {
		for _, f := range txnFrames {
			if f.Kind == storage.KindCatalogChange {
				snap, err := storage.DecodeCatalogChange(f.Body)
				if err != nil {
					wal.Close()
					pager.Close()
					return nil, err
				}
				reloaded, err := catalog.LoadSnapshot(snap)
				if err != nil {
					wal.Close()
					pager.Close()
					return nil, &InternalError{Reason: err.Error()}
				}
				cat = reloaded
			}
		}
	}

	e := &Engine{
		pager:   pager,
		wal:     wal,
		cat:     cat,
		heaps:   make(map[string]*heap),
		indexes: make(map[string]*indexSet),
		txns:    txn.NewManager(maxTxID + 1),
	}

	for _, table := range cat.ListTables() {
		h, err := openHeap(pager, table.ID)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.heaps[table.ID] = h
		e.indexes[table.ID] = newIndexSet()
		for _, def := range table.Indexes {
			e.indexes[table.ID].add(def)
		}
	}

	for _, txnFrames := range committed {
		for _, f := range txnFrames {
			switch f.Kind {
			case storage.KindInsert:
				b, err := storage.DecodeInsert(f.Body)
				if err != nil {
					e.Close()
					return nil, err
				}
				if h := e.heaps[b.Table]; h != nil {
					h.applyInsert(b.RowID, b.Row)
				}
			case storage.KindUpdate:
				b, err := storage.DecodeUpdate(f.Body)
				if err != nil {
					e.Close()
					return nil, err
				}
				if h := e.heaps[b.Table]; h != nil {
					h.applyUpdate(b.RowID, b.NewRow)
				}
			case storage.KindDelete:
				b, err := storage.DecodeDelete(f.Body)
				if err != nil {
					e.Close()
					return nil, err
				}
				if h := e.heaps[b.Table]; h != nil {
					h.applyDelete(b.RowID)
				}
			}
		}
	}

	for _, table := range cat.ListTables() {
		if err := e.rebuildIndexes(table); err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

// groupCommittedFrames buckets replayed frames by transaction, returning
// only the mutation/catalog frames of transactions whose Commit frame is
// present, in commit order, plus the highest tx_id seen overall (spec
// §4.C: "a transaction's effects are applied... only if the log contains
// its matching Commit").
func groupCommittedFrames(frames []storage.Frame) ([][]storage.Frame, uint64, error) {
	pending := make(map[uint64][]storage.Frame)
	var committed [][]storage.Frame
	var order []uint64
	var maxTxID uint64

	for _, f := range frames {
		if f.TxID > maxTxID {
			maxTxID = f.TxID
		}
		switch f.Kind {
		case storage.KindBegin:
			if _, seen := pending[f.TxID]; !seen {
				order = append(order, f.TxID)
			}
			pending[f.TxID] = pending[f.TxID][:0]
		case storage.KindCommit:
			committed = append(committed, pending[f.TxID])
			delete(pending, f.TxID)
		case storage.KindAbort:
			delete(pending, f.TxID)
		case storage.KindCheckpoint:
			// no-op during replay; truncation already discarded earlier frames
		default:
			pending[f.TxID] = append(pending[f.TxID], f)
		}
	}
	return committed, maxTxID, nil
}

// rebuildIndexes repopulates every index of table from its heap's current
// live rows. Called at Open (after WAL merge).
func (e *Engine) rebuildIndexes(table *catalog.TableSchema) error {
	h := e.heaps[table.ID]
	idx := e.indexes[table.ID]
	for _, entry := range h.scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
		if err != nil {
			return err
		}
		if err := idx.insertRow(table, row, entry.RowID); err != nil {
			return &InternalError{Reason: "index rebuild: " + err.Error()}
		}
	}
	return nil
}

// SetFsync toggles whether commits fsync the WAL (spec §5 durability vs.
// speed tradeoff, surfaced as cmd/skepadb's `-fsync` flag).
func (e *Engine) SetFsync(enabled bool) { e.wal.SetFsync(enabled) }

// Close releases the exclusive lock and closes the WAL and every heap file.
func (e *Engine) Close() error {
	var first error
	for _, h := range e.heaps {
		if err := h.close(); err != nil && first == nil {
			first = err
		}
	}
	if e.wal != nil {
		if err := e.wal.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := e.pager.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Checkpoint persists a fresh catalog snapshot, compacts every heap file
// to contain only live rows, and rewrites each table's .ids file with its
// current row_id high-water mark before truncating the WAL (spec §4.C).
// The .ids file matters because compaction drops tombstones: without it, a
// table whose highest-ever row_id belonged to a deleted row would forget
// that row_id across a restart and could reissue it.
// Index snapshot files are written for on-disk fidelity with the format in
// spec §4.B, though a fresh Open always rebuilds indexes from the heap
// rather than trusting them — see DESIGN.md.
func (e *Engine) Checkpoint() error {
	if err := storage.WriteFileAtomic(e.pager.CatalogPath(), storage.CompressSnapshot(e.cat.Snapshot()), 0o644); err != nil {
		return err
	}
	for _, table := range e.cat.ListTables() {
		h := e.heaps[table.ID]
		if err := h.compact(); err != nil {
			return err
		}
		if err := h.writeIDsFile(e.pager); err != nil {
			return err
		}
		if err := e.writeIndexSnapshots(table); err != nil {
			return err
		}
	}
	if err := e.wal.WriteCheckpoint(e.wal.AllocateLSN()); err != nil {
		return err
	}
	return e.wal.Truncate()
}
