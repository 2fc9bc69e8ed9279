package engine

import "skepadb/storage"

// Begin opens an explicit transaction.
func (e *Engine) Begin() error { return e.txns.Begin() }

// Commit commits the current explicit transaction. commitCurrent itself
// returns TxnNotOpen if nothing is open.
func (e *Engine) Commit() error { return e.commitCurrent() }

// Rollback reverts the current explicit transaction's effects.
func (e *Engine) Rollback() error {
	records, err := e.txns.Rollback()
	if err != nil {
		return err
	}
	e.applyUndo(records)
	return nil
}

// commitCurrent writes every buffered WAL frame plus a trailing Commit
// frame, fsyncs, then best-effort flushes the touched heap files and (if
// this transaction changed the catalog) the catalog snapshot (spec §4.H).
// On fsync failure the transaction is forced to Aborting and fully undone.
func (e *Engine) commitCurrent() error {
	if err := e.txns.BeginCommit(); err != nil {
		return err
	}
	txID := e.txns.Pending().TxID
	if _, err := e.txns.Pending().Commit(e.wal); err != nil {
		e.txns.ForceAbort()
		_ = e.wal.WriteAbort(txID)
		records, _ := e.txns.Rollback()
		e.applyUndo(records)
		e.catalogDirty = false
		return err
	}

	for _, rec := range e.txns.UndoRecords() {
		h := e.heaps[rec.Table]
		if h == nil {
			continue
		}
		if payload, ok := h.get(rec.RowID); ok {
			_ = h.appendEntry(rec.RowID, payload)
		} else {
			_ = h.appendEntry(rec.RowID, nil)
		}
	}
	if e.catalogDirty {
		_ = storage.WriteFileAtomic(e.pager.CatalogPath(), storage.CompressSnapshot(e.cat.Snapshot()), 0o644)
		e.catalogDirty = false
	}

	e.txns.FinishCommit()
	return nil
}

// runDML ensures a transaction is open (auto-opening a one-statement
// transaction if none is), runs fn, and on error unwinds only the effects
// fn itself produced — leaving an explicit transaction Active and an
// auto-opened one discarded entirely (spec §5, §7).
func (e *Engine) runDML(fn func() (Result, error)) (Result, error) {
	e.txns.EnsureAutoOpen()
	pendingMark := e.txns.Pending().Mark()
	undoMark := e.txns.UndoMark()

	res, err := fn()
	if err != nil {
		e.applyUndo(e.txns.UndoSince(undoMark))
		e.txns.Pending().TruncateTo(pendingMark)
		if !e.txns.Explicit() {
			_, _ = e.txns.Rollback()
		}
		return Result{}, err
	}

	if !e.txns.Explicit() {
		if err := e.commitCurrent(); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}
