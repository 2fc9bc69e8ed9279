package engine

import (
	"fmt"

	"skepadb/catalog"
	"skepadb/storage"
	"skepadb/txn"
)

// visitKey identifies one row reached during a cascade walk, used to break
// cycles in the FK graph (spec §4.G, §9: "visited set keyed by
// (table,row_id)").
type visitKey struct {
	table string
	rowID int64
}

type visitSet map[visitKey]bool

func (v visitSet) seen(table string, rowID int64) bool {
	k := visitKey{table, rowID}
	if v[k] {
		return true
	}
	v[k] = true
	return false
}

// checkRow validates arity, per-column type, and NOT NULL for a candidate
// row against schema (spec §4.G step 1).
func checkRow(schema *catalog.TableSchema, values []any) error {
	if len(values) != len(schema.Columns) {
		return &ArityMismatchError{Table: schema.Name, Got: len(values), Want: len(schema.Columns)}
	}
	for i, col := range schema.Columns {
		v := values[i]
		if v == nil {
			if col.NotNull {
				return &NotNullViolationError{Table: schema.Name, Column: col.Name}
			}
			continue
		}
		switch col.Type {
		case catalog.Int:
			if _, ok := v.(int64); !ok {
				return &TypeErrorError{Context: fmt.Sprintf("column %s.%s expects int", schema.Name, col.Name)}
			}
		case catalog.Text:
			if _, ok := v.(string); !ok {
				return &TypeErrorError{Context: fmt.Sprintf("column %s.%s expects text", schema.Name, col.Name)}
			}
		}
	}
	return nil
}

// checkLiteralType reports a TypeError if literal can't possibly match
// col's declared type, the same rule checkRow applies to stored values —
// used to type-check a WHERE literal before an index lookup takes a
// shortcut around the full-scan comparator (spec §4.I: a predicate's
// type-mismatch behavior must not depend on whether its column is indexed).
func checkLiteralType(table string, col catalog.Column, literal any) error {
	if literal == nil {
		return nil
	}
	switch col.Type {
	case catalog.Int:
		if _, ok := literal.(int64); !ok {
			return &TypeErrorError{Context: fmt.Sprintf("column %s.%s expects int", table, col.Name)}
		}
	case catalog.Text:
		if _, ok := literal.(string); !ok {
			return &TypeErrorError{Context: fmt.Sprintf("column %s.%s expects text", table, col.Name)}
		}
	}
	return nil
}

// project extracts the values of cols (by name) from row, in order.
func project(schema *catalog.TableSchema, row []any, cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = row[schema.ColumnIndex(c)]
	}
	return out
}

func nullFree(key []any) bool {
	for _, v := range key {
		if v == nil {
			return false
		}
	}
	return true
}

// checkOutgoingForeignKeys verifies, for every FK declared on schema whose
// child-side projection of values is NULL-free, that the referenced tuple
// exists in the parent table (spec §4.G step 3 of Insert; parent lookups
// see this transaction's own uncommitted writes because everything lives
// in the same in-memory index state).
func (e *Engine) checkOutgoingForeignKeys(schema *catalog.TableSchema, values []any) error {
	for _, fk := range schema.ForeignKeys {
		childKey := project(schema, values, fk.ChildColumns)
		if !nullFree(childKey) {
			continue
		}
		parent, err := e.cat.GetTable(fk.ParentTable)
		if err != nil {
			return &InternalError{Reason: "foreign key references missing table " + fk.ParentTable}
		}
		matches, err := e.findRowsByKey(parent, fk.ParentColumns, childKey)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return &ForeignKeyViolationError{Table: schema.Name, Reason: "referenced row does not exist in " + fk.ParentTable}
		}
	}
	return nil
}

// insertRow performs the full Insert sequence (spec §4.G) within the
// current transaction: validate, check outgoing FKs, then write to the
// index set, heap, WAL buffer, and undo log.
func (e *Engine) insertRow(schema *catalog.TableSchema, values []any) (int64, error) {
	if err := checkRow(schema, values); err != nil {
		return 0, err
	}
	if err := e.checkOutgoingForeignKeys(schema, values); err != nil {
		return 0, err
	}

	h := e.heaps[schema.ID]
	idx := e.indexes[schema.ID]
	rowID := h.allocateRowID()
	if err := idx.insertRow(schema, values, rowID); err != nil {
		return 0, err
	}

	payload := storage.EncodeRow(values)
	h.applyInsert(rowID, payload)
	e.txns.Pending().StageInsert(schema.ID, rowID, payload)
	e.txns.RecordInsert(schema.ID, rowID)
	return rowID, nil
}

// updateRow performs the full Update sequence (spec §4.G), including FK
// cascades walked depth-first with visited deduplication.
func (e *Engine) updateRow(schema *catalog.TableSchema, rowID int64, newValues []any, visited visitSet) error {
	if visited.seen(schema.ID, rowID) {
		return nil
	}

	h := e.heaps[schema.ID]
	oldPayload, ok := h.get(rowID)
	if !ok {
		return &InternalError{Reason: "update target row vanished"}
	}
	oldValues, err := storage.DecodeRow(oldPayload, len(schema.Columns))
	if err != nil {
		return err
	}

	if err := checkRow(schema, newValues); err != nil {
		return err
	}

	idx := e.indexes[schema.ID]
	idx.removeRow(schema, oldValues, rowID)
	if err := idx.insertRow(schema, newValues, rowID); err != nil {
		idx.insertRow(schema, oldValues, rowID) // cannot fail: identical to the state before removal
		return err
	}

	if err := e.cascadeOnUpdate(schema, oldValues, newValues, visited); err != nil {
		idx.removeRow(schema, newValues, rowID)
		idx.insertRow(schema, oldValues, rowID)
		return err
	}

	if err := e.checkOutgoingForeignKeys(schema, newValues); err != nil {
		idx.removeRow(schema, newValues, rowID)
		idx.insertRow(schema, oldValues, rowID)
		return err
	}

	newPayload := storage.EncodeRow(newValues)
	h.applyUpdate(rowID, newPayload)
	e.txns.Pending().StageUpdate(schema.ID, rowID, newPayload, oldPayload)
	e.txns.RecordUpdate(schema.ID, rowID, oldPayload)
	return nil
}

// cascadeOnUpdate walks every FK that references schema as parent,
// applying on_update to child rows whose FK projection equals the row's
// pre-update referenced key, when that key actually changed (spec §4.G
// step 3).
func (e *Engine) cascadeOnUpdate(schema *catalog.TableSchema, oldValues, newValues []any, visited visitSet) error {
	for _, ref := range e.cat.ReferencingTables(schema.Name) {
		fk := ref.FK
		oldKey := project(schema, oldValues, fk.ParentColumns)
		newKey := project(schema, newValues, fk.ParentColumns)
		if !nullFree(oldKey) || storage.CompareKeys(oldKey, newKey) == 0 {
			continue
		}
		childSchema, err := e.cat.GetTable(ref.ChildTable)
		if err != nil {
			return &InternalError{Reason: "dangling foreign key reference to " + ref.ChildTable}
		}
		childRowIDs, err := e.findRowsByKey(childSchema, fk.ChildColumns, oldKey)
		if err != nil {
			return err
		}
		if len(childRowIDs) == 0 {
			continue
		}
		switch fk.OnUpdate {
		case catalog.Restrict, catalog.NoAction:
			return &ForeignKeyViolationError{Table: childSchema.Name, Reason: "rows still reference " + schema.Name + " via " + colList(fk.ChildColumns)}
		case catalog.Cascade:
			for _, childRowID := range childRowIDs {
				childPayload, ok := e.heaps[childSchema.ID].get(childRowID)
				if !ok {
					continue
				}
				childValues, err := storage.DecodeRow(childPayload, len(childSchema.Columns))
				if err != nil {
					return err
				}
				updated := append([]any(nil), childValues...)
				for i, col := range fk.ChildColumns {
					updated[childSchema.ColumnIndex(col)] = newKey[i]
				}
				if err := e.updateRow(childSchema, childRowID, updated, visited); err != nil {
					return err
				}
			}
		case catalog.SetNull:
			for _, childRowID := range childRowIDs {
				childPayload, ok := e.heaps[childSchema.ID].get(childRowID)
				if !ok {
					continue
				}
				childValues, err := storage.DecodeRow(childPayload, len(childSchema.Columns))
				if err != nil {
					return err
				}
				updated := append([]any(nil), childValues...)
				for _, col := range fk.ChildColumns {
					updated[childSchema.ColumnIndex(col)] = nil
				}
				if err := e.updateRow(childSchema, childRowID, updated, visited); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// deleteRow performs the full Delete sequence (spec §4.G): cascade to
// children first, then remove from heap and every index.
func (e *Engine) deleteRow(schema *catalog.TableSchema, rowID int64, visited visitSet) error {
	if visited.seen(schema.ID, rowID) {
		return nil
	}

	h := e.heaps[schema.ID]
	payload, ok := h.get(rowID)
	if !ok {
		return &InternalError{Reason: "delete target row vanished"}
	}
	values, err := storage.DecodeRow(payload, len(schema.Columns))
	if err != nil {
		return err
	}

	if err := e.cascadeOnDelete(schema, values, visited); err != nil {
		return err
	}

	idx := e.indexes[schema.ID]
	idx.removeRow(schema, values, rowID)
	h.applyDelete(rowID)
	e.txns.Pending().StageDelete(schema.ID, rowID, payload)
	e.txns.RecordDelete(schema.ID, rowID, payload)
	return nil
}

// cascadeOnDelete applies on_delete to every child row referencing values
// through any FK that names schema as parent (spec §4.G step 1 of Delete).
func (e *Engine) cascadeOnDelete(schema *catalog.TableSchema, values []any, visited visitSet) error {
	for _, ref := range e.cat.ReferencingTables(schema.Name) {
		fk := ref.FK
		key := project(schema, values, fk.ParentColumns)
		if !nullFree(key) {
			continue
		}
		childSchema, err := e.cat.GetTable(ref.ChildTable)
		if err != nil {
			return &InternalError{Reason: "dangling foreign key reference to " + ref.ChildTable}
		}
		childRowIDs, err := e.findRowsByKey(childSchema, fk.ChildColumns, key)
		if err != nil {
			return err
		}
		if len(childRowIDs) == 0 {
			continue
		}
		switch fk.OnDelete {
		case catalog.Restrict, catalog.NoAction:
			return &ForeignKeyViolationError{Table: childSchema.Name, Reason: "rows still reference " + schema.Name + " via " + colList(fk.ChildColumns)}
		case catalog.Cascade:
			for _, childRowID := range childRowIDs {
				if err := e.deleteRow(childSchema, childRowID, visited); err != nil {
					return err
				}
			}
		case catalog.SetNull:
			for _, childRowID := range childRowIDs {
				childPayload, ok := e.heaps[childSchema.ID].get(childRowID)
				if !ok {
					continue
				}
				childValues, err := storage.DecodeRow(childPayload, len(childSchema.Columns))
				if err != nil {
					return err
				}
				updated := append([]any(nil), childValues...)
				for _, col := range fk.ChildColumns {
					updated[childSchema.ColumnIndex(col)] = nil
				}
				if err := e.updateRow(childSchema, childRowID, updated, visited); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func colList(cols []string) string {
	s := "("
	for i, c := range cols {
		if i > 0 {
			s += ", "
		}
		s += c
	}
	return s + ")"
}

// applyUndo reverts records (already in most-recent-first order) directly
// against heap/index in-memory state, without touching the WAL buffer —
// used both by statement-level auto-revert and by whole-transaction
// Rollback (spec §4.H, §5).
func (e *Engine) applyUndo(records []txn.Record) {
	for _, rec := range records {
		schema, ok := e.cat.GetTableByID(rec.Table)
		if !ok {
			continue // table itself was rolled back by an earlier (later-applied) record
		}
		h := e.heaps[rec.Table]
		idx := e.indexes[rec.Table]
		switch rec.Kind {
		case txn.Inserted:
			payload, ok := h.get(rec.RowID)
			if !ok {
				continue
			}
			values, err := storage.DecodeRow(payload, len(schema.Columns))
			if err == nil {
				idx.removeRow(schema, values, rec.RowID)
			}
			h.applyDelete(rec.RowID)
		case txn.Updated:
			newPayload, ok := h.get(rec.RowID)
			oldValues, errOld := storage.DecodeRow(rec.PrevRow, len(schema.Columns))
			if ok && errOld == nil {
				if newValues, err := storage.DecodeRow(newPayload, len(schema.Columns)); err == nil {
					idx.removeRow(schema, newValues, rec.RowID)
				}
				idx.insertRow(schema, oldValues, rec.RowID)
			}
			h.applyUpdate(rec.RowID, rec.PrevRow)
		case txn.Deleted:
			oldValues, err := storage.DecodeRow(rec.PrevRow, len(schema.Columns))
			if err == nil {
				idx.insertRow(schema, oldValues, rec.RowID)
			}
			h.applyInsert(rec.RowID, rec.PrevRow)
		}
	}
}
