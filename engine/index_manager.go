package engine

import (
	"skepadb/catalog"
	"skepadb/storage"
	"skepadb/storage/index"
)

// indexHandle binds a catalog.IndexDef to its live in-memory structure. A
// PrimaryKey or Unique index is backed by a BTree (cardinality ≤ 1 per
// key); a Secondary index by a MultiBTree. Keys are always []any tuples —
// even single-column indexes — compared with storage.CompareKeys, so one
// code path covers composite and simple keys alike (spec §4.F).
type indexHandle struct {
	def   catalog.IndexDef
	bt    *index.BTree
	multi *index.MultiBTree
}

func keyCmp(a, b any) int {
	return storage.CompareKeys(a.([]any), b.([]any))
}

func newIndexHandle(def catalog.IndexDef) *indexHandle {
	h := &indexHandle{def: def}
	if def.Kind == catalog.SecondaryIndex {
		h.multi = index.NewMultiBTree(keyCmp)
	} else {
		h.bt = index.NewBTree(keyCmp)
	}
	return h
}

// keyOf projects row onto the index's columns, returning (key, ok). ok is
// false if any projected value is NULL — such rows are excluded from the
// index entirely (spec §3, §4.F).
func keyOf(schema *catalog.TableSchema, def catalog.IndexDef, row []any) ([]any, bool) {
	key := make([]any, len(def.Columns))
	for i, col := range def.Columns {
		ord := schema.ColumnIndex(col)
		v := row[ord]
		if v == nil {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

// insert adds row's projection under rowID. For Unique/PrimaryKey it fails
// UniqueViolation only if the key already maps to a *different* row — the
// same row_id reinserting its own key (e.g. an update that didn't change
// the key) is not an error.
func (h *indexHandle) insert(schema *catalog.TableSchema, row []any, rowID int64) error {
	key, ok := keyOf(schema, h.def, row)
	if !ok {
		return nil
	}
	if h.def.Kind == catalog.SecondaryIndex {
		h.multi.Put(key, rowID)
		return nil
	}
	if existing, found := h.bt.Get(key); found {
		if existing == rowID {
			return nil
		}
		return &UniqueViolationError{Table: schema.Name, Columns: h.def.Columns}
	}
	h.bt.Put(key, rowID)
	return nil
}

// remove undoes insert for the same (row, rowID) pair. A no-op if the row
// was NULL-skipped.
func (h *indexHandle) remove(schema *catalog.TableSchema, row []any, rowID int64) {
	key, ok := keyOf(schema, h.def, row)
	if !ok {
		return
	}
	if h.def.Kind == catalog.SecondaryIndex {
		h.multi.Delete(key, rowID)
		return
	}
	h.bt.Delete(key)
}

// lookupEq returns every row_id whose projection equals key.
func (h *indexHandle) lookupEq(key []any) []int64 {
	if h.def.Kind == catalog.SecondaryIndex {
		return h.multi.GetAll(key)
	}
	if rowID, ok := h.bt.Get(key); ok {
		return []int64{rowID}
	}
	return nil
}

// indexSet holds every index handle for one table, keyed by the index_id.
type indexSet struct {
	byID map[string]*indexHandle
}

func newIndexSet() *indexSet { return &indexSet{byID: make(map[string]*indexHandle)} }

func (s *indexSet) add(def catalog.IndexDef) *indexHandle {
	h := newIndexHandle(def)
	s.byID[def.ID] = h
	return h
}

func (s *indexSet) remove(id string) { delete(s.byID, id) }

func (s *indexSet) insertRow(schema *catalog.TableSchema, row []any, rowID int64) error {
	inserted := make([]*indexHandle, 0, len(s.byID))
	for _, h := range s.byID {
		if err := h.insert(schema, row, rowID); err != nil {
			for _, done := range inserted {
				done.remove(schema, row, rowID)
			}
			return err
		}
		inserted = append(inserted, h)
	}
	return nil
}

func (s *indexSet) removeRow(schema *catalog.TableSchema, row []any, rowID int64) {
	for _, h := range s.byID {
		h.remove(schema, row, rowID)
	}
}

// byColumns finds the index (if any) whose column list is exactly
// cols, for planner equality lookups (spec §4.I).
func (s *indexSet) byColumns(cols []string) *indexHandle {
	for _, h := range s.byID {
		if catalog.SameColumns(h.def.Columns, cols) {
			return h
		}
	}
	return nil
}
