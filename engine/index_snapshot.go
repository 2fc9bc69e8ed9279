package engine

import (
	"encoding/binary"
	"os"

	"skepadb/catalog"
	"skepadb/storage"
)

// writeIndexSnapshots persists every index of table to
// indexes/<table_id>/<index_id>.idx as a flat list of (key, row_ids)
// entries, encoded with the row codec for key values (spec §4.B, §4.F).
// Pairs are derived directly from a heap scan rather than by walking the
// B-tree, since indexHandle exposes lookup, not iteration. These files are
// written for on-disk fidelity; a fresh Open rebuilds indexes from the
// heap instead of reading them back — see DESIGN.md.
func (e *Engine) writeIndexSnapshots(table *catalog.TableSchema) error {
	if len(table.Indexes) == 0 {
		return nil
	}
	dir := e.pager.IndexDir(table.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &storage.IOError{Op: "mkdir index dir", Err: err}
	}

	h := e.heaps[table.ID]
	pairs := make(map[string]map[string]*keyRowIDs) // index_id -> encoded key -> entry
	for _, def := range table.Indexes {
		pairs[def.ID] = make(map[string]*keyRowIDs)
	}
	for _, entry := range h.scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
		if err != nil {
			return err
		}
		for _, def := range table.Indexes {
			key, ok := keyOf(table, def, row)
			if !ok {
				continue
			}
			enc := string(storage.EncodeRow(key))
			byKey := pairs[def.ID]
			e, ok := byKey[enc]
			if !ok {
				e = &keyRowIDs{key: key}
				byKey[enc] = e
			}
			e.rowIDs = append(e.rowIDs, entry.RowID)
		}
	}

	for _, def := range table.Indexes {
		data := storage.CompressSnapshot(encodeIndexSnapshot(pairs[def.ID]))
		path := e.pager.IndexPath(table.ID, def.ID)
		if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

type keyRowIDs struct {
	key    []any
	rowIDs []int64
}

func encodeIndexSnapshot(byKey map[string]*keyRowIDs) []byte {
	buf := make([]byte, 0, 64*len(byKey))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(byKey)))
	for _, p := range byKey {
		keyBytes := storage.EncodeRow(p.key)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keyBytes)))
		buf = append(buf, keyBytes...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.rowIDs)))
		for _, id := range p.rowIDs {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
		}
	}
	return buf
}
