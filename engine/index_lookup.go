package engine

import (
	"skepadb/catalog"
	"skepadb/storage"
)

// findRowsByKey returns every row_id in table whose projection onto cols
// equals key. It uses a matching index when one exists (spec §4.F) and
// otherwise falls back to a full heap scan, the same way the planner
// falls back to a scan for an unindexed equality predicate (spec §4.I) —
// a foreign key's child columns are not required to carry an index.
func (e *Engine) findRowsByKey(schema *catalog.TableSchema, cols []string, key []any) ([]int64, error) {
	if h := e.indexes[schema.ID].byColumns(cols); h != nil {
		return h.lookupEq(key), nil
	}
	var matches []int64
	for _, entry := range e.heaps[schema.ID].scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(schema.Columns))
		if err != nil {
			return nil, err
		}
		if storage.CompareKeys(project(schema, row, cols), key) == 0 {
			matches = append(matches, entry.RowID)
		}
	}
	return matches, nil
}
