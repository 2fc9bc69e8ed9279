package engine

import (
	"sort"
	"strings"

	"skepadb/diag"
)

// IndexStat reports one index's live in-memory footprint.
type IndexStat struct {
	Name  string
	Kind  string
	Bytes int64
}

// TableStat reports one table's heap footprint plus each of its indexes.
type TableStat struct {
	Table     string
	HeapBytes int64
	Indexes   []IndexStat
}

// Stats returns a deep memory accounting of every table's heap and index
// state, computed via reflection over the live Go values rather than
// tracked counters.
func (e *Engine) Stats() []TableStat {
	stats := make([]TableStat, 0, len(e.heaps))
	for tableID, h := range e.heaps {
		table, ok := e.cat.GetTableByID(tableID)
		if !ok {
			continue
		}
		ts := TableStat{Table: table.Name, HeapBytes: diag.Footprint(h.rows)}
		if idx := e.indexes[tableID]; idx != nil {
			for _, def := range table.Indexes {
				handle, ok := idx.byID[def.ID]
				if !ok {
					continue
				}
				var bytes int64
				if handle.bt != nil {
					bytes = diag.Footprint(handle.bt)
				} else {
					bytes = diag.Footprint(handle.multi)
				}
				ts.Indexes = append(ts.Indexes, IndexStat{
					Name:  strings.Join(def.Columns, ","),
					Kind:  def.Kind.String(),
					Bytes: bytes,
				})
			}
		}
		stats = append(stats, ts)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Table < stats[j].Table })
	return stats
}
