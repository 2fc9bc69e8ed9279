package catalog

import (
	"encoding/binary"
	"fmt"
)

// Snapshot encodes the full catalog state into a flat binary form, written
// by the storage layer via storage.WriteFileAtomic after snappy compression
// (spec §4.B: the catalog file is a compressed snapshot, not a log). The
// format is deliberately simple — no varints, no schema versioning beyond a
// leading format byte — matched to the small size of a catalog relative to
// table data.
const snapshotFormatVersion = 1

func (c *Catalog) Snapshot() []byte {
	buf := make([]byte, 0, 4096)
	buf = append(buf, snapshotFormatVersion)

	tables := c.ListTables()
	buf = appendU32(buf, uint32(len(tables)))
	for _, t := range tables {
		buf = appendTable(buf, t)
	}
	return buf
}

// LoadSnapshot returns a new catalog built from what data decodes to.
// Used once at startup before WAL replay.
func LoadSnapshot(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return New(), nil
	}
	r := &reader{buf: data}
	version := r.byte()
	if version != snapshotFormatVersion {
		return nil, fmt.Errorf("catalog snapshot: unsupported format version %d", version)
	}

	c := New()
	n := r.u32()
	for i := uint32(0); i < n; i++ {
		t, err := readTable(r)
		if err != nil {
			return nil, err
		}
		c.byName[t.Name] = t
		c.byID[t.ID] = t
	}
	// Foreign keys are re-linked in a second pass once every table exists,
	// since a child table's FK may have been written before its parent.
	for _, t := range c.byName {
		for _, fk := range t.ForeignKeys {
			c.linkForeignKey(t.Name, fk)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func appendTable(buf []byte, t *TableSchema) []byte {
	buf = appendString(buf, t.ID)
	buf = appendString(buf, t.Name)

	buf = appendU32(buf, uint32(len(t.Columns)))
	for _, col := range t.Columns {
		buf = appendString(buf, col.Name)
		buf = append(buf, byte(col.Type))
		buf = appendBool(buf, col.NotNull)
		buf = appendU32(buf, uint32(col.Ordinal))
	}

	if t.PrimaryKey == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = appendStringSlice(buf, t.PrimaryKey.Columns)
	}

	buf = appendU32(buf, uint32(len(t.Uniques)))
	for _, u := range t.Uniques {
		buf = appendStringSlice(buf, u.Columns)
	}

	buf = appendU32(buf, uint32(len(t.ForeignKeys)))
	for _, fk := range t.ForeignKeys {
		buf = appendStringSlice(buf, fk.ChildColumns)
		buf = appendString(buf, fk.ParentTable)
		buf = appendStringSlice(buf, fk.ParentColumns)
		buf = append(buf, byte(fk.OnDelete))
		buf = append(buf, byte(fk.OnUpdate))
	}

	buf = appendU32(buf, uint32(len(t.Indexes)))
	for _, idx := range t.Indexes {
		buf = appendString(buf, idx.ID)
		buf = appendStringSlice(buf, idx.Columns)
		buf = append(buf, byte(idx.Kind))
	}

	return buf
}

func readTable(r *reader) (*TableSchema, error) {
	t := &TableSchema{}
	t.ID = r.string()
	t.Name = r.string()

	nCols := r.u32()
	t.Columns = make([]Column, nCols)
	for i := range t.Columns {
		t.Columns[i] = Column{
			Name:    r.string(),
			Type:    DataType(r.byte()),
			NotNull: r.boolean(),
			Ordinal: int(r.u32()),
		}
	}

	if r.byte() == 1 {
		t.PrimaryKey = &PrimaryKeyConstraint{Columns: r.stringSlice()}
	}

	nUniques := r.u32()
	t.Uniques = make([]UniqueConstraint, nUniques)
	for i := range t.Uniques {
		t.Uniques[i] = UniqueConstraint{Columns: r.stringSlice()}
	}

	nFKs := r.u32()
	t.ForeignKeys = make([]ForeignKeyConstraint, nFKs)
	for i := range t.ForeignKeys {
		t.ForeignKeys[i] = ForeignKeyConstraint{
			ChildColumns:  r.stringSlice(),
			ParentTable:   r.string(),
			ParentColumns: r.stringSlice(),
			OnDelete:      Action(r.byte()),
			OnUpdate:      Action(r.byte()),
		}
	}

	nIdx := r.u32()
	t.Indexes = make([]IndexDef, nIdx)
	for i := range t.Indexes {
		t.Indexes[i] = IndexDef{
			ID:      r.string(),
			Columns: r.stringSlice(),
			Kind:    IndexKind(r.byte()),
		}
	}

	return t, r.err
}

// --- low-level scalar encode/decode helpers ---

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendStringSlice(buf []byte, ss []string) []byte {
	buf = appendU32(buf, uint32(len(ss)))
	for _, s := range ss {
		buf = appendString(buf, s)
	}
	return buf
}

// reader walks buf sequentially, recording the first out-of-bounds access
// instead of panicking so a truncated snapshot surfaces as an error.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("catalog snapshot: truncated at offset %d", r.pos)
		return false
	}
	return true
}

func (r *reader) byte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) boolean() bool { return r.byte() != 0 }

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) string() string {
	n := int(r.u32())
	if !r.need(n) {
		return ""
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *reader) stringSlice() []string {
	n := int(r.u32())
	out := make([]string, n)
	for i := range out {
		out[i] = r.string()
	}
	return out
}
