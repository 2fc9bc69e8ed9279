package catalog

import "sort"

// ReverseFK records one inbound reference for the FK graph: childTable has a
// foreign key (FK) pointing at the table being indexed under.
type ReverseFK struct {
	ChildTable string
	FK         ForeignKeyConstraint
}

// Catalog holds every table's schema in memory, keyed by name and by id, plus
// the bidirectional foreign-key graph used for cascade walks (spec §4.D,
// §4.G). It has no notion of persistence; storage.Pager and catalog.Snapshot
// own on-disk representation.
type Catalog struct {
	byName map[string]*TableSchema
	byID   map[string]*TableSchema

	// fkForward[child] lists the FKs declared on child, pointing outward.
	// Stored by value (not as pointers into TableSchema.ForeignKeys) since
	// that slice is append-growable and can reallocate out from under any
	// pointer taken into it; see unlinkForeignKey.
	fkForward map[string][]ForeignKeyConstraint
	// fkReverse[parent] lists every FK elsewhere that references parent.
	fkReverse map[string][]ReverseFK
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		byName:    make(map[string]*TableSchema),
		byID:      make(map[string]*TableSchema),
		fkForward: make(map[string][]ForeignKeyConstraint),
		fkReverse: make(map[string][]ReverseFK),
	}
}

// GetTable looks up a table by name.
func (c *Catalog) GetTable(name string) (*TableSchema, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, &TableNotFoundError{Name: name}
	}
	return t, nil
}

// GetTableByID looks up a table by its stable id.
func (c *Catalog) GetTableByID(id string) (*TableSchema, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ListTables returns every table, sorted by name for deterministic output.
func (c *Catalog) ListTables() []*TableSchema {
	out := make([]*TableSchema, 0, len(c.byName))
	for _, t := range c.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateTable registers a new table schema. id must already be minted by the
// caller (storage.NewTableID); column ordinals must already be assigned
// 0..n-1 in declaration order. Foreign keys are validated against their
// parent table's primary key or a unique constraint with the same column
// list, and recorded into the FK graph.
func (c *Catalog) CreateTable(schema *TableSchema) error {
	if _, exists := c.byName[schema.Name]; exists {
		return &TableExistsError{Name: schema.Name}
	}
	for _, fk := range schema.ForeignKeys {
		if err := c.validateForeignKey(schema.Name, &fk); err != nil {
			return err
		}
	}

	c.byName[schema.Name] = schema
	c.byID[schema.ID] = schema
	for _, fk := range schema.ForeignKeys {
		c.linkForeignKey(schema.Name, fk)
	}
	return nil
}

// validateForeignKey checks that fk.ParentColumns exactly matches the parent
// table's primary key or one of its unique constraints (spec §3: "the
// referenced columns on the parent must be covered by a primary key or
// unique constraint").
func (c *Catalog) validateForeignKey(childName string, fk *ForeignKeyConstraint) error {
	parent, err := c.GetTable(fk.ParentTable)
	if err != nil {
		return err
	}
	if parent.PrimaryKey != nil && SameColumns(parent.PrimaryKey.Columns, fk.ParentColumns) {
		return nil
	}
	for _, u := range parent.Uniques {
		if SameColumns(u.Columns, fk.ParentColumns) {
			return nil
		}
	}
	return &FKParentKeyError{ParentTable: fk.ParentTable}
}

func (c *Catalog) linkForeignKey(childName string, fk ForeignKeyConstraint) {
	c.fkForward[childName] = append(c.fkForward[childName], fk)
	c.fkReverse[fk.ParentTable] = append(c.fkReverse[fk.ParentTable], ReverseFK{ChildTable: childName, FK: fk})
}

// unlinkForeignKey removes the forward/reverse graph entries matching fk by
// value (child columns + parent table uniquely identify one FK on a table,
// the same criterion DropForeignKey itself matches on), not by pointer
// identity — t.ForeignKeys is an append-growable slice that can reallocate,
// which would strand any pointer captured by an earlier linkForeignKey call.
func (c *Catalog) unlinkForeignKey(childName string, fk ForeignKeyConstraint) {
	fwd := c.fkForward[childName]
	for i, f := range fwd {
		if SameColumns(f.ChildColumns, fk.ChildColumns) && f.ParentTable == fk.ParentTable {
			c.fkForward[childName] = append(fwd[:i], fwd[i+1:]...)
			break
		}
	}
	rev := c.fkReverse[fk.ParentTable]
	for i, r := range rev {
		if r.ChildTable == childName && SameColumns(r.FK.ChildColumns, fk.ChildColumns) && r.FK.ParentTable == fk.ParentTable {
			c.fkReverse[fk.ParentTable] = append(rev[:i], rev[i+1:]...)
			break
		}
	}
}

// ForeignKeysOf returns the foreign keys declared on table (outgoing edges).
func (c *Catalog) ForeignKeysOf(table string) []ForeignKeyConstraint {
	return c.fkForward[table]
}

// ReferencingTables returns every foreign key elsewhere that references
// table (incoming edges), used to walk cascades on delete/update.
func (c *Catalog) ReferencingTables(table string) []ReverseFK {
	return c.fkReverse[table]
}

// AddUnique records a new unique constraint on table. The caller (the
// engine's constraint layer) is responsible for scanning existing rows for
// violations before calling this — the catalog only tracks metadata.
func (c *Catalog) AddUnique(table string, columns []string) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	for _, u := range t.Uniques {
		if SameColumns(u.Columns, columns) {
			return &DuplicateConstraintError{Table: table, Reason: "unique constraint already exists on these columns"}
		}
	}
	t.Uniques = append(t.Uniques, UniqueConstraint{Columns: columns})
	return nil
}

// DropUnique removes a unique constraint matching columns exactly.
func (c *Catalog) DropUnique(table string, columns []string) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	for i, u := range t.Uniques {
		if SameColumns(u.Columns, columns) {
			t.Uniques = append(t.Uniques[:i], t.Uniques[i+1:]...)
			return nil
		}
	}
	return &NoSuchConstraintError{Table: table, Reason: "no unique constraint on these columns"}
}

// AddForeignKey records a new foreign key on table, after validating its
// parent key coverage. The caller must have already validated existing rows.
func (c *Catalog) AddForeignKey(table string, fk ForeignKeyConstraint) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	if err := c.validateForeignKey(table, &fk); err != nil {
		return err
	}
	for _, existing := range t.ForeignKeys {
		if SameColumns(existing.ChildColumns, fk.ChildColumns) && existing.ParentTable == fk.ParentTable {
			return &DuplicateConstraintError{Table: table, Reason: "foreign key already exists on these columns"}
		}
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
	c.linkForeignKey(table, fk)
	return nil
}

// DropForeignKey removes a foreign key matching its child column list and
// parent table.
func (c *Catalog) DropForeignKey(table string, childColumns []string, parentTable string) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	for i, fk := range t.ForeignKeys {
		if SameColumns(fk.ChildColumns, childColumns) && fk.ParentTable == parentTable {
			c.unlinkForeignKey(table, fk)
			t.ForeignKeys = append(t.ForeignKeys[:i], t.ForeignKeys[i+1:]...)
			return nil
		}
	}
	return &NoSuchConstraintError{Table: table, Reason: "no foreign key on these columns"}
}

// SetNotNull marks a column NOT NULL. The caller must have already verified
// no existing row holds NULL in that column.
func (c *Catalog) SetNotNull(table, column string) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	for i := range t.Columns {
		if t.Columns[i].Name == column {
			t.Columns[i].NotNull = true
			return nil
		}
	}
	return &ColumnNotFoundError{Table: table, Column: column}
}

// DropNotNull clears a column's NOT NULL flag. Refused when the column is
// part of the primary key (spec §3: PK columns are implicitly NOT NULL).
func (c *Catalog) DropNotNull(table, column string) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	if t.PrimaryKey != nil {
		for _, pc := range t.PrimaryKey.Columns {
			if pc == column {
				return &DuplicateConstraintError{Table: table, Reason: "cannot drop NOT NULL on a primary key column"}
			}
		}
	}
	for i := range t.Columns {
		if t.Columns[i].Name == column {
			t.Columns[i].NotNull = false
			return nil
		}
	}
	return &ColumnNotFoundError{Table: table, Column: column}
}

// CreateIndex registers a new secondary index definition. The caller builds
// the actual index.BTree and populates it from existing rows; the catalog
// only tracks the definition. id must already be minted by storage.NewIndexID.
func (c *Catalog) CreateIndex(table, id string, columns []string, kind IndexKind) error {
	t, err := c.GetTable(table)
	if err != nil {
		return err
	}
	for _, idx := range t.Indexes {
		if SameColumns(idx.Columns, columns) {
			return &DuplicateIndexError{Table: table, Columns: columns}
		}
	}
	t.Indexes = append(t.Indexes, IndexDef{ID: id, Columns: columns, Kind: kind})
	return nil
}

// DropIndex removes a secondary index definition by column list. Primary
// key and unique-backing indexes are not droppable through this path.
func (c *Catalog) DropIndex(table string, columns []string) (IndexDef, error) {
	t, err := c.GetTable(table)
	if err != nil {
		return IndexDef{}, err
	}
	for i, idx := range t.Indexes {
		if SameColumns(idx.Columns, columns) && idx.Kind == SecondaryIndex {
			t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
			return idx, nil
		}
	}
	return IndexDef{}, &UnknownIndexError{Table: table, Reason: "no secondary index on these columns"}
}
