package engine

import (
	"skepadb/catalog"
	"skepadb/storage"
	"skepadb/stmt"
)

// ExecuteCreateTable implements CREATE TABLE (spec §6, §4.D).
func (e *Engine) ExecuteCreateTable(ct stmt.CreateTable) (Result, error) {
	if err := e.txns.RequireDDLAllowed(); err != nil {
		return Result{}, err
	}

	pkSet := make(map[string]bool, len(ct.PrimaryKey))
	for _, c := range ct.PrimaryKey {
		pkSet[c] = true
	}

	schema := &catalog.TableSchema{
		ID:   storage.NewTableID(),
		Name: ct.Name,
	}
	for i, cd := range ct.Columns {
		schema.Columns = append(schema.Columns, catalog.Column{
			Name:    cd.Name,
			Type:    cd.Type,
			NotNull: cd.NotNull || pkSet[cd.Name],
			Ordinal: i,
		})
	}
	if len(ct.PrimaryKey) > 0 {
		schema.PrimaryKey = &catalog.PrimaryKeyConstraint{Columns: ct.PrimaryKey}
		schema.Indexes = append(schema.Indexes, catalog.IndexDef{
			ID: storage.NewIndexID(), Columns: ct.PrimaryKey, Kind: catalog.PrimaryKeyIndex,
		})
	}
	for _, u := range ct.Uniques {
		schema.Uniques = append(schema.Uniques, catalog.UniqueConstraint{Columns: u})
		schema.Indexes = append(schema.Indexes, catalog.IndexDef{
			ID: storage.NewIndexID(), Columns: u, Kind: catalog.UniqueIndex,
		})
	}
	for _, fk := range ct.ForeignKeys {
		schema.ForeignKeys = append(schema.ForeignKeys, catalog.ForeignKeyConstraint{
			ChildColumns: fk.ChildColumns, ParentTable: fk.ParentTable,
			ParentColumns: fk.ParentColumns, OnDelete: fk.OnDelete, OnUpdate: fk.OnUpdate,
		})
	}

	if err := e.cat.CreateTable(schema); err != nil {
		return Result{}, err
	}

	h, err := openHeap(e.pager, schema.ID)
	if err != nil {
		return Result{}, err
	}
	e.heaps[schema.ID] = h
	idxSet := newIndexSet()
	for _, def := range schema.Indexes {
		idxSet.add(def)
	}
	e.indexes[schema.ID] = idxSet

	return e.commitDDL()
}

// ExecuteCreateIndex implements CREATE INDEX, back-filling from existing
// rows. A plain CREATE INDEX always makes a Secondary index (spec §6),
// which accepts repeated keys, so the back-fill never fails on duplicates.
func (e *Engine) ExecuteCreateIndex(ci stmt.CreateIndex) (Result, error) {
	if err := e.txns.RequireDDLAllowed(); err != nil {
		return Result{}, err
	}
	table, err := e.cat.GetTable(ci.Table)
	if err != nil {
		return Result{}, err
	}

	id := storage.NewIndexID()
	def := catalog.IndexDef{ID: id, Columns: ci.Columns, Kind: catalog.SecondaryIndex}
	handle := newIndexHandle(def)
	for _, entry := range e.heaps[table.ID].scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
		if err != nil {
			return Result{}, err
		}
		if err := handle.insert(table, row, entry.RowID); err != nil {
			return Result{}, err
		}
	}

	if err := e.cat.CreateIndex(ci.Table, id, ci.Columns, catalog.SecondaryIndex); err != nil {
		return Result{}, err
	}
	e.indexes[table.ID].byID[id] = handle

	return e.commitDDL()
}

// ExecuteDropIndex implements DROP INDEX.
func (e *Engine) ExecuteDropIndex(di stmt.DropIndex) (Result, error) {
	if err := e.txns.RequireDDLAllowed(); err != nil {
		return Result{}, err
	}
	table, err := e.cat.GetTable(di.Table)
	if err != nil {
		return Result{}, err
	}
	def, err := e.cat.DropIndex(di.Table, di.Columns)
	if err != nil {
		return Result{}, err
	}
	e.indexes[table.ID].remove(def.ID)
	return e.commitDDL()
}

// ExecuteAlterTable implements every ALTER TABLE op (spec §6, §4.G
// "Validation on ALTER"): add unique / add foreign key / set not null
// scan the table first and fail before any catalog change if an existing
// row would violate the new constraint.
func (e *Engine) ExecuteAlterTable(at stmt.AlterTable) (Result, error) {
	if err := e.txns.RequireDDLAllowed(); err != nil {
		return Result{}, err
	}
	table, err := e.cat.GetTable(at.Table)
	if err != nil {
		return Result{}, err
	}

	switch at.Op {
	case stmt.AddUnique:
		if err := e.validateNewUnique(table, at.Columns); err != nil {
			return Result{}, err
		}
		if err := e.cat.AddUnique(at.Table, at.Columns); err != nil {
			return Result{}, err
		}
		def := catalog.IndexDef{ID: storage.NewIndexID(), Columns: at.Columns, Kind: catalog.UniqueIndex}
		table.Indexes = append(table.Indexes, def)
		handle := e.indexes[table.ID].add(def)
		for _, entry := range e.heaps[table.ID].scanOrdered() {
			row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
			if err != nil {
				return Result{}, err
			}
			_ = handle.insert(table, row, entry.RowID)
		}

	case stmt.DropUnique:
		if err := e.cat.DropUnique(at.Table, at.Columns); err != nil {
			return Result{}, err
		}
		for i, def := range table.Indexes {
			if def.Kind == catalog.UniqueIndex && catalog.SameColumns(def.Columns, at.Columns) {
				e.indexes[table.ID].remove(def.ID)
				table.Indexes = append(table.Indexes[:i], table.Indexes[i+1:]...)
				break
			}
		}

	case stmt.AddFK:
		if err := e.validateNewForeignKey(table, at.FK); err != nil {
			return Result{}, err
		}
		if err := e.cat.AddForeignKey(at.Table, catalog.ForeignKeyConstraint{
			ChildColumns: at.FK.ChildColumns, ParentTable: at.FK.ParentTable,
			ParentColumns: at.FK.ParentColumns, OnDelete: at.FK.OnDelete, OnUpdate: at.FK.OnUpdate,
		}); err != nil {
			return Result{}, err
		}

	case stmt.DropFK:
		if err := e.cat.DropForeignKey(at.Table, at.Columns, at.ParentTable); err != nil {
			return Result{}, err
		}

	case stmt.SetNotNull:
		if err := e.validateNewNotNull(table, at.Column); err != nil {
			return Result{}, err
		}
		if err := e.cat.SetNotNull(at.Table, at.Column); err != nil {
			return Result{}, err
		}

	case stmt.DropNotNull:
		if err := e.cat.DropNotNull(at.Table, at.Column); err != nil {
			return Result{}, err
		}
	}

	return e.commitDDL()
}

// validateNewUnique fails UniqueViolation if any two NULL-free rows
// already collide on columns.
func (e *Engine) validateNewUnique(table *catalog.TableSchema, columns []string) error {
	seen := make(map[string]bool)
	for _, entry := range e.heaps[table.ID].scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
		if err != nil {
			return err
		}
		key := project(table, row, columns)
		if !nullFree(key) {
			continue
		}
		enc := string(storage.EncodeRow(key))
		if seen[enc] {
			return &UniqueViolationError{Table: table.Name, Columns: columns}
		}
		seen[enc] = true
	}
	return nil
}

// validateNewForeignKey fails ForeignKeyViolation if any existing
// NULL-free child row has no matching parent.
func (e *Engine) validateNewForeignKey(table *catalog.TableSchema, fk stmt.ForeignKeySpec) error {
	parent, err := e.cat.GetTable(fk.ParentTable)
	if err != nil {
		return err
	}
	for _, entry := range e.heaps[table.ID].scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
		if err != nil {
			return err
		}
		key := project(table, row, fk.ChildColumns)
		if !nullFree(key) {
			continue
		}
		matches, err := e.findRowsByKey(parent, fk.ParentColumns, key)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return &ForeignKeyViolationError{Table: table.Name, Reason: "existing row has no matching parent in " + fk.ParentTable}
		}
	}
	return nil
}

// validateNewNotNull fails NotNullViolation if any existing row holds NULL
// in column.
func (e *Engine) validateNewNotNull(table *catalog.TableSchema, column string) error {
	ord := table.ColumnIndex(column)
	for _, entry := range e.heaps[table.ID].scanOrdered() {
		row, err := storage.DecodeRow(entry.Payload, len(table.Columns))
		if err != nil {
			return err
		}
		if row[ord] == nil {
			return &NotNullViolationError{Table: table.Name, Column: column}
		}
	}
	return nil
}

// commitDDL stages the post-change catalog snapshot and commits the
// single-statement transaction every DDL operation runs as.
func (e *Engine) commitDDL() (Result, error) {
	e.txns.EnsureAutoOpen()
	e.txns.Pending().StageCatalogChange(e.cat.Snapshot())
	e.catalogDirty = true
	if err := e.commitCurrent(); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}
