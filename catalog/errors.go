package catalog

import "skepadb/dberr"

// TableNotFoundError is returned when a statement names a table that does
// not exist in the catalog.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string    { return "no such table: " + e.Name }
func (e *TableNotFoundError) Kind() dberr.Kind { return dberr.UnknownTable }

// TableExistsError is returned by CREATE TABLE when the name is already
// taken. There is no dedicated error kind for this; it is classified as
// DuplicateConstraint (a table name is, in effect, a unique constraint on
// the catalog namespace).
type TableExistsError struct {
	Name string
}

func (e *TableExistsError) Error() string    { return "table already exists: " + e.Name }
func (e *TableExistsError) Kind() dberr.Kind { return dberr.DuplicateConstraint }

// ColumnNotFoundError is returned when a statement names a column that does
// not exist on the table.
type ColumnNotFoundError struct {
	Table, Column string
}

func (e *ColumnNotFoundError) Error() string {
	return "no such column: " + e.Table + "." + e.Column
}
func (e *ColumnNotFoundError) Kind() dberr.Kind { return dberr.UnknownColumn }

// DuplicateConstraintError is returned when AddUnique/AddFK/CreateTable
// names a constraint that already exists in equivalent form.
type DuplicateConstraintError struct {
	Table, Reason string
}

func (e *DuplicateConstraintError) Error() string { return "duplicate constraint on " + e.Table + ": " + e.Reason }
func (e *DuplicateConstraintError) Kind() dberr.Kind { return dberr.DuplicateConstraint }

// NoSuchConstraintError is returned by DropUnique/DropFK when no matching
// constraint exists.
type NoSuchConstraintError struct {
	Table, Reason string
}

func (e *NoSuchConstraintError) Error() string    { return "no such constraint on " + e.Table + ": " + e.Reason }
func (e *NoSuchConstraintError) Kind() dberr.Kind { return dberr.NoSuchConstraint }

// UnknownIndexError is returned by DropIndex when no index matches.
type UnknownIndexError struct {
	Table, Reason string
}

func (e *UnknownIndexError) Error() string    { return "no such index on " + e.Table + ": " + e.Reason }
func (e *UnknownIndexError) Kind() dberr.Kind { return dberr.UnknownIndex }

// DuplicateIndexError is returned by CreateIndex when an index over the
// same column list already exists.
type DuplicateIndexError struct {
	Table   string
	Columns []string
}

func (e *DuplicateIndexError) Error() string { return "index already exists on " + e.Table }
func (e *DuplicateIndexError) Kind() dberr.Kind { return dberr.DuplicateIndex }

// FKParentKeyError is returned when a foreign key's parent column set is
// not covered by a primary key or unique constraint on the parent table.
type FKParentKeyError struct {
	ParentTable string
}

func (e *FKParentKeyError) Error() string {
	return "referenced columns on " + e.ParentTable + " are not a primary key or unique constraint"
}
func (e *FKParentKeyError) Kind() dberr.Kind { return dberr.NoSuchConstraint }
