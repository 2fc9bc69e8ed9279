package engine

import (
	"fmt"

	"skepadb/dberr"
)

// NotNullViolationError is returned when a row would leave a NOT NULL
// column holding NULL.
type NotNullViolationError struct {
	Table, Column string
}

func (e *NotNullViolationError) Error() string {
	return "NOT NULL violation: " + e.Table + "." + e.Column
}
func (e *NotNullViolationError) Kind() dberr.Kind { return dberr.NotNullViolation }

// UniqueViolationError is returned when a PRIMARY KEY or UNIQUE constraint
// would be violated.
type UniqueViolationError struct {
	Table   string
	Columns []string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("UNIQUE violation on %s%v", e.Table, e.Columns)
}
func (e *UniqueViolationError) Kind() dberr.Kind { return dberr.UniqueViolation }

// ForeignKeyViolationError is returned when an insert/update/delete would
// leave a foreign key referencing a non-existent parent row, or when a
// Restrict/NoAction cascade blocks the operation.
type ForeignKeyViolationError struct {
	Table, Reason string
}

func (e *ForeignKeyViolationError) Error() string {
	return "FOREIGN KEY violation on " + e.Table + ": " + e.Reason
}
func (e *ForeignKeyViolationError) Kind() dberr.Kind { return dberr.ForeignKeyViolation }

// TypeErrorError is returned when a value's runtime type does not match its
// column's declared type, in a write or in a WHERE predicate.
type TypeErrorError struct {
	Context string
}

func (e *TypeErrorError) Error() string    { return "type error: " + e.Context }
func (e *TypeErrorError) Kind() dberr.Kind { return dberr.TypeError }

// ArityMismatchError is returned when an INSERT supplies the wrong number
// of values for a table's column count.
type ArityMismatchError struct {
	Table          string
	Got, Want      int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("arity mismatch on %s: got %d values, want %d", e.Table, e.Got, e.Want)
}
func (e *ArityMismatchError) Kind() dberr.Kind { return dberr.ArityMismatch }

// InternalError indicates a broken invariant — a programmer bug rather
// than a user-correctable condition. It is returned like any other
// statement error: the failing statement's effects are unwound, and the
// engine does not block later writes after one.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string    { return "internal error: " + e.Reason }
func (e *InternalError) Kind() dberr.Kind { return dberr.Internal }
