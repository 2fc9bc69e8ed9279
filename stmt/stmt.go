// Package stmt defines the abstract statement shapes the parser hands to
// the engine (spec §6). It carries no behavior — just the data a
// tokenizer/parser produces and the engine consumes.
package stmt

import "skepadb/catalog"

// ColumnDef is one column in a CreateTable statement.
type ColumnDef struct {
	Name    string
	Type    catalog.DataType
	NotNull bool
}

// ForeignKeySpec is a foreign key as written in a CreateTable or AddFK.
type ForeignKeySpec struct {
	ChildColumns  []string
	ParentTable   string
	ParentColumns []string
	OnDelete      catalog.Action
	OnUpdate      catalog.Action
}

// CreateTable creates a new table.
type CreateTable struct {
	Name          string
	Columns       []ColumnDef
	PrimaryKey    []string // nil if none
	Uniques       [][]string
	ForeignKeys   []ForeignKeySpec
}

// AlterOp identifies which ALTER TABLE operation is being requested.
type AlterOp uint8

const (
	AddUnique AlterOp = iota
	DropUnique
	AddFK
	DropFK
	SetNotNull
	DropNotNull
)

// AlterTable changes one table's constraints. Which fields are populated
// depends on Op: AddUnique/DropUnique use Columns; AddFK uses FK;
// DropFK uses Columns/ParentTable/ParentColumns; SetNotNull/DropNotNull use Column.
type AlterTable struct {
	Table         string
	Op            AlterOp
	Columns       []string
	FK            ForeignKeySpec
	ParentTable   string
	ParentColumns []string
	Column        string
}

// CreateIndex defines a secondary index over one or more columns.
type CreateIndex struct {
	Table   string
	Columns []string
}

// DropIndex removes a secondary index by its column list.
type DropIndex struct {
	Table   string
	Columns []string
}

// Insert inserts one row of positional values into table, in declaration order.
type Insert struct {
	Table  string
	Values []any
}

// Assignment is one `col = value` pair in an UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// Op is a predicate comparison operator.
type Op uint8

const (
	Eq Op = iota
	Gt
	Lt
	Gte
	Lte
	Like
)

// Predicate is a single `col op value` WHERE clause. Compound WHERE is out
// of scope (spec §1); a nil Predicate or Column == "" means no predicate
// (match every row).
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

func (p *Predicate) IsZero() bool { return p == nil || p.Column == "" }

// Update modifies rows matching Where.
type Update struct {
	Table       string
	Assignments []Assignment
	Where       *Predicate
}

// Delete removes rows matching Where.
type Delete struct {
	Table string
	Where *Predicate
}

// SortDir is an ORDER BY direction.
type SortDir uint8

const (
	Asc SortDir = iota
	Desc
)

// OrderBy is an optional `order by col [asc|desc]` clause.
type OrderBy struct {
	Column string
	Dir    SortDir
}

// Select reads rows from Table. Projection == nil means `*`.
type Select struct {
	Table      string
	Projection []string
	Where      *Predicate
	OrderBy    *OrderBy
	Limit      *int
}

// Begin, Commit, Rollback carry no data; they are distinguished by type in
// the executor's statement switch.
type Begin struct{}
type Commit struct{}
type Rollback struct{}
