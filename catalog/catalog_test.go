package catalog

import (
	"fmt"
	"testing"
)

func usersSchema(id string) *TableSchema {
	return &TableSchema{
		ID:   id,
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: Int, NotNull: true, Ordinal: 0},
			{Name: "email", Type: Text, Ordinal: 1},
		},
		PrimaryKey: &PrimaryKeyConstraint{Columns: []string{"id"}},
	}
}

func TestCreateTable_DuplicateName(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	err := c.CreateTable(usersSchema("t2"))
	if _, ok := err.(*TableExistsError); !ok {
		t.Fatalf("got %v, want *TableExistsError", err)
	}
}

func TestCreateTable_ForeignKeyRequiresParentKey(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	posts := &TableSchema{
		ID:   "t2",
		Name: "posts",
		Columns: []Column{
			{Name: "id", Type: Int, NotNull: true, Ordinal: 0},
			{Name: "author_email", Type: Text, Ordinal: 1},
		},
		PrimaryKey: &PrimaryKeyConstraint{Columns: []string{"id"}},
		ForeignKeys: []ForeignKeyConstraint{
			{ChildColumns: []string{"author_email"}, ParentTable: "users", ParentColumns: []string{"email"}},
		},
	}
	err := c.CreateTable(posts)
	if _, ok := err.(*FKParentKeyError); !ok {
		t.Fatalf("got %v, want *FKParentKeyError (email is not a key on users)", err)
	}
}

func TestCreateTable_ForeignKeyGraph(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	posts := &TableSchema{
		ID:   "t2",
		Name: "posts",
		Columns: []Column{
			{Name: "id", Type: Int, NotNull: true, Ordinal: 0},
			{Name: "author_id", Type: Int, Ordinal: 1},
		},
		PrimaryKey: &PrimaryKeyConstraint{Columns: []string{"id"}},
		ForeignKeys: []ForeignKeyConstraint{
			{ChildColumns: []string{"author_id"}, ParentTable: "users", ParentColumns: []string{"id"}, OnDelete: Cascade},
		},
	}
	if err := c.CreateTable(posts); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	fks := c.ForeignKeysOf("posts")
	if len(fks) != 1 || fks[0].ParentTable != "users" {
		t.Fatalf("ForeignKeysOf(posts) = %+v", fks)
	}
	rev := c.ReferencingTables("users")
	if len(rev) != 1 || rev[0].ChildTable != "posts" {
		t.Fatalf("ReferencingTables(users) = %+v", rev)
	}
}

func TestAddUnique_DuplicateRejected(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.AddUnique("users", []string{"email"}); err != nil {
		t.Fatalf("AddUnique: %v", err)
	}
	err := c.AddUnique("users", []string{"email"})
	if _, ok := err.(*DuplicateConstraintError); !ok {
		t.Fatalf("got %v, want *DuplicateConstraintError", err)
	}
	table, _ := c.GetTable("users")
	if len(table.Uniques) != 1 {
		t.Fatalf("Uniques = %+v, want 1 entry", table.Uniques)
	}
}

func TestSetNotNull_DropNotNull(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.SetNotNull("users", "email"); err != nil {
		t.Fatalf("SetNotNull: %v", err)
	}
	table, _ := c.GetTable("users")
	if !table.Columns[1].NotNull {
		t.Fatal("email should be NOT NULL after SetNotNull")
	}
	if err := c.DropNotNull("users", "email"); err != nil {
		t.Fatalf("DropNotNull: %v", err)
	}
	table, _ = c.GetTable("users")
	if table.Columns[1].NotNull {
		t.Fatal("email should allow NULL after DropNotNull")
	}
}

func TestDropForeignKey_SurvivesSliceReallocation(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable users: %v", err)
	}
	child := &TableSchema{
		ID:   "t3",
		Name: "child",
		Columns: []Column{
			{Name: "id", Type: Int, NotNull: true, Ordinal: 0},
			{Name: "user_id", Type: Int, Ordinal: 1},
		},
		PrimaryKey: &PrimaryKeyConstraint{Columns: []string{"id"}},
		ForeignKeys: []ForeignKeyConstraint{
			{ChildColumns: []string{"user_id"}, ParentTable: "users", ParentColumns: []string{"id"}},
		},
	}
	if err := c.CreateTable(child); err != nil {
		t.Fatalf("CreateTable child: %v", err)
	}

	// Add several more foreign keys referencing distinct parent tables, to
	// force child.ForeignKeys' backing array to grow (and likely
	// reallocate) past whatever capacity it started with.
	for i := 0; i < 8; i++ {
		parent := &TableSchema{
			ID:   fmt.Sprintf("other%d", i),
			Name: fmt.Sprintf("other%d", i),
			Columns: []Column{
				{Name: "id", Type: Int, NotNull: true, Ordinal: 0},
			},
			PrimaryKey: &PrimaryKeyConstraint{Columns: []string{"id"}},
		}
		if err := c.CreateTable(parent); err != nil {
			t.Fatalf("CreateTable %s: %v", parent.Name, err)
		}
		if err := c.AddForeignKey("child", ForeignKeyConstraint{
			ChildColumns: []string{"user_id"}, ParentTable: parent.Name, ParentColumns: []string{"id"},
		}); err != nil {
			t.Fatalf("AddForeignKey to %s: %v", parent.Name, err)
		}
	}

	if err := c.DropForeignKey("child", []string{"user_id"}, "users"); err != nil {
		t.Fatalf("DropForeignKey: %v", err)
	}

	rev := c.ReferencingTables("users")
	if len(rev) != 0 {
		t.Fatalf("ReferencingTables(users) = %+v, want none after drop", rev)
	}
	fwd := c.ForeignKeysOf("child")
	for _, fk := range fwd {
		if fk.ParentTable == "users" {
			t.Fatalf("ForeignKeysOf(child) still lists the dropped FK: %+v", fwd)
		}
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	c := New()
	if err := c.CreateTable(usersSchema("t1")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	data := c.Snapshot()
	reloaded, err := LoadSnapshot(data)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	table, err := reloaded.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable after reload: %v", err)
	}
	if len(table.Columns) != 2 || table.PrimaryKey == nil {
		t.Fatalf("reloaded table = %+v", table)
	}
}
