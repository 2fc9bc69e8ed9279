package engine

import (
	"path/filepath"
	"testing"

	"skepadb/catalog"
	"skepadb/stmt"
)

func tempDataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	return dir
}

func openEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func mustExec(t *testing.T, e *Engine, s any) Result {
	t.Helper()
	r, err := e.Execute(s)
	if err != nil {
		t.Fatalf("Execute(%#v): %v", s, err)
	}
	return r
}

func createUsers(t *testing.T, e *Engine) {
	t.Helper()
	mustExec(t, e, stmt.CreateTable{
		Name: "users",
		Columns: []stmt.ColumnDef{
			{Name: "id", Type: catalog.Int, NotNull: true},
			{Name: "name", Type: catalog.Text},
		},
		PrimaryKey: []string{"id"},
	})
}

func TestInsertSelect_RoundTrip(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)

	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(2), "bob"}})

	r := mustExec(t, e, stmt.Select{Table: "users"})
	if len(r.Rows) != 2 {
		t.Fatalf("Rows = %+v, want 2 rows", r.Rows)
	}
}

func TestInsert_PrimaryKeyUniqueness(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)

	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	_, err := e.Execute(stmt.Insert{Table: "users", Values: []any{int64(1), "alice2"}})
	if _, ok := err.(*UniqueViolationError); !ok {
		t.Fatalf("got %v, want *UniqueViolationError", err)
	}
}

func TestInsert_NotNullViolation(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)

	_, err := e.Execute(stmt.Insert{Table: "users", Values: []any{nil, "alice"}})
	if _, ok := err.(*NotNullViolationError); !ok {
		t.Fatalf("got %v, want *NotNullViolationError", err)
	}
}

func TestRollback_UndoesInserts(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)

	mustExec(t, e, stmt.Begin{})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Rollback{})

	r := mustExec(t, e, stmt.Select{Table: "users"})
	if len(r.Rows) != 0 {
		t.Fatalf("Rows after rollback = %+v, want none", r.Rows)
	}
}

func TestCommit_PersistsAcrossExplicitTxn(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)

	mustExec(t, e, stmt.Begin{})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Commit{})

	r := mustExec(t, e, stmt.Select{Table: "users"})
	if len(r.Rows) != 1 {
		t.Fatalf("Rows after commit = %+v, want 1", r.Rows)
	}
}

func TestForeignKey_CascadeDelete(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.CreateTable{
		Name: "posts",
		Columns: []stmt.ColumnDef{
			{Name: "id", Type: catalog.Int, NotNull: true},
			{Name: "author_id", Type: catalog.Int},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []stmt.ForeignKeySpec{
			{ChildColumns: []string{"author_id"}, ParentTable: "users", ParentColumns: []string{"id"}, OnDelete: catalog.Cascade},
		},
	})

	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Insert{Table: "posts", Values: []any{int64(10), int64(1)}})

	mustExec(t, e, stmt.Delete{Table: "users", Where: &stmt.Predicate{Column: "id", Op: stmt.Eq, Value: int64(1)}})

	r := mustExec(t, e, stmt.Select{Table: "posts"})
	if len(r.Rows) != 0 {
		t.Fatalf("posts after cascade delete = %+v, want none", r.Rows)
	}
}

func TestForeignKey_RestrictBlocksDelete(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.CreateTable{
		Name: "posts",
		Columns: []stmt.ColumnDef{
			{Name: "id", Type: catalog.Int, NotNull: true},
			{Name: "author_id", Type: catalog.Int},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []stmt.ForeignKeySpec{
			{ChildColumns: []string{"author_id"}, ParentTable: "users", ParentColumns: []string{"id"}, OnDelete: catalog.Restrict},
		},
	})

	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Insert{Table: "posts", Values: []any{int64(10), int64(1)}})

	_, err := e.Execute(stmt.Delete{Table: "users", Where: &stmt.Predicate{Column: "id", Op: stmt.Eq, Value: int64(1)}})
	if _, ok := err.(*ForeignKeyViolationError); !ok {
		t.Fatalf("got %v, want *ForeignKeyViolationError", err)
	}
}

func TestOrderByAndLimit(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "carol"}})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(2), "alice"}})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(3), "bob"}})

	limit := 2
	r := mustExec(t, e, stmt.Select{
		Table:      "users",
		Projection: []string{"name"},
		OrderBy:    &stmt.OrderBy{Column: "name", Dir: stmt.Asc},
		Limit:      &limit,
	})
	if len(r.Rows) != 2 || r.Rows[0][0] != "alice" || r.Rows[1][0] != "bob" {
		t.Fatalf("Rows = %+v, want [[alice] [bob]]", r.Rows)
	}
}

func TestLike_Wildcards(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(2), "bob"}})

	r := mustExec(t, e, stmt.Select{Table: "users", Where: &stmt.Predicate{Column: "name", Op: stmt.Like, Value: "al%"}})
	if len(r.Rows) != 1 {
		t.Fatalf("Rows = %+v, want 1 match (alice)", r.Rows)
	}
}

func TestSelect_EqualityTypeMismatchOnIndexedColumn(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})

	// "id" is the primary key and therefore indexed; the type mismatch
	// must still surface as TypeError rather than silently matching zero
	// rows via the index fast path.
	_, err := e.Execute(stmt.Select{Table: "users", Where: &stmt.Predicate{Column: "id", Op: stmt.Eq, Value: "not-an-int"}})
	if _, ok := err.(*TypeErrorError); !ok {
		t.Fatalf("got %v, want *TypeErrorError", err)
	}
}

func TestCheckpoint_IDsFileSurvivesCompactionOfHighestRowID(t *testing.T) {
	dir := tempDataDir(t)
	e := openEngine(t, dir)
	createUsers(t, e)

	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(2), "bob"}})

	table, err := e.cat.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	beforeDelete := e.heaps[table.ID].nextRowID

	// Delete the most recently inserted row — the one holding the highest
	// row_id — so a checkpoint's heap compaction drops its only on-disk
	// trace (compaction keeps live rows, not tombstones).
	mustExec(t, e, stmt.Delete{Table: "users", Where: &stmt.Predicate{Column: "id", Op: stmt.Eq, Value: int64(2)}})
	if err := e.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got := reopened.heaps[table.ID].nextRowID
	if got < beforeDelete {
		t.Fatalf("nextRowID after reopen = %d, want >= %d (the .ids file should have preserved the high-water mark the compacted heap file forgot)", got, beforeDelete)
	}

	mustExec(t, reopened, stmt.Insert{Table: "users", Values: []any{int64(3), "carol"}})
	newID := reopened.heaps[table.ID].nextRowID
	if newID <= beforeDelete {
		t.Fatalf("newly inserted row got row_id %d, which reuses or precedes a row_id already issued before the checkpoint (%d)", newID, beforeDelete)
	}
}

func TestReopen_RecoversFromWAL(t *testing.T) {
	dir := tempDataDir(t)
	e := openEngine(t, dir)
	createUsers(t, e)
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()

	r := mustExec(t, e2, stmt.Select{Table: "users"})
	if len(r.Rows) != 1 {
		t.Fatalf("Rows after reopen = %+v, want 1", r.Rows)
	}
}

func TestCheckpoint_SurvivesReopen(t *testing.T) {
	dir := tempDataDir(t)
	e := openEngine(t, dir)
	createUsers(t, e)
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})
	if err := e.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()

	r := mustExec(t, e2, stmt.Select{Table: "users"})
	if len(r.Rows) != 1 {
		t.Fatalf("Rows after checkpoint+reopen = %+v, want 1", r.Rows)
	}
}

func TestStats_ReportsTableAndIndexes(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.CreateIndex{Table: "users", Columns: []string{"name"}})
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), "alice"}})

	stats := e.Stats()
	if len(stats) != 1 || stats[0].Table != "users" {
		t.Fatalf("Stats = %+v, want one entry for users", stats)
	}
	if len(stats[0].Indexes) != 2 { // primary key + the new secondary index
		t.Fatalf("Indexes = %+v, want 2 (pk + secondary)", stats[0].Indexes)
	}
}

func TestSetNotNull_RejectsExistingNulls(t *testing.T) {
	e := openEngine(t, tempDataDir(t))
	createUsers(t, e)
	mustExec(t, e, stmt.Insert{Table: "users", Values: []any{int64(1), nil}})

	_, err := e.Execute(stmt.AlterTable{Table: "users", Op: stmt.SetNotNull, Column: "name"})
	if _, ok := err.(*NotNullViolationError); !ok {
		t.Fatalf("got %v, want *NotNullViolationError", err)
	}
}
