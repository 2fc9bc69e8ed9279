package index

import "testing"

// compositeCmp orders the []any key tuples an index stores: column by
// column, int64 before string, nil sorting first. It stands in for
// storage.CompareKeys without introducing a dependency from this package.
func compositeCmp(a, b any) int {
	ka, kb := a.([]any), b.([]any)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := compareScalar(ka[i], kb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	default:
		return 0
	}
}

func compareScalar(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func tuple(vals ...any) []any { return vals }

func TestBTreeUniqueLookupRoundTrip(t *testing.T) {
	bt := NewBTree(compositeCmp)
	cases := []struct {
		key []any
		row int64
	}{
		{tuple(int64(1)), 100},
		{tuple(int64(2)), 200},
		{tuple(int64(0)), 300},
	}
	for _, c := range cases {
		if !bt.Put(c.key, c.row) {
			t.Fatalf("Put(%v) should succeed", c.key)
		}
	}
	for _, c := range cases {
		got, ok := bt.Get(c.key)
		if !ok || got != c.row {
			t.Errorf("Get(%v) = (%d, %v), want (%d, true)", c.key, got, ok, c.row)
		}
	}
	if _, ok := bt.Get(tuple(int64(99))); ok {
		t.Error("Get on absent key should report false")
	}
}

func TestBTreeRejectsDuplicateKeyOnUniqueIndex(t *testing.T) {
	bt := NewBTree(compositeCmp)
	if !bt.Put(tuple("a@example.com"), 1) {
		t.Fatal("first Put should succeed")
	}
	if bt.Put(tuple("a@example.com"), 2) {
		t.Fatal("Put with the same key should fail, mirroring a unique-constraint violation")
	}
	row, _ := bt.Get(tuple("a@example.com"))
	if row != 1 {
		t.Errorf("Get = %d, want the original row_id 1 unchanged", row)
	}
}

func TestBTreeDeleteThenReinsert(t *testing.T) {
	bt := NewBTree(compositeCmp)
	bt.Put(tuple(int64(1)), 1)
	bt.Put(tuple(int64(2)), 2)
	bt.Put(tuple(int64(3)), 3)

	if !bt.Delete(tuple(int64(2))) {
		t.Fatal("Delete of a present key should return true")
	}
	if _, ok := bt.Get(tuple(int64(2))); ok {
		t.Error("deleted key should no longer resolve")
	}
	if _, ok := bt.Get(tuple(int64(1))); !ok {
		t.Error("sibling key 1 should be unaffected by the delete")
	}
	if _, ok := bt.Get(tuple(int64(3))); !ok {
		t.Error("sibling key 3 should be unaffected by the delete")
	}
	if bt.Delete(tuple(int64(2))) {
		t.Error("deleting an already-removed key should return false")
	}
	if !bt.Put(tuple(int64(2)), 22) {
		t.Fatal("re-inserting a deleted key should succeed")
	}
	row, ok := bt.Get(tuple(int64(2)))
	if !ok || row != 22 {
		t.Errorf("Get after reinsert = (%d, %v), want (22, true)", row, ok)
	}
}

func TestBTreeEmptyTreeOperations(t *testing.T) {
	bt := NewBTree(compositeCmp)
	if _, ok := bt.Get(tuple(int64(1))); ok {
		t.Error("Get on an empty tree should report false")
	}
	if bt.Delete(tuple(int64(1))) {
		t.Error("Delete on an empty tree should report false")
	}
}

func TestBTreeSurvivesManySplitsAndDeletes(t *testing.T) {
	bt := NewBTree(compositeCmp)
	const n = 5000

	// Insert out of order to exercise splits on both sides of the root.
	for i := int64(0); i < n; i++ {
		k := (i * 7919) % n
		if !bt.Put(tuple(k), k*10) {
			t.Fatalf("Put(%d) should succeed", k)
		}
	}
	for i := int64(0); i < n; i++ {
		row, ok := bt.Get(tuple(i))
		if !ok || row != i*10 {
			t.Fatalf("Get(%d) = (%d, %v), want (%d, true)", i, row, ok, i*10)
		}
	}

	// Remove every third key and confirm the rest survive.
	for i := int64(0); i < n; i += 3 {
		if !bt.Delete(tuple(i)) {
			t.Fatalf("Delete(%d) should return true", i)
		}
	}
	for i := int64(0); i < n; i++ {
		_, ok := bt.Get(tuple(i))
		want := i%3 != 0
		if ok != want {
			t.Fatalf("Get(%d) present=%v, want %v", i, ok, want)
		}
	}
}

func TestBTreeCompositeKeyOrdering(t *testing.T) {
	bt := NewBTree(compositeCmp)
	bt.Put(tuple(int64(1), "b"), 1)
	bt.Put(tuple(int64(1), "a"), 2)
	bt.Put(tuple(int64(2), "a"), 3)

	if row, ok := bt.Get(tuple(int64(1), "a")); !ok || row != 2 {
		t.Errorf("Get((1,a)) = (%d, %v), want (2, true)", row, ok)
	}
	if row, ok := bt.Get(tuple(int64(1), "b")); !ok || row != 1 {
		t.Errorf("Get((1,b)) = (%d, %v), want (1, true)", row, ok)
	}
	if _, ok := bt.Get(tuple(int64(2), "b")); ok {
		t.Error("Get on an unstored composite key should report false")
	}
}

func TestMultiBTreeCollectsEveryRowForARepeatedKey(t *testing.T) {
	mb := NewMultiBTree(compositeCmp)
	mb.Put(tuple(int64(7)), 101)
	mb.Put(tuple(int64(7)), 102)
	mb.Put(tuple(int64(7)), 103)
	mb.Put(tuple(int64(8)), 200)

	got := mb.GetAll(tuple(int64(7)))
	if len(got) != 3 {
		t.Fatalf("GetAll(7) = %v, want 3 rows", got)
	}
	want := map[int64]bool{101: true, 102: true, 103: true}
	for _, r := range got {
		if !want[r] {
			t.Errorf("GetAll(7) returned unexpected row %d", r)
		}
	}

	got8 := mb.GetAll(tuple(int64(8)))
	if len(got8) != 1 || got8[0] != 200 {
		t.Errorf("GetAll(8) = %v, want [200]", got8)
	}

	if got9 := mb.GetAll(tuple(int64(9))); len(got9) != 0 {
		t.Errorf("GetAll(9) = %v, want none", got9)
	}
}

func TestMultiBTreeDeleteRemovesOnlyOneRow(t *testing.T) {
	mb := NewMultiBTree(compositeCmp)
	mb.Put(tuple(int64(1)), 1)
	mb.Put(tuple(int64(1)), 2)

	if !mb.Delete(tuple(int64(1)), 1) {
		t.Fatal("Delete of an existing (key, row) pair should return true")
	}
	got := mb.GetAll(tuple(int64(1)))
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("GetAll(1) after deleting row 1 = %v, want [2]", got)
	}
	if mb.Delete(tuple(int64(1)), 1) {
		t.Error("deleting the same (key, row) pair twice should return false")
	}
}

func TestMultiBTreeManyRowsUnderOneKey(t *testing.T) {
	mb := NewMultiBTree(compositeCmp)
	const n = 500
	for i := int64(0); i < n; i++ {
		mb.Put(tuple("shared"), i)
	}
	got := mb.GetAll(tuple("shared"))
	if len(got) != n {
		t.Fatalf("GetAll(shared) returned %d rows, want %d", len(got), n)
	}
	seen := make(map[int64]bool, n)
	for _, r := range got {
		seen[r] = true
	}
	for i := int64(0); i < n; i++ {
		if !seen[i] {
			t.Errorf("row %d missing from GetAll(shared)", i)
		}
	}
}
