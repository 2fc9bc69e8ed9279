// Package diag estimates the in-memory footprint of live engine state —
// a table's row heap, an index's BTree/MultiBTree — for Engine.Stats()
// (spec §4.J). It walks values by reflection rather than requiring every
// storage type to implement a Size() method, since the structures being
// measured (maps of rows, btree nodes) are internal to other packages.
package diag

import (
	"reflect"
	"unsafe"
)

// Footprint estimates the total bytes reachable from v: its own
// representation plus every heap allocation hanging off it (backing
// arrays, map buckets, string bytes, pointer targets). Pointer cycles are
// tracked so a circular structure terminates instead of recursing forever.
func Footprint(v any) int64 {
	if v == nil {
		return 0
	}
	visited := make(map[uintptr]bool)
	return walk(reflect.ValueOf(v), visited)
}

// walk measures v inline, as it would be laid out inside its parent
// (struct field, slice element, map value) — the value's own size plus
// whatever it points at.
func walk(v reflect.Value, visited map[uintptr]bool) int64 {
	if !v.IsValid() {
		return 0
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return int64(v.Type().Size())
		}
		addr := v.Pointer()
		if visited[addr] {
			return int64(v.Type().Size())
		}
		visited[addr] = true
		return int64(v.Type().Size()) + walk(v.Elem(), visited)

	case reflect.String:
		return int64(v.Type().Size()) + int64(v.Len())

	case reflect.Slice:
		if v.IsNil() {
			return int64(v.Type().Size())
		}
		total := int64(v.Type().Size())
		total += int64(v.Cap()) * int64(v.Type().Elem().Size())
		if holdsHeapData(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				total += walkHeapPortion(v.Index(i), visited)
			}
		}
		return total

	case reflect.Array:
		extra := int64(0)
		if holdsHeapData(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				extra += walkHeapPortion(v.Index(i), visited)
			}
		}
		return int64(v.Type().Size()) + extra

	case reflect.Struct:
		extra := int64(0)
		for i := 0; i < v.NumField(); i++ {
			extra += walkHeapPortion(v.Field(i), visited)
		}
		// Type().Size() already accounts for padding between fields, so
		// only the heap-indirect portion is added on top of it.
		return int64(v.Type().Size()) + extra

	case reflect.Map:
		if v.IsNil() {
			return int64(v.Type().Size())
		}
		total := int64(v.Type().Size()) + mapOverheadEstimate
		iter := v.MapRange()
		for iter.Next() {
			total += walk(iter.Key(), visited)
			total += walk(iter.Value(), visited)
		}
		return total

	case reflect.Interface:
		if v.IsNil() {
			return int64(v.Type().Size())
		}
		return int64(v.Type().Size()) + walk(v.Elem(), visited)

	default:
		// bool, every int/uint/float/complex width.
		return int64(v.Type().Size())
	}
}

// mapOverheadEstimate is a rough per-map allowance for Go's hmap header
// and bucket array, which reflect cannot size precisely from outside the
// runtime package.
const mapOverheadEstimate = int64(unsafe.Sizeof(uint64(0))) * 8

// walkHeapPortion measures only what v allocates beyond its inline bytes,
// which a containing slice/array/struct has already counted as part of
// its own size.
func walkHeapPortion(v reflect.Value, visited map[uintptr]bool) int64 {
	if !v.IsValid() {
		return 0
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return 0
		}
		addr := v.Pointer()
		if visited[addr] {
			return 0
		}
		visited[addr] = true
		return int64(v.Elem().Type().Size()) + walkHeapPortion(v.Elem(), visited)

	case reflect.String:
		return int64(v.Len())

	case reflect.Slice:
		if v.IsNil() {
			return 0
		}
		total := int64(v.Cap()) * int64(v.Type().Elem().Size())
		if holdsHeapData(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				total += walkHeapPortion(v.Index(i), visited)
			}
		}
		return total

	case reflect.Map:
		if v.IsNil() {
			return 0
		}
		total := mapOverheadEstimate
		iter := v.MapRange()
		for iter.Next() {
			total += walk(iter.Key(), visited)
			total += walk(iter.Value(), visited)
		}
		return total

	case reflect.Interface:
		if v.IsNil() {
			return 0
		}
		return walk(v.Elem(), visited)

	case reflect.Struct:
		total := int64(0)
		for i := 0; i < v.NumField(); i++ {
			total += walkHeapPortion(v.Field(i), visited)
		}
		return total

	case reflect.Array:
		total := int64(0)
		if holdsHeapData(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				total += walkHeapPortion(v.Index(i), visited)
			}
		}
		return total

	default:
		return 0
	}
}

// holdsHeapData reports whether t's values might carry data beyond their
// own inline bytes, so walk/walkHeapPortion can skip recursing into plain
// scalar elements (e.g. a []int64 row_id list never needs it).
func holdsHeapData(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.String, reflect.Interface:
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsHeapData(t.Field(i).Type) {
				return true
			}
		}
	case reflect.Array:
		return holdsHeapData(t.Elem())
	}
	return false
}
