package storage

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRow_RoundTrip(t *testing.T) {
	values := []any{int64(42), "hello", nil}
	enc := EncodeRow(values)
	got, err := DecodeRow(enc, 3)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Fatalf("got %+v, want %+v", got, values)
	}
}

func TestDecodeRow_ArityMismatch(t *testing.T) {
	enc := EncodeRow([]any{int64(1), int64(2)})
	_, err := DecodeRow(enc, 3)
	if _, ok := err.(*CodecError); !ok {
		t.Fatalf("got %v, want *CodecError", err)
	}
}

func TestDecodeRow_TruncatedInput(t *testing.T) {
	enc := EncodeRow([]any{"a string long enough to truncate"})
	_, err := DecodeRow(enc[:len(enc)-3], -1)
	if _, ok := err.(*CodecError); !ok {
		t.Fatalf("got %v, want *CodecError", err)
	}
}

func TestCompareValues(t *testing.T) {
	if CompareValues(int64(1), int64(2)) >= 0 {
		t.Fatal("1 should compare less than 2")
	}
	if CompareValues("a", "b") >= 0 {
		t.Fatal("\"a\" should compare less than \"b\"")
	}
	if CompareValues(nil, int64(1)) != -2 {
		t.Fatal("nil should be incomparable (-2)")
	}
	if CompareValues(int64(1), "a") != -2 {
		t.Fatal("mismatched types should be incomparable (-2)")
	}
}

func TestCompareKeys_Lexicographic(t *testing.T) {
	a := []any{int64(1), "x"}
	b := []any{int64(1), "y"}
	if CompareKeys(a, b) >= 0 {
		t.Fatal("(1,x) should sort before (1,y)")
	}
	c := []any{int64(1)}
	if CompareKeys(c, a) >= 0 {
		t.Fatal("a shorter prefix key should sort before a longer one sharing it")
	}
}

func TestCompressDecompressSnapshot_RoundTrip(t *testing.T) {
	data := []byte("some catalog snapshot bytes, repeated repeated repeated")
	compressed := CompressSnapshot(data)
	got, err := DecompressSnapshot(compressed)
	if err != nil {
		t.Fatalf("DecompressSnapshot: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestCompressDecompressSnapshot_Empty(t *testing.T) {
	if got := CompressSnapshot(nil); got != nil {
		t.Fatalf("CompressSnapshot(nil) = %v, want nil", got)
	}
	got, err := DecompressSnapshot(nil)
	if err != nil || got != nil {
		t.Fatalf("DecompressSnapshot(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}
