// Package storage implements the durable, on-disk primitives of skepa-db:
// the typed value/row codec, the directory layout and atomic file
// operations, and the write-ahead log. Higher-level components (catalog,
// table heap, index manager, constraint engine) live in the catalog and
// engine packages and build on top of these primitives.
package storage

import (
	"encoding/binary"
	"fmt"
)

// Value tags, per spec: 0=Null, 1=Int, 2=Text.
const (
	tagNull byte = 0
	tagInt  byte = 1
	tagText byte = 2
)

// CodecError is returned by row (de)serialization on truncated input or an
// arity mismatch against the expected schema width.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return "codec error: " + e.Reason
}

// EncodeRow serializes values as:
//
//	[n: u16 column count][tag[0]…tag[n-1]][payload]
//
// Int payload is little-endian i64. Text payload is [len: u32][utf-8 bytes].
// A nil entry in values encodes as Null.
func EncodeRow(values []any) []byte {
	buf := make([]byte, 0, 2+len(values)*9)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(values)))

	tagsOff := len(buf)
	buf = append(buf, make([]byte, len(values))...)

	for i, v := range values {
		switch val := v.(type) {
		case nil:
			buf[tagsOff+i] = tagNull
		case int64:
			buf[tagsOff+i] = tagInt
			buf = binary.LittleEndian.AppendUint64(buf, uint64(val))
		case string:
			buf[tagsOff+i] = tagText
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(val)))
			buf = append(buf, val...)
		default:
			panic(fmt.Sprintf("storage: unencodable value type %T", v))
		}
	}
	return buf
}

// DecodeRow parses a row encoded by EncodeRow. arity, when >= 0, is checked
// against the decoded column count and produces a CodecError on mismatch;
// pass -1 to skip the check when the arity is not known.
func DecodeRow(data []byte, arity int) ([]any, error) {
	if len(data) < 2 {
		return nil, &CodecError{Reason: "truncated row header"}
	}
	n := int(binary.LittleEndian.Uint16(data[:2]))
	data = data[2:]
	if arity >= 0 && n != arity {
		return nil, &CodecError{Reason: fmt.Sprintf("arity mismatch: row has %d columns, schema has %d", n, arity)}
	}
	if len(data) < n {
		return nil, &CodecError{Reason: "truncated tag vector"}
	}
	tags := data[:n]
	data = data[n:]

	values := make([]any, n)
	for i, tag := range tags {
		switch tag {
		case tagNull:
			values[i] = nil
		case tagInt:
			if len(data) < 8 {
				return nil, &CodecError{Reason: "truncated int payload"}
			}
			values[i] = int64(binary.LittleEndian.Uint64(data[:8]))
			data = data[8:]
		case tagText:
			if len(data) < 4 {
				return nil, &CodecError{Reason: "truncated text length"}
			}
			l := binary.LittleEndian.Uint32(data[:4])
			data = data[4:]
			if uint32(len(data)) < l {
				return nil, &CodecError{Reason: "truncated text payload"}
			}
			values[i] = string(data[:l])
			data = data[l:]
		default:
			return nil, &CodecError{Reason: fmt.Sprintf("unknown value tag %d", tag)}
		}
	}
	return values, nil
}

// CompareValues orders two cell values for index keys and ORDER BY.
// Int is compared numerically, Text byte-wise. Returns -2 if the values are
// not directly comparable (e.g. one side is nil, or the types differ) —
// callers that need NULL ordering (ORDER BY) handle nil specially rather
// than relying on this return value.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		return -2
	}
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return -2
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return -2
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return -2
	}
}

// CompareKeys orders two multi-column index keys lexicographically.
func CompareKeys(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
