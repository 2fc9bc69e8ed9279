package storage

import "github.com/golang/snappy"

// CompressSnapshot wraps data in Snappy block compression before it hits
// disk (spec §4.B: catalog and index snapshot files are Snappy-compressed).
// Empty input stays empty so a freshly-initialized data directory's
// zero-length files round-trip without ever calling into snappy.
func CompressSnapshot(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return snappy.Encode(nil, data)
}

// DecompressSnapshot reverses CompressSnapshot.
func DecompressSnapshot(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, &CodecError{Reason: "snapshot decompression: " + err.Error()}
	}
	return out, nil
}
