package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenPager_CreatesLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p, err := OpenPager(dir)
	if err != nil {
		t.Fatalf("OpenPager: %v", err)
	}
	defer p.Close()

	for _, sub := range []string{TablesDirName, IndexesDirName} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory under %s", sub, dir)
		}
	}
}

func TestOpenPager_SecondOpenFailsWithLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p1, err := OpenPager(dir)
	if err != nil {
		t.Fatalf("OpenPager: %v", err)
	}
	defer p1.Close()

	_, err = OpenPager(dir)
	if _, ok := err.(*DbLockedError); !ok {
		t.Fatalf("got %v, want *DbLockedError", err)
	}
}

func TestOpenPager_ReleasesLockOnClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p1, err := OpenPager(dir)
	if err != nil {
		t.Fatalf("OpenPager: %v", err)
	}
	if err := p1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := OpenPager(dir)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	defer p2.Close()
}

func TestPager_PathHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p, err := OpenPager(dir)
	if err != nil {
		t.Fatalf("OpenPager: %v", err)
	}
	defer p.Close()

	if p.DataDir() != dir {
		t.Fatalf("DataDir() = %q, want %q", p.DataDir(), dir)
	}
	if p.CatalogPath() != filepath.Join(dir, CatalogFileName) {
		t.Fatalf("CatalogPath() = %q", p.CatalogPath())
	}
	if p.WalPath() != filepath.Join(dir, WalFileName) {
		t.Fatalf("WalPath() = %q", p.WalPath())
	}
	if p.HeapPath("t1") != filepath.Join(dir, TablesDirName, "t1.heap") {
		t.Fatalf("HeapPath() = %q", p.HeapPath("t1"))
	}
	if p.IDsPath("t1") != filepath.Join(dir, TablesDirName, "t1.ids") {
		t.Fatalf("IDsPath() = %q", p.IDsPath("t1"))
	}
	if p.IndexPath("t1", "i1") != filepath.Join(dir, IndexesDirName, "t1", "i1.idx") {
		t.Fatalf("IndexPath() = %q", p.IndexPath("t1", "i1"))
	}
}

func TestNewTableID_NewIndexID_Unique(t *testing.T) {
	if NewTableID() == NewTableID() {
		t.Fatal("NewTableID should mint distinct identifiers")
	}
	if NewIndexID() == NewIndexID() {
		t.Fatal("NewIndexID should mint distinct identifiers")
	}
}

func TestWriteFileAtomic_ReadFileIfExists_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "f.dat")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, ok, err := ReadFileIfExists(path)
	if err != nil || !ok {
		t.Fatalf("ReadFileIfExists: data=%v ok=%v err=%v", data, ok, err)
	}
	if string(data) != "payload" {
		t.Fatalf("data = %q, want %q", data, "payload")
	}
}

func TestReadFileIfExists_Missing(t *testing.T) {
	data, ok, err := ReadFileIfExists(filepath.Join(t.TempDir(), "missing"))
	if err != nil || ok || data != nil {
		t.Fatalf("got data=%v ok=%v err=%v, want nil/false/nil", data, ok, err)
	}
}

func TestWriteFileAtomic_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.dat")
	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic(first): %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic(second): %v", err)
	}
	data, _, err := ReadFileIfExists(path)
	if err != nil {
		t.Fatalf("ReadFileIfExists: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("data = %q, want %q", data, "second")
	}
}
