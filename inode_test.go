package pfs_test

import (
	"testing"

	"github.com/markovd/pfs"
)

func TestInodeMarshalRoundTrip(t *testing.T) {
	ino := &pfs.Inode{ID: 3, IsDir: true, References: 1, FileSize: 4096}
	ino.Direct = [pfs.DirectLinksCount]int32{1, 2, pfs.EmptyLink, pfs.EmptyLink, pfs.EmptyLink}
	ino.Indirect = [pfs.IndirectLinksCount]int32{pfs.EmptyLink, pfs.EmptyLink}

	buf := ino.MarshalBinary()
	if len(buf) != pfs.InodeSize {
		t.Fatalf("expected %d bytes, got %d", pfs.InodeSize, len(buf))
	}

	got := &pfs.Inode{}
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != ino.ID || got.IsDir != ino.IsDir || got.FileSize != ino.FileSize {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, ino)
	}
	if got.Direct != ino.Direct || got.Indirect != ino.Indirect {
		t.Errorf("link arrays mismatch: got %+v/%+v, want %+v/%+v", got.Direct, got.Indirect, ino.Direct, ino.Indirect)
	}
}

func TestDirectoryItemNameHandling(t *testing.T) {
	d := pfs.DirectoryItem{}
	if !d.IsFree() {
		t.Fatalf("zero-value DirectoryItem should be free")
	}

	buf := make([]byte, pfs.DirectoryItemSize)
	buf[0] = 7 // inode id low byte
	copy(buf[4:], "hi.txt")
	if err := d.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.NameString() != "hi.txt" {
		t.Errorf("expected name hi.txt, got %q", d.NameString())
	}
	if d.IsFree() {
		t.Errorf("non-empty name should not report free")
	}
	if !d.NameEquals("hi.txt") || d.NameEquals("other") {
		t.Errorf("NameEquals mismatch")
	}
}

func TestDirectoryItemMarshalRoundTrip(t *testing.T) {
	buf := make([]byte, pfs.DirectoryItemSize)
	buf[0] = 9
	copy(buf[4:], "longname12")

	d := &pfs.DirectoryItem{}
	if err := d.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out := d.MarshalBinary()
	if len(out) != pfs.DirectoryItemSize {
		t.Fatalf("expected %d bytes, got %d", pfs.DirectoryItemSize, len(out))
	}
	for i := range buf {
		if out[i] != buf[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, out[i], buf[i])
		}
	}
}
