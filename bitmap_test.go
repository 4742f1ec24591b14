package pfs_test

import (
	"testing"

	"github.com/markovd/pfs"
)

func TestBitmapFirstFreeMSBFirst(t *testing.T) {
	b := pfs.NewBitmap(1)

	for want := 0; want < 8; want++ {
		got, err := b.FirstFree()
		if err != nil {
			t.Fatalf("FirstFree at step %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected index %d (MSB-first), got %d", want, got)
		}
		b.Set(got)
	}

	if _, err := b.FirstFree(); err != pfs.ErrNoFreeInode {
		t.Errorf("expected ErrNoFreeInode on exhaustion, got %v", err)
	}
}

func TestBitmapFindFree(t *testing.T) {
	b := pfs.NewBitmap(2)
	b.Set(0)
	b.Set(1)

	free, err := b.FindFree(4)
	if err != nil {
		t.Fatalf("FindFree: %v", err)
	}
	want := []int{2, 3, 4, 5}
	for i, idx := range free {
		if idx != want[i] {
			t.Errorf("free[%d] = %d, want %d", i, idx, want[i])
		}
	}

	if _, err := b.FindFree(100); err != pfs.ErrNoFreeCluster {
		t.Errorf("expected ErrNoFreeCluster, got %v", err)
	}
}

func TestBitmapSetClearIsSet(t *testing.T) {
	b := pfs.NewBitmap(1)
	if b.IsSet(3) {
		t.Fatalf("expected bit 3 clear initially")
	}
	b.Set(3)
	if !b.IsSet(3) {
		t.Fatalf("expected bit 3 set after Set")
	}
	b.Clear(3)
	if b.IsSet(3) {
		t.Fatalf("expected bit 3 clear after Clear")
	}
}

func TestBitmapOutOfRangeIsNoOp(t *testing.T) {
	b := pfs.NewBitmap(1)
	b.Set(1000)
	b.Clear(1000)
	if b.IsSet(1000) {
		t.Errorf("out-of-range IsSet should report false")
	}
}

type memAt struct{ buf []byte }

func (m *memAt) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.buf[off:]), nil
}

func (m *memAt) WriteAt(p []byte, off int64) (int, error) {
	if int(off)+len(p) > len(m.buf) {
		grown := make([]byte, int(off)+len(p))
		copy(grown, m.buf)
		m.buf = grown
	}
	return copy(m.buf[off:], p), nil
}

func TestBitmapSaveLoadRoundTrip(t *testing.T) {
	b := pfs.NewBitmap(4)
	b.Set(0)
	b.Set(9)
	b.Set(31)

	backing := &memAt{buf: make([]byte, 100)}
	if err := b.Save(backing, 10); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := pfs.NewBitmap(4)
	if err := loaded.Load(backing, 10); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, idx := range []int{0, 9, 31} {
		if !loaded.IsSet(idx) {
			t.Errorf("expected bit %d set after round trip", idx)
		}
	}
	if loaded.IsSet(1) {
		t.Errorf("expected bit 1 clear after round trip")
	}
}
