package pfs

import "testing"

func newTestInodeService(t *testing.T, count int) *inodeService {
	t.Helper()
	sb := &Superblock{InodeCount: int32(count), InodeTableStart: 0, InodeBitmapStart: int32(count * InodeSize)}
	mem := newMemBacking(count * InodeSize)
	bmp := NewBitmap(int(ceilDiv32(int32(count), 8)))
	return newInodeService(mem, mem, sb, bmp)
}

func TestInodeServiceAllocSaveLoad(t *testing.T) {
	svc := newTestInodeService(t, 8)

	ino, err := svc.create(true, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ino.ID != 0 {
		t.Fatalf("expected first allocated id 0, got %d", ino.ID)
	}
	if err := svc.Save(ino); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := svc.Load(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.IsDir || loaded.References != 1 {
		t.Errorf("loaded inode mismatch: %+v", loaded)
	}

	second, err := svc.create(false, 42)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.ID != 1 {
		t.Fatalf("expected second id 1, got %d", second.ID)
	}
}

func TestInodeServiceRemoveFreesBit(t *testing.T) {
	svc := newTestInodeService(t, 4)

	ino, err := svc.create(true, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Save(ino); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.Remove(ino); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := svc.Load(ino.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}

	again, err := svc.create(true, 0)
	if err != nil {
		t.Fatalf("re-create after remove: %v", err)
	}
	if again.ID != ino.ID {
		t.Errorf("expected freed id %d to be reused, got %d", ino.ID, again.ID)
	}
}

func TestInodeServiceExhaustion(t *testing.T) {
	svc := newTestInodeService(t, 2)

	for i := 0; i < 2; i++ {
		ino, err := svc.create(false, 0)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if err := svc.Save(ino); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	if _, err := svc.create(false, 0); err != ErrNoFreeInode {
		t.Errorf("expected ErrNoFreeInode, got %v", err)
	}
}

func TestAllInodes(t *testing.T) {
	svc := newTestInodeService(t, 4)

	a, _ := svc.create(true, 0)
	svc.Save(a)
	b, _ := svc.create(false, 10)
	svc.Save(b)

	all, err := svc.AllInodes()
	if err != nil {
		t.Fatalf("AllInodes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 allocated inodes, got %d", len(all))
	}
}
