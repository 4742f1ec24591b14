package pfs

import "io"

// inodeService allocates, persists and loads inodes against the backing
// file's inode table and inode bitmap. Allocation is a two-step API:
// allocID (which may fail with ErrNoFreeInode) followed by Save (which sets
// the bitmap bit) — this keeps failure localised to allocation and makes
// construction of an in-memory Inode infallible.
type inodeService struct {
	rw       io.ReaderAt
	wa       io.WriterAt
	sb       *Superblock
	bitmap   *Bitmap
}

func newInodeService(rw io.ReaderAt, wa io.WriterAt, sb *Superblock, bitmap *Bitmap) *inodeService {
	return &inodeService{rw: rw, wa: wa, sb: sb, bitmap: bitmap}
}

// allocID returns the first free inode id from the inode bitmap without
// marking it allocated yet.
func (s *inodeService) allocID() (int32, error) {
	idx, err := s.bitmap.FirstFree()
	if err != nil || idx >= int(s.sb.InodeCount) {
		return 0, ErrNoFreeInode
	}
	return int32(idx), nil
}

// create builds a new in-memory inode with a freshly allocated id. The
// inode is not yet persisted; call Save to commit it.
func (s *inodeService) create(isDir bool, fileSize int32) (*Inode, error) {
	id, err := s.allocID()
	if err != nil {
		return nil, err
	}
	return newInode(id, isDir, fileSize), nil
}

// Save writes ino to its table slot, sets its inode-bitmap bit and persists
// the bitmap.
func (s *inodeService) Save(ino *Inode) error {
	offset := s.sb.InodeOffset(ino.ID)
	if _, err := s.wa.WriteAt(ino.MarshalBinary(), offset); err != nil {
		return ErrBackingIO
	}
	s.bitmap.Set(int(ino.ID))
	return s.bitmap.Save(s.wa, int64(s.sb.InodeBitmapStart))
}

// Load reads the inode at id. It fails with ErrNotFound if id's bitmap bit
// is clear (an unallocated slot) or the loaded record's id does not match
// the requested id (a corrupt slot).
func (s *inodeService) Load(id int32) (*Inode, error) {
	if !s.bitmap.IsSet(int(id)) {
		return nil, ErrNotFound
	}
	buf := make([]byte, InodeSize)
	offset := s.sb.InodeOffset(id)
	if _, err := s.rw.ReadAt(buf, offset); err != nil {
		return nil, ErrBackingIO
	}
	ino := &Inode{}
	if err := ino.UnmarshalBinary(buf); err != nil {
		return nil, ErrBackingIO
	}
	if ino.ID != id {
		return nil, ErrNotFound
	}
	return ino, nil
}

// Remove overwrites the inode's table slot with zero bytes and clears its
// bitmap bit.
func (s *inodeService) Remove(ino *Inode) error {
	offset := s.sb.InodeOffset(ino.ID)
	zero := make([]byte, InodeSize)
	if _, err := s.wa.WriteAt(zero, offset); err != nil {
		return ErrBackingIO
	}
	s.bitmap.Clear(int(ino.ID))
	return s.bitmap.Save(s.wa, int64(s.sb.InodeBitmapStart))
}

// LoadRoot loads the inode at the start of the inode table (id 0).
func (s *inodeService) LoadRoot() (*Inode, error) {
	return s.Load(0)
}

// AllInodes enumerates every allocated inode id and loads it.
func (s *inodeService) AllInodes() ([]*Inode, error) {
	var result []*Inode
	for id := 0; id < int(s.sb.InodeCount); id++ {
		if !s.bitmap.IsSet(id) {
			continue
		}
		ino, err := s.Load(int32(id))
		if err != nil {
			continue
		}
		result = append(result, ino)
	}
	return result, nil
}
