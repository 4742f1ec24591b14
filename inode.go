package pfs

import (
	"encoding/binary"
	"io"
)

// Inode describes one file or directory. It is a fixed-size record whose
// position in the inode table is its id.
type Inode struct {
	ID         int32
	IsDir      bool
	References uint8
	FileSize   int32
	Direct     [DirectLinksCount]int32
	Indirect   [IndirectLinksCount]int32
}

// newInode builds an inode with the given id, all links cleared and a
// reference count of 1. It is not yet persisted to the backing file.
func newInode(id int32, isDir bool, fileSize int32) *Inode {
	ino := &Inode{
		ID:         id,
		IsDir:      isDir,
		References: 1,
		FileSize:   fileSize,
	}
	for i := range ino.Direct {
		ino.Direct[i] = EmptyLink
	}
	for i := range ino.Indirect {
		ino.Indirect[i] = EmptyLink
	}
	return ino
}

// IsFree reports whether this inode slot is unallocated.
func (ino *Inode) IsFree() bool {
	return ino.ID == FreeInodeID
}

// FirstFreeDirectLink returns the index of the first EmptyLink direct slot,
// or -1 if all direct slots are filled.
func (ino *Inode) FirstFreeDirectLink() int {
	for i, v := range ino.Direct {
		if v == EmptyLink {
			return i
		}
	}
	return -1
}

// LastFilledDirectLink returns the index of the last non-empty direct slot,
// or -1 if none are filled.
func (ino *Inode) LastFilledDirectLink() int {
	last := -1
	for i, v := range ino.Direct {
		if v != EmptyLink {
			last = i
		}
	}
	return last
}

// FirstFreeIndirectLink returns the index of the first EmptyLink indirect
// slot, or -1 if all indirect slots are filled.
func (ino *Inode) FirstFreeIndirectLink() int {
	for i, v := range ino.Indirect {
		if v == EmptyLink {
			return i
		}
	}
	return -1
}

// LastFilledIndirectLink returns the index of the last non-empty indirect
// slot, or -1 if none are filled.
func (ino *Inode) LastFilledIndirectLink() int {
	last := -1
	for i, v := range ino.Indirect {
		if v != EmptyLink {
			last = i
		}
	}
	return last
}

// AddDirectLink stores idx in the first free direct slot. It reports false
// if no slot was available.
func (ino *Inode) AddDirectLink(idx int32) bool {
	pos := ino.FirstFreeDirectLink()
	if pos == -1 {
		return false
	}
	ino.Direct[pos] = idx
	return true
}

// AddIndirectLink stores idx in the first free indirect slot. It reports
// false if no slot was available.
func (ino *Inode) AddIndirectLink(idx int32) bool {
	pos := ino.FirstFreeIndirectLink()
	if pos == -1 {
		return false
	}
	ino.Indirect[pos] = idx
	return true
}

// ClearLinks resets all direct and indirect links to EmptyLink.
func (ino *Inode) ClearLinks() {
	for i := range ino.Direct {
		ino.Direct[i] = EmptyLink
	}
	for i := range ino.Indirect {
		ino.Indirect[i] = EmptyLink
	}
}

// MarshalBinary writes the inode's fields in declaration order as
// fixed-width little-endian integers.
func (ino *Inode) MarshalBinary() []byte {
	buf := make([]byte, InodeSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(ino.ID))
	off += 4
	if ino.IsDir {
		buf[off] = 1
	}
	off++
	buf[off] = ino.References
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(ino.FileSize))
	off += 4
	for _, v := range ino.Direct {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	for _, v := range ino.Indirect {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	return buf
}

// UnmarshalBinary parses an inode from exactly InodeSize bytes.
func (ino *Inode) UnmarshalBinary(buf []byte) error {
	if len(buf) < InodeSize {
		return io.ErrUnexpectedEOF
	}
	off := 0
	ino.ID = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	ino.IsDir = buf[off] != 0
	off++
	ino.References = buf[off]
	off++
	ino.FileSize = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	for i := range ino.Direct {
		ino.Direct[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	for i := range ino.Indirect {
		ino.Indirect[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return nil
}

// DirectoryItem maps a name to an inode id. It is the fixed-size record
// packed into directory content clusters.
type DirectoryItem struct {
	InodeID int32
	Name    [MaxNameLength]byte
}

// newDirectoryItem builds a DirectoryItem, truncating/null-terminating name
// to fit MaxNameLength-1 usable bytes.
func newDirectoryItem(name string, inodeID int32) DirectoryItem {
	item := DirectoryItem{InodeID: inodeID}
	copy(item.Name[:MaxNameLength-1], name)
	return item
}

// NameString returns the item's name as a Go string, stopping at the first
// NUL byte.
func (d DirectoryItem) NameString() string {
	n := 0
	for n < len(d.Name) && d.Name[n] != 0 {
		n++
	}
	return string(d.Name[:n])
}

// NameEquals reports whether this item's name equals the given name.
func (d DirectoryItem) NameEquals(name string) bool {
	return d.NameString() == name
}

// IsFree reports whether this slot is free (Invariant B: a free slot is one
// whose first name byte is 0; the other bytes are not examined).
func (d DirectoryItem) IsFree() bool {
	return d.Name[0] == 0
}

// MarshalBinary writes the directory item as a fixed 16-byte record.
func (d DirectoryItem) MarshalBinary() []byte {
	buf := make([]byte, DirectoryItemSize)
	binary.LittleEndian.PutUint32(buf, uint32(d.InodeID))
	copy(buf[4:], d.Name[:])
	return buf
}

// UnmarshalBinary parses a directory item from exactly DirectoryItemSize
// bytes.
func (d *DirectoryItem) UnmarshalBinary(buf []byte) error {
	if len(buf) < DirectoryItemSize {
		return io.ErrUnexpectedEOF
	}
	d.InodeID = int32(binary.LittleEndian.Uint32(buf))
	copy(d.Name[:], buf[4:4+MaxNameLength])
	return nil
}
