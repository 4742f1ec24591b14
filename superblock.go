package pfs

import (
	"encoding/binary"
	"io"
)

const (
	// ClusterSize is the fixed size, in bytes, of one data cluster.
	ClusterSize = 1024

	// DirectLinksCount is the number of direct cluster links an inode carries.
	DirectLinksCount = 5

	// IndirectLinksCount is the number of indirect cluster links an inode carries.
	IndirectLinksCount = 2

	// LinksPerIndirectCluster is how many little-endian int32 cluster indexes
	// fit in one indirect-list cluster.
	LinksPerIndirectCluster = ClusterSize / 4

	// EmptyLink marks an unused direct or indirect link slot.
	EmptyLink int32 = -1

	// FreeInodeID marks a free inode table slot.
	FreeInodeID int32 = -1

	// MaxNameLength is the maximum byte length of a filename, including the
	// null terminator (8.3-style names: 8 + '.' + 3 + NUL fits in 12, so the
	// longest name without the terminator byte is 11 bytes).
	MaxNameLength = 12

	signatureLength   = 10
	descriptionLength = 20

	signature   = "markovd"
	description = "Primitive file system"
)

// Superblock is the first record in the backing file. It is written once by
// format() and never mutated afterwards.
type Superblock struct {
	Signature        [signatureLength]byte
	Description      [descriptionLength]byte
	DiskSize         int32
	InodeCount       int32
	ClusterCount     int32
	InodeBitmapStart int32
	DataBitmapStart  int32
	InodeTableStart  int32
	DataStartAddress int32
}

// SuperblockSize is the on-disk byte size of a marshaled Superblock.
const SuperblockSize = signatureLength + descriptionLength + 4*7

// InodeSize is the on-disk byte size of a marshaled Inode.
const InodeSize = 4 + 1 + 1 + 4 + 4*DirectLinksCount + 4*IndirectLinksCount

// DirectoryItemSize is the on-disk byte size of a marshaled DirectoryItem.
const DirectoryItemSize = 4 + MaxNameLength

// ItemsPerCluster is how many DirectoryItem records fit in one cluster.
const ItemsPerCluster = ClusterSize / DirectoryItemSize

// NewSuperblock computes the geometry for a disk of sizeMB megabytes,
// following the layout rules: inode capacity is disk-size/1000, cluster
// capacity is derived so the data bitmap plus the clusters it tracks fit in
// whatever space remains after the fixed-size regions.
func NewSuperblock(sizeMB int) *Superblock {
	sb := &Superblock{}
	copy(sb.Signature[:], signature)
	copy(sb.Description[:], description)

	diskSize := int64(sizeMB) * 1_000_000
	inodeCount := int32(diskSize / 1000)

	inodeBitmapStart := int32(SuperblockSize)
	dataBitmapStart := inodeBitmapStart + ceilDiv32(inodeCount, 8)

	// The inode table starts right after the data bitmap, but the data
	// bitmap's length depends on the cluster count we're about to derive.
	// Solve for the largest cluster count whose bitmap-plus-data footprint
	// fits in what's left once the inode table is accounted for.
	available := diskSize - int64(dataBitmapStart) - int64(inodeCount)*InodeSize
	if available < 0 {
		available = 0
	}

	clusterCount := available / ClusterSize
	for clusterCount > 0 {
		need := ceilDiv64(clusterCount, 8) + clusterCount*ClusterSize
		if need <= available {
			break
		}
		clusterCount--
	}

	sb.DiskSize = int32(diskSize)
	sb.InodeCount = inodeCount
	sb.ClusterCount = int32(clusterCount)
	sb.InodeBitmapStart = inodeBitmapStart
	sb.DataBitmapStart = dataBitmapStart
	sb.InodeTableStart = dataBitmapStart + ceilDiv32(sb.ClusterCount, 8)
	sb.DataStartAddress = sb.InodeTableStart + inodeCount*InodeSize

	return sb
}

func ceilDiv32(a int32, b int32) int32 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func ceilDiv64(a int64, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// MarshalBinary writes the superblock's fields in declaration order as
// fixed-width little-endian integers, with no padding beyond the fields
// themselves.
func (sb *Superblock) MarshalBinary() []byte {
	buf := make([]byte, SuperblockSize)
	off := 0
	off += copy(buf[off:], sb.Signature[:])
	off += copy(buf[off:], sb.Description[:])
	for _, v := range []int32{sb.DiskSize, sb.InodeCount, sb.ClusterCount, sb.InodeBitmapStart, sb.DataBitmapStart, sb.InodeTableStart, sb.DataStartAddress} {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	return buf
}

// UnmarshalBinary parses a superblock from exactly SuperblockSize bytes.
func (sb *Superblock) UnmarshalBinary(buf []byte) error {
	if len(buf) < SuperblockSize {
		return io.ErrUnexpectedEOF
	}
	off := 0
	off += copy(sb.Signature[:], buf[off:off+signatureLength])
	off += copy(sb.Description[:], buf[off:off+descriptionLength])
	fields := []*int32{&sb.DiskSize, &sb.InodeCount, &sb.ClusterCount, &sb.InodeBitmapStart, &sb.DataBitmapStart, &sb.InodeTableStart, &sb.DataStartAddress}
	for _, f := range fields {
		*f = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return nil
}

// Save writes the superblock at offset 0 of w.
func (sb *Superblock) Save(w io.WriterAt) error {
	_, err := w.WriteAt(sb.MarshalBinary(), 0)
	return err
}

// LoadSuperblock reads and parses the superblock from offset 0 of r.
func LoadSuperblock(r io.ReaderAt) (*Superblock, error) {
	buf := make([]byte, SuperblockSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	sb := &Superblock{}
	if err := sb.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return sb, nil
}

// InodeBitmapLen is the byte length of the inode bitmap region.
func (sb *Superblock) InodeBitmapLen() int {
	return int(ceilDiv32(sb.InodeCount, 8))
}

// DataBitmapLen is the byte length of the data bitmap region.
func (sb *Superblock) DataBitmapLen() int {
	return int(ceilDiv32(sb.ClusterCount, 8))
}

// ClusterOffset returns the absolute backing-file offset of cluster index idx.
func (sb *Superblock) ClusterOffset(idx int32) int64 {
	return int64(sb.DataStartAddress) + int64(idx)*ClusterSize
}

// InodeOffset returns the absolute backing-file offset of inode id.
func (sb *Superblock) InodeOffset(id int32) int64 {
	return int64(sb.InodeTableStart) + int64(id)*InodeSize
}
