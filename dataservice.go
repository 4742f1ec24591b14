package pfs

import (
	"encoding/binary"
	"io"
)

// dataService manages allocation of data clusters and all reading/writing
// of directory and file content through an inode's direct and indirect
// links. It never reshuffles existing links to close gaps left by deletion
// — fragmentation management is explicitly out of scope for this
// filesystem, so a freed slot simply goes back to EmptyLink in place.
type dataService struct {
	rw     io.ReaderAt
	wa     io.WriterAt
	sb     *Superblock
	bitmap *Bitmap
}

func newDataService(rw io.ReaderAt, wa io.WriterAt, sb *Superblock, bitmap *Bitmap) *dataService {
	return &dataService{rw: rw, wa: wa, sb: sb, bitmap: bitmap}
}

// clusterIndexFor returns n free data cluster indices without marking them
// allocated.
func (s *dataService) clusterIndexFor(n int) ([]int32, error) {
	idxs, err := s.bitmap.FindFree(n)
	if err != nil {
		return nil, ErrNoFreeCluster
	}
	out := make([]int32, len(idxs))
	for i, v := range idxs {
		out[i] = int32(v)
	}
	return out, nil
}

func (s *dataService) readCluster(idx int32) ([]byte, error) {
	buf := make([]byte, ClusterSize)
	if _, err := s.rw.ReadAt(buf, s.sb.ClusterOffset(idx)); err != nil {
		return nil, ErrBackingIO
	}
	return buf, nil
}

func (s *dataService) writeClusterRaw(idx int32, buf []byte) error {
	if len(buf) != ClusterSize {
		padded := make([]byte, ClusterSize)
		copy(padded, buf)
		buf = padded
	}
	if _, err := s.wa.WriteAt(buf, s.sb.ClusterOffset(idx)); err != nil {
		return ErrBackingIO
	}
	return nil
}

func (s *dataService) saveDataBitmap() error {
	return s.bitmap.Save(s.wa, int64(s.sb.DataBitmapStart))
}

// allocCluster finds a free cluster, marks it allocated and persists the
// bitmap immediately.
func (s *dataService) allocCluster() (int32, error) {
	idx, err := s.bitmap.FirstFree()
	if err != nil {
		return 0, ErrNoFreeCluster
	}
	s.bitmap.Set(idx)
	if err := s.saveDataBitmap(); err != nil {
		return 0, err
	}
	return int32(idx), nil
}

// freeClusterNoSave zeroes a cluster and clears its bitmap bit without
// persisting the bitmap; callers batch the persist after clearing several
// clusters.
func (s *dataService) freeClusterNoSave(idx int32) error {
	if err := s.writeClusterRaw(idx, make([]byte, ClusterSize)); err != nil {
		return err
	}
	s.bitmap.Clear(int(idx))
	return nil
}

func (s *dataService) readIndirectList(idx int32) ([]int32, error) {
	buf, err := s.readCluster(idx)
	if err != nil {
		return nil, err
	}
	list := make([]int32, LinksPerIndirectCluster)
	for i := range list {
		list[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return list, nil
}

func (s *dataService) writeIndirectList(idx int32, list []int32) error {
	buf := make([]byte, ClusterSize)
	for i := 0; i < LinksPerIndirectCluster; i++ {
		v := EmptyLink
		if i < len(list) {
			v = list[i]
		}
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return s.writeClusterRaw(idx, buf)
}

// reachableClusters walks direct[0..] then, for each non-empty indirect
// link, the clusters listed in its indirect-list cluster (Invariant A). The
// order returned is the canonical direct-then-indirect traversal order used
// by directory listing and file reads alike.
func (s *dataService) reachableClusters(ino *Inode) ([]int32, error) {
	var clusters []int32
	for _, d := range ino.Direct {
		if d != EmptyLink {
			clusters = append(clusters, d)
		}
	}
	for _, ind := range ino.Indirect {
		if ind == EmptyLink {
			continue
		}
		list, err := s.readIndirectList(ind)
		if err != nil {
			return nil, err
		}
		for _, c := range list {
			if c != EmptyLink {
				clusters = append(clusters, c)
			}
		}
	}
	return clusters, nil
}

func decodeDirItems(buf []byte) []DirectoryItem {
	items := make([]DirectoryItem, 0, ItemsPerCluster)
	for slot := 0; slot < ItemsPerCluster; slot++ {
		off := slot * DirectoryItemSize
		var item DirectoryItem
		_ = item.UnmarshalBinary(buf[off : off+DirectoryItemSize])
		if !item.IsFree() {
			items = append(items, item)
		}
	}
	return items
}

// ListDirectory enumerates every non-free DirectoryItem reachable from dir.
func (s *dataService) ListDirectory(dir *Inode) ([]DirectoryItem, error) {
	clusters, err := s.reachableClusters(dir)
	if err != nil {
		return nil, err
	}
	var all []DirectoryItem
	for _, c := range clusters {
		buf, err := s.readCluster(c)
		if err != nil {
			return nil, err
		}
		all = append(all, decodeDirItems(buf)...)
	}
	return all, nil
}

// FindDirectoryItem returns the first item in dir whose name matches.
func (s *dataService) FindDirectoryItem(name string, dir *Inode) (DirectoryItem, error) {
	items, err := s.ListDirectory(dir)
	if err != nil {
		return DirectoryItem{}, err
	}
	for _, it := range items {
		if it.NameEquals(name) {
			return it, nil
		}
	}
	return DirectoryItem{}, ErrNotFound
}

// findFreeSlotInCluster returns the slot index of the first free
// DirectoryItem record in the given cluster, or -1 if the cluster is full.
func (s *dataService) findFreeSlotInCluster(clusterIdx int32) (int, error) {
	buf, err := s.readCluster(clusterIdx)
	if err != nil {
		return -1, err
	}
	for slot := 0; slot < ItemsPerCluster; slot++ {
		off := slot * DirectoryItemSize
		if buf[off+4] == 0 { // first byte of the name field
			return slot, nil
		}
	}
	return -1, nil
}

func (s *dataService) writeItemAt(clusterIdx int32, slot int, item DirectoryItem) error {
	buf, err := s.readCluster(clusterIdx)
	if err != nil {
		return err
	}
	off := slot * DirectoryItemSize
	copy(buf[off:off+DirectoryItemSize], item.MarshalBinary())
	return s.writeClusterRaw(clusterIdx, buf)
}

func (s *dataService) newClusterWithItem(item DirectoryItem) (int32, error) {
	idx, err := s.allocCluster()
	if err != nil {
		return 0, err
	}
	buf := make([]byte, ClusterSize)
	copy(buf, item.MarshalBinary())
	if err := s.writeClusterRaw(idx, buf); err != nil {
		return 0, err
	}
	return idx, nil
}

// InsertDirectoryItem appends item to dir following the append algorithm:
// reuse a free slot in the last direct cluster, else grow a new direct
// cluster, else spill into the indirect lists, allocating a fresh
// indirect-list cluster when the current one fills up.
func (s *dataService) InsertDirectoryItem(item DirectoryItem, dir *Inode) error {
	// (1) brand new directory: no direct link at all yet.
	if dir.Direct[0] == EmptyLink {
		idx, err := s.newClusterWithItem(item)
		if err != nil {
			return err
		}
		dir.AddDirectLink(idx)
		return nil
	}

	// (2) try the last filled direct cluster's free slots.
	k := dir.LastFilledDirectLink()
	lastCluster := dir.Direct[k]
	if slot, err := s.findFreeSlotInCluster(lastCluster); err != nil {
		return err
	} else if slot != -1 {
		return s.writeItemAt(lastCluster, slot, item)
	}

	// (3) grow another direct cluster if one is still free.
	if dir.FirstFreeDirectLink() != -1 {
		idx, err := s.newClusterWithItem(item)
		if err != nil {
			return err
		}
		dir.AddDirectLink(idx)
		return nil
	}

	// (4)-(6) spill into indirect lists.
	return s.insertIntoIndirect(item, dir)
}

func (s *dataService) insertIntoIndirect(item DirectoryItem, dir *Inode) error {
	j := dir.LastFilledIndirectLink()
	if j == -1 {
		return s.insertFreshIndirectList(item, dir)
	}

	listIdx := dir.Indirect[j]
	list, err := s.readIndirectList(listIdx)
	if err != nil {
		return err
	}

	lastFilled, firstFree := -1, -1
	for i, v := range list {
		if v != EmptyLink {
			lastFilled = i
		} else if firstFree == -1 {
			firstFree = i
		}
	}

	if firstFree == -1 {
		// indirect-list cluster is full; try another indirect link.
		if dir.FirstFreeIndirectLink() != -1 {
			return s.insertFreshIndirectList(item, dir)
		}
		return ErrDirectoryFull
	}

	if lastFilled != -1 {
		if slot, err := s.findFreeSlotInCluster(list[lastFilled]); err != nil {
			return err
		} else if slot != -1 {
			return s.writeItemAt(list[lastFilled], slot, item)
		}
	}

	idx, err := s.newClusterWithItem(item)
	if err != nil {
		return err
	}
	list[firstFree] = idx
	return s.writeIndirectList(listIdx, list)
}

func (s *dataService) insertFreshIndirectList(item DirectoryItem, dir *Inode) error {
	itemCluster, err := s.newClusterWithItem(item)
	if err != nil {
		return err
	}
	listIdx, err := s.allocCluster()
	if err != nil {
		return err
	}
	list := make([]int32, LinksPerIndirectCluster)
	for i := range list {
		list[i] = EmptyLink
	}
	list[0] = itemCluster
	if err := s.writeIndirectList(listIdx, list); err != nil {
		return err
	}
	dir.AddIndirectLink(listIdx)
	return nil
}

// DeleteDirectoryItem removes the item named name from dir, freeing any
// cluster (item or indirect-list) that becomes entirely empty as a result.
func (s *dataService) DeleteDirectoryItem(name string, dir *Inode) (DirectoryItem, error) {
	for di, clusterIdx := range dir.Direct {
		if clusterIdx == EmptyLink {
			continue
		}
		item, slot, err := s.locateInCluster(name, clusterIdx)
		if err != nil {
			return DirectoryItem{}, err
		}
		if slot == -1 {
			continue
		}
		empty, err := s.zeroSlotAndCheckEmpty(clusterIdx, slot)
		if err != nil {
			return DirectoryItem{}, err
		}
		if empty {
			if err := s.freeClusterNoSave(clusterIdx); err != nil {
				return DirectoryItem{}, err
			}
			if err := s.saveDataBitmap(); err != nil {
				return DirectoryItem{}, err
			}
			dir.Direct[di] = EmptyLink
		}
		return item, nil
	}

	for ii, listIdx := range dir.Indirect {
		if listIdx == EmptyLink {
			continue
		}
		list, err := s.readIndirectList(listIdx)
		if err != nil {
			return DirectoryItem{}, err
		}
		for li, clusterIdx := range list {
			if clusterIdx == EmptyLink {
				continue
			}
			item, slot, err := s.locateInCluster(name, clusterIdx)
			if err != nil {
				return DirectoryItem{}, err
			}
			if slot == -1 {
				continue
			}
			empty, err := s.zeroSlotAndCheckEmpty(clusterIdx, slot)
			if err != nil {
				return DirectoryItem{}, err
			}
			if empty {
				if err := s.freeClusterNoSave(clusterIdx); err != nil {
					return DirectoryItem{}, err
				}
				list[li] = EmptyLink
				listEmpty := true
				for _, v := range list {
					if v != EmptyLink {
						listEmpty = false
						break
					}
				}
				if listEmpty {
					if err := s.freeClusterNoSave(listIdx); err != nil {
						return DirectoryItem{}, err
					}
					dir.Indirect[ii] = EmptyLink
				} else if err := s.writeIndirectList(listIdx, list); err != nil {
					return DirectoryItem{}, err
				}
				if err := s.saveDataBitmap(); err != nil {
					return DirectoryItem{}, err
				}
			}
			return item, nil
		}
	}

	return DirectoryItem{}, ErrNotFound
}

// locateInCluster scans a directory-item cluster for name, returning the
// matched item and its slot index, or slot -1 if not present.
func (s *dataService) locateInCluster(name string, clusterIdx int32) (DirectoryItem, int, error) {
	buf, err := s.readCluster(clusterIdx)
	if err != nil {
		return DirectoryItem{}, -1, err
	}
	for slot := 0; slot < ItemsPerCluster; slot++ {
		off := slot * DirectoryItemSize
		var item DirectoryItem
		_ = item.UnmarshalBinary(buf[off : off+DirectoryItemSize])
		if !item.IsFree() && item.NameEquals(name) {
			return item, slot, nil
		}
	}
	return DirectoryItem{}, -1, nil
}

// zeroSlotAndCheckEmpty clears the slot at the given position and reports
// whether the whole cluster is now free.
func (s *dataService) zeroSlotAndCheckEmpty(clusterIdx int32, slot int) (bool, error) {
	buf, err := s.readCluster(clusterIdx)
	if err != nil {
		return false, err
	}
	off := slot * DirectoryItemSize
	for i := range buf[off : off+DirectoryItemSize] {
		buf[off+i] = 0
	}
	if err := s.writeClusterRaw(clusterIdx, buf); err != nil {
		return false, err
	}
	for s2 := 0; s2 < ItemsPerCluster; s2++ {
		o := s2 * DirectoryItemSize
		if buf[o+4] != 0 {
			return false, nil
		}
	}
	return true, nil
}

// ClearInodeData zeroes and frees every cluster referenced directly or
// indirectly by ino, including indirect-list clusters themselves.
func (s *dataService) ClearInodeData(ino *Inode) error {
	for _, d := range ino.Direct {
		if d == EmptyLink {
			continue
		}
		if err := s.freeClusterNoSave(d); err != nil {
			return err
		}
	}
	for _, ind := range ino.Indirect {
		if ind == EmptyLink {
			continue
		}
		list, err := s.readIndirectList(ind)
		if err != nil {
			return err
		}
		for _, c := range list {
			if c != EmptyLink {
				if err := s.freeClusterNoSave(c); err != nil {
					return err
				}
			}
		}
		if err := s.freeClusterNoSave(ind); err != nil {
			return err
		}
	}
	return s.saveDataBitmap()
}

// ReadFile concatenates every cluster reachable from ino in
// direct-then-indirect order and truncates the result to ino.FileSize.
func (s *dataService) ReadFile(ino *Inode) ([]byte, error) {
	clusters, err := s.reachableClusters(ino)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(clusters)*ClusterSize)
	for _, c := range clusters {
		data, err := s.readCluster(c)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}
	if int(ino.FileSize) < len(buf) {
		buf = buf[:ino.FileSize]
	}
	return buf, nil
}

func ceilDivInt(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// maxDataClusters is the largest file size (in clusters) representable with
// one level of indirection: D direct clusters plus I indirect lists of L
// clusters each.
const maxDataClusters = DirectLinksCount + IndirectLinksCount*LinksPerIndirectCluster

// WriteFileData allocates and writes the clusters needed to hold data,
// following the allocation plan from §4.E: the first D clusters are filled
// directly, and every subsequent group of up to L clusters is addressed
// through a freshly allocated indirect-list cluster.
func (s *dataService) WriteFileData(data []byte) ([DirectLinksCount]int32, [IndirectLinksCount]int32, error) {
	var direct [DirectLinksCount]int32
	var indirect [IndirectLinksCount]int32
	for i := range direct {
		direct[i] = EmptyLink
	}
	for i := range indirect {
		indirect[i] = EmptyLink
	}

	dataClusters := ceilDivInt(len(data), ClusterSize)
	if dataClusters > maxDataClusters {
		return direct, indirect, ErrNoFreeCluster
	}

	directCount := minInt(dataClusters, DirectLinksCount)
	remaining := dataClusters - directCount

	indirectGroups := 0
	for r := remaining; r > 0; {
		chunk := minInt(r, LinksPerIndirectCluster)
		r -= chunk
		indirectGroups++
	}

	total := dataClusters + indirectGroups
	indices, err := s.clusterIndexFor(total)
	if err != nil {
		return direct, indirect, err
	}
	for _, idx := range indices {
		s.bitmap.Set(int(idx))
	}
	if err := s.saveDataBitmap(); err != nil {
		return direct, indirect, err
	}

	writeChunk := func(clusterIdx int32, chunkNum int) error {
		start := chunkNum * ClusterSize
		end := minInt(start+ClusterSize, len(data))
		return s.writeClusterRaw(clusterIdx, data[start:end])
	}

	pos := 0
	for i := 0; i < directCount; i++ {
		direct[i] = indices[pos]
		if err := writeChunk(indices[pos], i); err != nil {
			return direct, indirect, err
		}
		pos++
	}

	chunkNum := directCount
	indirectSlot := 0
	for pos < total {
		listIdx := indices[pos]
		pos++
		var entries []int32
		for len(entries) < LinksPerIndirectCluster && chunkNum < dataClusters {
			idx := indices[pos]
			if err := writeChunk(idx, chunkNum); err != nil {
				return direct, indirect, err
			}
			entries = append(entries, idx)
			chunkNum++
			pos++
		}
		if err := s.writeIndirectList(listIdx, entries); err != nil {
			return direct, indirect, err
		}
		indirect[indirectSlot] = listIdx
		indirectSlot++
	}

	return direct, indirect, nil
}
