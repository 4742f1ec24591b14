package pfs

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Filesystem is the mounted state of one backing file: its superblock, both
// bitmaps, the inode and data services built on top of them, and the
// current-directory cursor. A Filesystem is owned by its caller; there is
// no process-wide singleton (see Design Notes on global mutable state).
type Filesystem struct {
	file *os.File

	sb          *Superblock
	inodeBitmap *Bitmap
	dataBitmap  *Bitmap
	inodes      *inodeService
	data        *dataService

	cwdInode *Inode
	cwdPath  string
}

// Format destructively (re)initialises backingPath as a filesystem of the
// given size in megabytes and returns it mounted at root. Legal whether or
// not backingPath previously existed.
func Format(backingPath string, sizeMB int) (*Filesystem, error) {
	sb := NewSuperblock(sizeMB)

	f, err := os.Create(backingPath)
	if err != nil {
		log.Printf("pfs: cannot create backing file %s: %s", backingPath, err)
		return nil, ErrBackingIO
	}
	if err := f.Truncate(int64(sb.DiskSize)); err != nil {
		f.Close()
		return nil, ErrBackingIO
	}

	inodeBitmap := NewBitmap(sb.InodeBitmapLen())
	dataBitmap := NewBitmap(sb.DataBitmapLen())

	if err := sb.Save(f); err != nil {
		f.Close()
		return nil, ErrBackingIO
	}
	if err := inodeBitmap.Save(f, int64(sb.InodeBitmapStart)); err != nil {
		f.Close()
		return nil, err
	}
	if err := dataBitmap.Save(f, int64(sb.DataBitmapStart)); err != nil {
		f.Close()
		return nil, err
	}

	fsys := &Filesystem{
		file:        f,
		sb:          sb,
		inodeBitmap: inodeBitmap,
		dataBitmap:  dataBitmap,
		inodes:      newInodeService(f, f, sb, inodeBitmap),
		data:        newDataService(f, f, sb, dataBitmap),
	}

	root, err := fsys.inodes.create(true, 0)
	if err != nil {
		return nil, err
	}
	if err := fsys.inodes.Save(root); err != nil {
		return nil, err
	}
	if err := fsys.data.InsertDirectoryItem(newDirectoryItem(".", root.ID), root); err != nil {
		return nil, err
	}
	if err := fsys.data.InsertDirectoryItem(newDirectoryItem("..", root.ID), root); err != nil {
		return nil, err
	}
	if err := fsys.inodes.Save(root); err != nil {
		return nil, err
	}

	fsys.cwdInode = root
	fsys.cwdPath = "/"
	return fsys, nil
}

// Mount opens an existing backing file and loads its superblock, bitmaps
// and root inode. The cursor starts at root.
func Mount(backingPath string) (*Filesystem, error) {
	f, err := os.OpenFile(backingPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, ErrUninitialised
	}

	sb, err := LoadSuperblock(f)
	if err != nil {
		log.Printf("pfs: failed to read superblock from %s: %s", backingPath, err)
		f.Close()
		return nil, ErrBackingIO
	}

	inodeBitmap := NewBitmap(sb.InodeBitmapLen())
	if err := inodeBitmap.Load(f, int64(sb.InodeBitmapStart)); err != nil {
		f.Close()
		return nil, ErrBackingIO
	}
	dataBitmap := NewBitmap(sb.DataBitmapLen())
	if err := dataBitmap.Load(f, int64(sb.DataBitmapStart)); err != nil {
		f.Close()
		return nil, ErrBackingIO
	}

	fsys := &Filesystem{
		file:        f,
		sb:          sb,
		inodeBitmap: inodeBitmap,
		dataBitmap:  dataBitmap,
		inodes:      newInodeService(f, f, sb, inodeBitmap),
		data:        newDataService(f, f, sb, dataBitmap),
	}

	root, err := fsys.inodes.LoadRoot()
	if err != nil {
		f.Close()
		return nil, err
	}
	fsys.cwdInode = root
	fsys.cwdPath = "/"
	return fsys, nil
}

// Close releases the backing file handle.
func (fsys *Filesystem) Close() error {
	return fsys.file.Close()
}

// resolve walks path's tokens as directory-item lookups starting from root
// (absolute paths) or the current directory (relative paths). Because '.'
// and '..' are themselves stored DirectoryItems in every directory, they
// need no special-casing here.
func (fsys *Filesystem) resolve(path string) (*Inode, error) {
	cur := fsys.cwdInode
	if IsAbsolute(path) {
		root, err := fsys.inodes.LoadRoot()
		if err != nil {
			return nil, err
		}
		cur = root
	}
	for _, tok := range ParsePath(path) {
		if !cur.IsDir {
			return nil, ErrNotADirectory
		}
		item, err := fsys.data.FindDirectoryItem(tok, cur)
		if err != nil {
			return nil, ErrNotFound
		}
		cur, err = fsys.inodes.Load(item.InodeID)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// propagateSize applies delta to the file_size of parentPath and every one
// of its ancestors up to and including root. Only create_file/remove_file
// propagate; mkdir/rmdir deliberately do not (§9 open question: directory
// file_size accumulates only regular-file bytes).
func (fsys *Filesystem) propagateSize(parentPath string, delta int32) error {
	tokens := ParsePath(parentPath)
	for i := len(tokens); i >= 0; i-- {
		p := "/" + strings.Join(tokens[:i], "/")
		ino, err := fsys.resolve(p)
		if err != nil {
			return err
		}
		ino.FileSize += delta
		if err := fsys.inodes.Save(ino); err != nil {
			return err
		}
	}
	return nil
}

// Pwd returns the current absolute path.
func (fsys *Filesystem) Pwd() string {
	return fsys.cwdPath
}

// Cd changes the current directory cursor.
func (fsys *Filesystem) Cd(path string) error {
	abs := MakeAbsolute(fsys.cwdPath, path)
	target, err := fsys.resolve(abs)
	if err != nil {
		return ErrNotFound
	}
	if !target.IsDir {
		return ErrNotADirectory
	}
	fsys.cwdInode = target
	fsys.cwdPath = abs
	return nil
}

// Ls lists the entries of the directory at path.
func (fsys *Filesystem) Ls(path string) ([]DirectoryItem, error) {
	abs := MakeAbsolute(fsys.cwdPath, path)
	dir, err := fsys.resolve(abs)
	if err != nil {
		return nil, ErrNotFound
	}
	if !dir.IsDir {
		return nil, ErrNotADirectory
	}
	return fsys.data.ListDirectory(dir)
}

// Mkdir creates an empty directory at path, wiring up its '.' and '..'
// entries. It does not propagate any size delta to ancestors.
func (fsys *Filesystem) Mkdir(path string) error {
	abs := MakeAbsolute(fsys.cwdPath, path)
	parentPath, leaf := SplitParentLeaf(abs)
	if leaf == "" {
		return ErrInvalidPath
	}
	if len(leaf) > MaxNameLength-1 {
		return ErrNameTooLong
	}

	parent, err := fsys.resolve(parentPath)
	if err != nil {
		return ErrNotFound
	}
	if !parent.IsDir {
		return ErrNotADirectory
	}
	if _, err := fsys.data.FindDirectoryItem(leaf, parent); err == nil {
		return ErrExists
	}

	newDir, err := fsys.inodes.create(true, 0)
	if err != nil {
		return err
	}
	if err := fsys.inodes.Save(newDir); err != nil {
		return err
	}
	if err := fsys.data.InsertDirectoryItem(newDirectoryItem(leaf, newDir.ID), parent); err != nil {
		return err
	}
	if err := fsys.inodes.Save(parent); err != nil {
		return err
	}
	if err := fsys.data.InsertDirectoryItem(newDirectoryItem(".", newDir.ID), newDir); err != nil {
		return err
	}
	if err := fsys.data.InsertDirectoryItem(newDirectoryItem("..", parent.ID), newDir); err != nil {
		return err
	}
	return fsys.inodes.Save(newDir)
}

// Rmdir removes an empty directory: only '.' and '..' may remain, meaning
// no direct link past direct[0] and no indirect link may be in use, and the
// first free slot in direct[0]'s cluster must be exactly slot 2.
func (fsys *Filesystem) Rmdir(path string) error {
	abs := MakeAbsolute(fsys.cwdPath, path)
	dir, err := fsys.resolve(abs)
	if err != nil {
		return ErrNotFound
	}
	if !dir.IsDir {
		return ErrNotADirectory
	}
	for _, d := range dir.Direct[1:] {
		if d != EmptyLink {
			return ErrNotEmpty
		}
	}
	for _, ind := range dir.Indirect {
		if ind != EmptyLink {
			return ErrNotEmpty
		}
	}
	slot, err := fsys.data.findFreeSlotInCluster(dir.Direct[0])
	if err != nil {
		return err
	}
	if slot != 2 {
		return ErrNotEmpty
	}

	parentPath, leaf := SplitParentLeaf(abs)
	parent, err := fsys.resolve(parentPath)
	if err != nil {
		return ErrNotFound
	}
	if _, err := fsys.data.DeleteDirectoryItem(leaf, parent); err != nil {
		return err
	}
	if err := fsys.inodes.Save(parent); err != nil {
		return err
	}
	if err := fsys.data.ClearInodeData(dir); err != nil {
		return err
	}
	return fsys.inodes.Remove(dir)
}

// CreateFile writes content as a new regular file at path, then propagates
// len(content) as a file_size delta to every ancestor up to root.
func (fsys *Filesystem) CreateFile(path string, content []byte) error {
	abs := MakeAbsolute(fsys.cwdPath, path)
	parentPath, leaf := SplitParentLeaf(abs)
	if leaf == "" {
		return ErrInvalidPath
	}
	if len(leaf) > MaxNameLength-1 {
		return ErrNameTooLong
	}

	parent, err := fsys.resolve(parentPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPathNotFoundDest, ErrNotFound)
	}
	if !parent.IsDir {
		return fmt.Errorf("%w: %w", ErrPathNotFoundDest, ErrNotADirectory)
	}
	if _, err := fsys.data.FindDirectoryItem(leaf, parent); err == nil {
		return ErrExists
	}

	direct, indirect, err := fsys.data.WriteFileData(content)
	if err != nil {
		return err
	}
	ino, err := fsys.inodes.create(false, int32(len(content)))
	if err != nil {
		return err
	}
	ino.Direct = direct
	ino.Indirect = indirect
	if err := fsys.inodes.Save(ino); err != nil {
		return err
	}
	if err := fsys.data.InsertDirectoryItem(newDirectoryItem(leaf, ino.ID), parent); err != nil {
		return err
	}
	if err := fsys.inodes.Save(parent); err != nil {
		return err
	}
	return fsys.propagateSize(parentPath, int32(len(content)))
}

// RemoveFile deletes a regular file and propagates -file_size to every
// ancestor up to root.
func (fsys *Filesystem) RemoveFile(path string) error {
	abs := MakeAbsolute(fsys.cwdPath, path)
	parentPath, leaf := SplitParentLeaf(abs)

	parent, err := fsys.resolve(parentPath)
	if err != nil {
		return ErrNotFound
	}
	target, err := fsys.resolve(abs)
	if err != nil {
		return ErrNotFound
	}
	if target.IsDir {
		return ErrIsADirectory
	}
	size := target.FileSize

	if _, err := fsys.data.DeleteDirectoryItem(leaf, parent); err != nil {
		return err
	}
	if err := fsys.inodes.Save(parent); err != nil {
		return err
	}
	if err := fsys.data.ClearInodeData(target); err != nil {
		return err
	}
	if err := fsys.inodes.Remove(target); err != nil {
		return err
	}
	return fsys.propagateSize(parentPath, -size)
}

// Cat returns the content of the regular file at path.
func (fsys *Filesystem) Cat(path string) ([]byte, error) {
	abs := MakeAbsolute(fsys.cwdPath, path)
	ino, err := fsys.resolve(abs)
	if err != nil {
		return nil, ErrNotFound
	}
	if ino.IsDir {
		return nil, ErrIsADirectory
	}
	return fsys.data.ReadFile(ino)
}

// Cp copies the content of src into a newly created file at dst.
func (fsys *Filesystem) Cp(src, dst string) error {
	content, err := fsys.Cat(src)
	if err != nil {
		return err
	}
	return fsys.CreateFile(dst, content)
}

// Mv copies src to dst then removes src.
func (fsys *Filesystem) Mv(src, dst string) error {
	if err := fsys.Cp(src, dst); err != nil {
		return err
	}
	return fsys.RemoveFile(src)
}

// Incp imports a host file into the virtual filesystem.
func (fsys *Filesystem) Incp(hostPath, vfsPath string) error {
	content, err := os.ReadFile(hostPath)
	if err != nil {
		return ErrNotFound
	}
	return fsys.CreateFile(vfsPath, content)
}

// Outcp exports a virtual file to the host filesystem.
func (fsys *Filesystem) Outcp(vfsPath, hostPath string) error {
	content, err := fsys.Cat(vfsPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(hostPath, content, 0o644); err != nil {
		return ErrBackingIO
	}
	return nil
}

// StatInfo is the result of Stat: a snapshot of an inode's metadata.
type StatInfo struct {
	Name     string
	ID       int32
	IsDir    bool
	Size     int32
	Direct   [DirectLinksCount]int32
	Indirect [IndirectLinksCount]int32
}

// Stat reports metadata about the file or directory at path.
func (fsys *Filesystem) Stat(path string) (StatInfo, error) {
	abs := MakeAbsolute(fsys.cwdPath, path)
	ino, err := fsys.resolve(abs)
	if err != nil {
		return StatInfo{}, ErrNotFound
	}
	_, leaf := SplitParentLeaf(abs)
	if leaf == "" {
		leaf = "/"
	}
	return StatInfo{
		Name:     leaf,
		ID:       ino.ID,
		IsDir:    ino.IsDir,
		Size:     ino.FileSize,
		Direct:   ino.Direct,
		Indirect: ino.Indirect,
	}, nil
}

// Break is a testing hook: it strips every non-dot entry from root and
// clears the link arrays of the inodes they referenced, manufacturing
// orphans for Check to find.
func (fsys *Filesystem) Break() error {
	root, err := fsys.inodes.LoadRoot()
	if err != nil {
		return err
	}
	items, err := fsys.data.ListDirectory(root)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.NameEquals(".") || it.NameEquals("..") {
			continue
		}
		if child, err := fsys.inodes.Load(it.InodeID); err == nil {
			child.ClearLinks()
			_ = fsys.inodes.Save(child)
		}
		if _, err := fsys.data.DeleteDirectoryItem(it.NameString(), root); err != nil {
			return err
		}
	}
	return fsys.inodes.Save(root)
}
