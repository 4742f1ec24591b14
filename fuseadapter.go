package pfs

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// mountStartTime stamps every synthetic fuse.Attr returned by a mount; the
// core has no timestamp fields, so every node reports the moment the
// process initialised this package.
var mountStartTime = time.Now()

// fuseNode is an additive, read-only FUSE view over a Filesystem. It sits
// strictly above the facade: every call locks mu before touching fsys, so
// the single-threaded core never observes concurrent access even though
// the kernel can issue overlapping requests.
type fuseNode struct {
	fs.Inode

	fsys *Filesystem
	mu   *sync.Mutex
	path string
}

var (
	_ fs.NodeLookuper   = (*fuseNode)(nil)
	_ fs.NodeReaddirer  = (*fuseNode)(nil)
	_ fs.NodeOpener     = (*fuseNode)(nil)
	_ fs.NodeReader     = (*fuseNode)(nil)
	_ fs.NodeGetattrer  = (*fuseNode)(nil)
)

// ServeFUSE mounts fsys read-only at mountpoint and returns the running
// server; callers are responsible for calling Wait or Unmount on it.
func ServeFUSE(fsys *Filesystem, mountpoint string) (*fuse.Server, error) {
	root := &fuseNode{fsys: fsys, mu: &sync.Mutex{}, path: "/"}
	return fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   "pfs",
			Name:     "pfs",
			ReadOnly: true,
		},
	})
}

func (n *fuseNode) childPath(name string) string {
	if n.path == "/" {
		return "/" + name
	}
	return n.path + "/" + name
}

func (n *fuseNode) fillAttr(attr *fuse.Attr, ino *Inode) {
	attr.Mode = unixMode(ino.IsDir)
	attr.Ino = uint64(ino.ID) + 1
	attr.Size = 0
	if !ino.IsDir {
		attr.Size = uint64(ino.FileSize)
	}
	stamp := uint64(mountStartTime.Unix())
	attr.Mtime, attr.Atime, attr.Ctime = stamp, stamp, stamp
}

func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir, err := n.fsys.resolve(n.path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	item, err := n.fsys.data.FindDirectoryItem(name, dir)
	if err != nil {
		return nil, syscall.ENOENT
	}
	child, err := n.fsys.inodes.Load(item.InodeID)
	if err != nil {
		return nil, syscall.ENOENT
	}

	n.fillAttr(&out.Attr, child)
	out.SetEntryTimeout(time.Second)
	out.SetAttrTimeout(time.Second)

	childNode := &fuseNode{fsys: n.fsys, mu: n.mu, path: n.childPath(name)}
	stable := fs.StableAttr{Mode: unixMode(child.IsDir), Ino: uint64(child.ID) + 1}
	return n.NewInode(ctx, childNode, stable), 0
}

func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir, err := n.fsys.resolve(n.path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	items, err := n.fsys.data.ListDirectory(dir)
	if err != nil {
		return nil, syscall.EIO
	}

	entries := make([]fuse.DirEntry, 0, len(items))
	for _, it := range items {
		mode := uint32(fuse.S_IFREG)
		if child, err := n.fsys.inodes.Load(it.InodeID); err == nil && child.IsDir {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{
			Name: it.NameString(),
			Mode: mode,
			Ino:  uint64(it.InodeID) + 1,
		})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *fuseNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *fuseNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ino, err := n.fsys.resolve(n.path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	content, err := n.fsys.data.ReadFile(ino)
	if err != nil {
		return nil, syscall.EIO
	}
	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return fuse.ReadResultData(content[off:end]), 0
}

func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()

	ino, err := n.fsys.resolve(n.path)
	if err != nil {
		return syscall.ENOENT
	}
	n.fillAttr(&out.Attr, ino)
	return 0
}
