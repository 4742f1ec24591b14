package pfs

import "github.com/hanwen/go-fuse/v2/fuse"

// unixMode computes the synthetic FUSE mode bits for an inode. Permissions,
// ownership and timestamps are not modeled by this filesystem, so every
// directory is exposed read-execute-only (0555) and every regular file
// read-only (0444).
func unixMode(isDir bool) uint32 {
	if isDir {
		return fuse.S_IFDIR | 0555
	}
	return fuse.S_IFREG | 0444
}
