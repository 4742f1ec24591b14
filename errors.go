package pfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrNotFound is returned when a path, directory item, or inode id cannot be located.
	ErrNotFound = errors.New("not found")

	// ErrNotADirectory is returned when a path component that should be a directory is not one.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory is returned when an operation expecting a regular file is given a directory.
	ErrIsADirectory = errors.New("is a directory")

	// ErrNotEmpty is returned by rmdir when the directory still holds entries other than . and ..
	ErrNotEmpty = errors.New("directory not empty")

	// ErrExists is returned when create/mkdir targets a name already present in the parent directory.
	ErrExists = errors.New("already exists")

	// ErrNameTooLong is returned when a leaf name exceeds the maximum of 11 bytes plus terminator.
	ErrNameTooLong = errors.New("name too long")

	// ErrNoFreeInode is returned when the inode bitmap has no cleared bit left.
	ErrNoFreeInode = errors.New("no free inode")

	// ErrNoFreeCluster is returned when the data bitmap cannot satisfy a cluster allocation request.
	ErrNoFreeCluster = errors.New("no free data cluster")

	// ErrDirectoryFull is returned when a directory has exhausted direct and indirect links.
	ErrDirectoryFull = errors.New("directory full")

	// ErrInvalidPath is returned for malformed path arguments.
	ErrInvalidPath = errors.New("invalid path")

	// ErrBackingIO is returned in place of an I/O failure against the backing file.
	ErrBackingIO = errors.New("backing file i/o error")

	// ErrUninitialised is returned when an operation is attempted before format/mount.
	ErrUninitialised = errors.New("filesystem not initialised")

	// ErrPathNotFoundDest marks a failure to resolve the destination's
	// parent directory in a copy/move/import, as opposed to a missing
	// source file. CreateFile, which cp/mv/incp use for the destination,
	// wraps its parent-resolution errors with this sentinel so callers can
	// tell NotFoundSource and PathNotFoundDest apart even though both start
	// from ErrNotFound. Other destination-side errors are not wrapped.
	ErrPathNotFoundDest = errors.New("destination path not found")
)
