// Command pfsmount exposes a pfs backing file as a read-only FUSE mount.
package main

import (
	"fmt"
	"os"

	"github.com/markovd/pfs"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: pfsmount <backing-file> <mountpoint>")
		os.Exit(-1)
	}

	fsys, err := pfs.Mount(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "mount: %s\n", err)
		os.Exit(1)
	}
	defer fsys.Close()

	server, err := pfs.ServeFUSE(fsys, os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fuse mount: %s\n", err)
		os.Exit(1)
	}

	server.Wait()
}
