// Command pfsh is the interactive command surface over a pfs backing file.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/markovd/pfs"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: pfsh <backing-file>")
		os.Exit(-1)
	}

	sh := pfs.NewShell(os.Args[1])
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out, err := sh.Exec(scanner.Text())
		if err != nil {
			if errors.Is(err, pfs.ErrExit) {
				return
			}
			fmt.Println(err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}
