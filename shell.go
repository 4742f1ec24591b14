package pfs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// Shell is the ambient command surface described in §6: a line-based
// REPL over a Filesystem, plus script replay via Load. The core never
// formats user-facing messages; Shell is where error kinds become the
// fixed tokens of the command table.
type Shell struct {
	backingPath string
	fsys        *Filesystem
}

// NewShell attaches to backingPath. A missing file is not an error — it
// implies an unformatted filesystem until a "format" command arrives.
func NewShell(backingPath string) *Shell {
	sh := &Shell{backingPath: backingPath}
	if fsys, err := Mount(backingPath); err == nil {
		sh.fsys = fsys
	}
	return sh
}

// ErrExit is returned by Exec for the "exit" command; callers use it to
// break their read loop.
var ErrExit = errors.New("exit")

// Exec tokenizes and runs one command line, returning the text the
// interactive surface should print.
func (sh *Shell) Exec(line string) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}
	cmd, rest := args[0], args[1:]

	handler, ok := commands[cmd]
	if !ok {
		log.Printf("pfs: unknown command %q", cmd)
		return "UNKNOWN COMMAND", nil
	}
	return handler(sh, rest)
}

// commands is filled in init because cmdLoad reaches back into Exec, which
// reads this table; a package-level initializer would form a cycle.
var commands map[string]func(*Shell, []string) (string, error)

func init() {
	commands = map[string]func(*Shell, []string) (string, error){
		"format": cmdFormat,
		"incp":   cmdIncp,
		"outcp":  cmdOutcp,
		"pwd":    cmdPwd,
		"cd":     cmdCd,
		"ls":     cmdLs,
		"rm":     cmdRm,
		"cat":    cmdCat,
		"info":   cmdInfo,
		"mkdir":  cmdMkdir,
		"rmdir":  cmdRmdir,
		"cp":     cmdCp,
		"mv":     cmdMv,
		"load":   cmdLoad,
		"check":  cmdCheck,
		"break":  cmdBreak,
		"exit":   cmdExit,
	}
}

func (sh *Shell) requireMounted() error {
	if sh.fsys == nil {
		return ErrUninitialised
	}
	return nil
}

func cmdFormat(sh *Shell, args []string) (string, error) {
	if len(args) != 1 {
		return "CANNOT CREATE FILE", nil
	}
	sizeMB, err := strconv.Atoi(args[0])
	if err != nil || sizeMB <= 0 {
		return "CANNOT CREATE FILE", nil
	}
	fsys, err := Format(sh.backingPath, sizeMB)
	if err != nil {
		return "CANNOT CREATE FILE", nil
	}
	if sh.fsys != nil {
		sh.fsys.Close()
	}
	sh.fsys = fsys
	return "OK", nil
}

func cmdIncp(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 2 {
		return "PATH NOT FOUND", nil
	}
	if err := sh.fsys.Incp(args[0], args[1]); err != nil {
		return incpErrorToken(err), nil
	}
	return "OK", nil
}

func incpErrorToken(err error) string {
	switch {
	case errors.Is(err, ErrPathNotFoundDest), errors.Is(err, ErrNotADirectory), errors.Is(err, ErrInvalidPath):
		return "PATH NOT FOUND"
	case errors.Is(err, ErrNotFound):
		return "FILE NOT FOUND"
	default:
		return "CANNOT CREATE FILE"
	}
}

func cmdOutcp(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 2 {
		return "FILE NOT FOUND", nil
	}
	if err := sh.fsys.Outcp(args[0], args[1]); err != nil {
		return genericFileErrorToken(err), nil
	}
	return "OK", nil
}

func cmdPwd(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	return sh.fsys.Pwd(), nil
}

func cmdCd(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "PATH NOT FOUND", nil
	}
	if err := sh.fsys.Cd(args[0]); err != nil {
		return "PATH NOT FOUND", nil
	}
	return "OK", nil
}

func cmdLs(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	items, err := sh.fsys.Ls(path)
	if err != nil {
		return "PATH NOT FOUND", nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		prefix := "-"
		if child, err := sh.fsys.resolve(MakeAbsolute(sh.fsys.Pwd(), path)+"/"+it.NameString()); err == nil && child.IsDir {
			prefix = "+"
		}
		lines = append(lines, prefix+it.NameString())
	}
	return strings.Join(lines, " "), nil
}

func cmdRm(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "FILE NOT FOUND", nil
	}
	if err := sh.fsys.RemoveFile(args[0]); err != nil {
		return "FILE NOT FOUND", nil
	}
	return "OK", nil
}

func cmdCat(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "FILE NOT FOUND", nil
	}
	content, err := sh.fsys.Cat(args[0])
	if err != nil {
		return "FILE NOT FOUND", nil
	}
	return string(content), nil
}

func cmdInfo(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "FILE NOT FOUND", nil
	}
	info, err := sh.fsys.Stat(args[0])
	if err != nil {
		return "FILE NOT FOUND", nil
	}
	return fmt.Sprintf("%s - %d - id %d", info.Name, info.Size, info.ID), nil
}

func cmdMkdir(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "PATH NOT FOUND", nil
	}
	switch err := sh.fsys.Mkdir(args[0]); {
	case err == nil:
		return "OK", nil
	case errors.Is(err, ErrExists):
		return "EXISTS", nil
	default:
		return "PATH NOT FOUND", nil
	}
}

func cmdRmdir(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "FILE NOT FOUND", nil
	}
	switch err := sh.fsys.Rmdir(args[0]); {
	case err == nil:
		return "OK", nil
	case errors.Is(err, ErrNotEmpty):
		return "NOT EMPTY", nil
	default:
		return "FILE NOT FOUND", nil
	}
}

func cmdCp(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 2 {
		return "FILE NOT FOUND", nil
	}
	if err := sh.fsys.Cp(args[0], args[1]); err != nil {
		return genericFileErrorToken(err), nil
	}
	return "OK", nil
}

func cmdMv(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 2 {
		return "FILE NOT FOUND", nil
	}
	if err := sh.fsys.Mv(args[0], args[1]); err != nil {
		return genericFileErrorToken(err), nil
	}
	return "OK", nil
}

func genericFileErrorToken(err error) string {
	switch {
	case errors.Is(err, ErrPathNotFoundDest):
		return "PATH NOT FOUND"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIsADirectory):
		return "FILE NOT FOUND"
	default:
		return "PATH NOT FOUND"
	}
}

func cmdCheck(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	report, err := sh.fsys.Check()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, m := range report.SizeMismatches {
		fmt.Fprintf(&b, "SIZE MISMATCH inode %d: expected %d, got %d\n", m.InodeID, m.Expected, m.Actual)
	}
	for _, id := range report.OrphanInodes {
		fmt.Fprintf(&b, "ORPHAN inode %d\n", id)
	}
	b.WriteString("CHECK COMPLETE")
	return b.String(), nil
}

func cmdBreak(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if err := sh.fsys.Break(); err != nil {
		return "", err
	}
	return "OK", nil
}

func cmdExit(sh *Shell, args []string) (string, error) {
	return "", ErrExit
}

// Load replays commands from r, one per line, writing each command's
// output to w. It stops with a wrapped read error on a host read failure,
// and stops without error at an "exit" line; individual command failures
// are printed and replay continues.
func (sh *Shell) Load(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out, err := sh.Exec(line)
		if err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(w, "%s: %v\n", line, err)
			continue
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("pfs: script replay aborted: %s", err)
		return fmt.Errorf("reading script: %w", err)
	}
	return nil
}

func cmdLoad(sh *Shell, args []string) (string, error) {
	if err := sh.requireMounted(); err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "", fmt.Errorf("load: missing host path")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return "", fmt.Errorf("load: %w", err)
	}
	defer f.Close()
	var out strings.Builder
	if err := sh.Load(f, &out); err != nil {
		return "", err
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
