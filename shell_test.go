package pfs_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/markovd/pfs"
)

// newTestShell attaches a fresh, unformatted Shell to a backing path inside
// t.TempDir. Callers issue "format" themselves to mirror how a real session
// starts (NewShell itself never formats — a missing backing file just means
// an unformatted filesystem, per §6).
func newTestShell(t *testing.T) *pfs.Shell {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backing.img")
	return pfs.NewShell(path)
}

func mustExec(t *testing.T, sh *pfs.Shell, line, want string) string {
	t.Helper()
	got, err := sh.Exec(line)
	if err != nil {
		t.Fatalf("Exec(%q): unexpected error %v", line, err)
	}
	if want != "" && got != want {
		t.Errorf("Exec(%q) = %q, want %q", line, got, want)
	}
	return got
}

func TestShellFormatAndPwd(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "pwd", "/")
}

func TestShellFormatBadArgs(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format", "CANNOT CREATE FILE")
	mustExec(t, sh, "format notanumber", "CANNOT CREATE FILE")
}

func TestShellMkdirLsCd(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")

	mustExec(t, sh, "mkdir /a", "OK")
	mustExec(t, sh, "mkdir /a/b", "OK")
	mustExec(t, sh, "cd /a/b", "OK")
	mustExec(t, sh, "pwd", "/a/b")

	if got := mustExec(t, sh, "ls /a", ""); got != "+. +.. +b" {
		t.Errorf("ls /a = %q, want %q", got, "+. +.. +b")
	}
}

func TestShellMkdirExists(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "mkdir /a", "OK")
	mustExec(t, sh, "mkdir /a", "EXISTS")
}

func TestShellMkdirPathNotFound(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "mkdir /missing/a", "PATH NOT FOUND")
}

func TestShellCdPathNotFound(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "cd /nope", "PATH NOT FOUND")
}

func TestShellIncpCatInfo(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")

	hostPath := filepath.Join(t.TempDir(), "host.txt")
	if err := writeHostFile(hostPath, []byte("hello\n")); err != nil {
		t.Fatalf("write host file: %v", err)
	}

	mustExec(t, sh, "incp "+hostPath+" /f", "OK")
	if got := mustExec(t, sh, "cat /f", ""); got != "hello\n" {
		t.Errorf("cat /f = %q, want %q", got, "hello\n")
	}
	if got := mustExec(t, sh, "info /f", ""); !strings.Contains(got, "6") {
		t.Errorf("info /f = %q, want it to mention size 6", got)
	}
}

func TestShellMkdirRmdirEmpty(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "mkdir /d", "OK")
	mustExec(t, sh, "rmdir /d", "OK")

	if got := mustExec(t, sh, "ls /", ""); got != "+. +.." {
		t.Errorf("ls / = %q, want %q", got, "+. +..")
	}
}

func TestShellRmdirNotEmpty(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "mkdir /d", "OK")

	hostPath := filepath.Join(t.TempDir(), "host.txt")
	if err := writeHostFile(hostPath, []byte("x")); err != nil {
		t.Fatalf("write host file: %v", err)
	}
	mustExec(t, sh, "incp "+hostPath+" /d/f", "OK")
	mustExec(t, sh, "rmdir /d", "NOT EMPTY")
}

func TestShellRmFileNotFound(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "rm /nope", "FILE NOT FOUND")
}

func TestShellCheckCompletes(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "mkdir /a", "OK")

	got, err := sh.Exec("check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.HasSuffix(got, "CHECK COMPLETE") {
		t.Errorf("check output = %q, want it to end with CHECK COMPLETE", got)
	}
}

func TestShellUnknownCommand(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	mustExec(t, sh, "frobnicate /a", "UNKNOWN COMMAND")
}

func TestShellExit(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")
	if _, err := sh.Exec("exit"); err != pfs.ErrExit {
		t.Errorf("exit: expected ErrExit, got %v", err)
	}
}

// TestShellCpSourceVsDestinationNotFound is the regression test for the
// cp/mv/incp error-token distinction spec.md mandates: a missing source
// maps to FILE NOT FOUND, a missing destination parent directory maps to
// PATH NOT FOUND, even though both start life as the same ErrNotFound.
func TestShellCpSourceVsDestinationNotFound(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")

	hostPath := filepath.Join(t.TempDir(), "host.txt")
	if err := writeHostFile(hostPath, []byte("payload")); err != nil {
		t.Fatalf("write host file: %v", err)
	}
	mustExec(t, sh, "incp "+hostPath+" /real", "OK")

	mustExec(t, sh, "cp /missing /dst", "FILE NOT FOUND")
	mustExec(t, sh, "cp /real /missingdir/x", "PATH NOT FOUND")

	mustExec(t, sh, "mv /missing /dst", "FILE NOT FOUND")
	mustExec(t, sh, "mv /real /missingdir/x", "PATH NOT FOUND")

	mustExec(t, sh, "incp "+hostPath+" /missingdir/x", "PATH NOT FOUND")

	missingHost := filepath.Join(t.TempDir(), "doesnotexist.txt")
	mustExec(t, sh, "incp "+missingHost+" /dst2", "FILE NOT FOUND")

	// /real must still be readable: cp's destination failure must not have
	// disturbed the source.
	if got := mustExec(t, sh, "cat /real", ""); got != "payload" {
		t.Errorf("cat /real = %q, want %q", got, "payload")
	}
}

func TestShellLoadReplaysScript(t *testing.T) {
	sh := newTestShell(t)
	mustExec(t, sh, "format 10", "OK")

	scriptPath := filepath.Join(t.TempDir(), "script.txt")
	script := "mkdir /a\nmkdir /a/b\ncd /a/b\npwd\n"
	if err := writeHostFile(scriptPath, []byte(script)); err != nil {
		t.Fatalf("write script: %v", err)
	}

	got, err := sh.Exec("load " + scriptPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lines := strings.Split(got, "\n")
	want := []string{"OK", "OK", "OK", "/a/b"}
	if len(lines) != len(want) {
		t.Fatalf("load output = %q, want %d lines matching %v", got, len(want), want)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("load output line %d = %q, want %q", i, lines[i], w)
		}
	}
}
