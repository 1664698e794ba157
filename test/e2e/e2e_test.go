package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var (
	termfsBin string
	projRoot  string
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	// Build termfs binary once for all tests
	tmpBinDir, err := os.MkdirTemp("", "termfs-bin")
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := os.RemoveAll(tmpBinDir); err != nil {
			panic(err)
		}
	}()

	termfsBin = filepath.Join(tmpBinDir, "termfs")

	// Determine project root
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot determine current file path")
	}
	projRoot = filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", termfsBin, "./cmd")
	cmd.Dir = projRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic(string(out))
	}

	return m.Run()
}

const nodesYAML = `
- path: /etc
  type: dir
  perms: rwxr-xr-x
- path: /etc/motd
  type: file
  owner: alice
  group: staff
  content: "Hello from termfs"
- path: /motd
  type: symlink
  target: /etc/motd
- path: /dev/null
  type: chardev
`

// writeFile writes content to a new file named name in a per-test directory
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// runTermfs runs the binary to completion and returns its stdout, stderr and exit code
func runTermfs(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(termfsBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("failed to run termfs: %v", err)
	}
	return stdout.String(), stderr.String(), code
}

// findLine returns the listing line ending in name within the section for dir
func findLine(t *testing.T, listing, dir, name string) []string {
	t.Helper()
	for _, section := range strings.Split(listing, "\n\n") {
		lines := strings.Split(section, "\n")
		if lines[0] != dir+":" {
			continue
		}
		for _, line := range lines[1:] {
			if strings.HasSuffix(line, " "+name) {
				return strings.Fields(line)
			}
		}
	}
	t.Fatalf("no entry %q in %s\nlisting:\n%s", name, dir, listing)
	return nil
}

func TestE2EListing(t *testing.T) {
	nodes := writeFile(t, "nodes.yaml", nodesYAML)

	stdout, stderr, code := runTermfs(t, "--nodes", nodes, "-v", "4")
	if code != 0 {
		t.Fatalf("exit code %d\nstderr:\n%s", code, stderr)
	}

	etc := findLine(t, stdout, "/", "etc")
	if etc[0] != "drwxr-xr-x" || etc[1] != "root" {
		t.Fatalf("unexpected etc entry: %v", etc)
	}

	motd := findLine(t, stdout, "/etc", "motd")
	if motd[0] != "-rw-rw-r--" || motd[1] != "alice" || motd[2] != "staff" {
		t.Fatalf("unexpected motd entry: %v", motd)
	}
	if want := fmt.Sprint(len("Hello from termfs") + 1); motd[3] != want {
		t.Fatalf("motd size: expected %s, got %s", want, motd[3])
	}

	link := findLine(t, stdout, "/", "motd -> /etc/motd")
	if link[0] != "lrwxrwxrwx" {
		t.Fatalf("unexpected link entry: %v", link)
	}

	dev := findLine(t, stdout, "/dev", "null")
	if dev[0] != "crw-rw-r--" {
		t.Fatalf("unexpected device entry: %v", dev)
	}

	if strings.Contains(stdout, "component") {
		t.Fatalf("logs leaked into stdout:\n%s", stdout)
	}
}

func TestE2EConfigFile(t *testing.T) {
	nodes := writeFile(t, "nodes.json", `[{"path": "/srv/data", "type": "file"}]`)
	cfg := writeFile(t, "config.yaml", "root_owner: admin\nroot_group: admins\nfile_perms: rw-------\n")

	stdout, stderr, code := runTermfs(t, "-n", nodes, "-c", cfg)
	if code != 0 {
		t.Fatalf("exit code %d\nstderr:\n%s", code, stderr)
	}

	data := findLine(t, stdout, "/srv", "data")
	if data[0] != "-rw-------" || data[1] != "admin" || data[2] != "admins" {
		t.Fatalf("config not applied: %v", data)
	}
}

func TestE2EPartialFailures(t *testing.T) {
	nodes := writeFile(t, "nodes.yaml", `
- path: /ok
  type: file
- path: /ok
  type: file
- path: /bad
  type: hardlink
- path: /bad-perms
  type: file
  perms: rwx
`)

	stdout, stderr, code := runTermfs(t, "-n", nodes)
	if code != 0 {
		t.Fatalf("invalid definitions must not abort; exit code %d\nstderr:\n%s", code, stderr)
	}
	findLine(t, stdout, "/", "ok")
	if strings.Contains(stdout, "bad") {
		t.Fatalf("rejected nodes listed:\n%s", stdout)
	}
	for _, want := range []string{"unknown node type", "file already exists", "invalid permission format"} {
		if !strings.Contains(stderr, want) {
			t.Fatalf("expected %q in logs:\n%s", want, stderr)
		}
	}
}

func TestE2EInvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		want string
	}{
		{
			name: "MalformedNodes",
			args: func(t *testing.T) []string {
				return []string{"-n", writeFile(t, "nodes.json", `{"path": `)}
			},
			want: "Failed to read nodes file",
		},
		{
			name: "MissingNodes",
			args: func(t *testing.T) []string {
				return []string{"-n", filepath.Join(t.TempDir(), "missing.yaml")}
			},
			want: "Failed to read nodes file",
		},
		{
			name: "UnknownConfigExtension",
			args: func(t *testing.T) []string {
				return []string{"-c", writeFile(t, "config.toml", "verbose = 5")}
			},
			want: "Failed to load config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runTermfs(t, tt.args(t)...)
			if code == 0 {
				t.Fatalf("expected non-zero exit code")
			}
			if !strings.Contains(stderr, tt.want) {
				t.Fatalf("expected %q in stderr:\n%s", tt.want, stderr)
			}
		})
	}
}

func TestE2EContentSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "served over http")
	}))
	defer srv.Close()

	local := writeFile(t, "local.txt", "read from disk")
	nodes := writeFile(t, "nodes.json", fmt.Sprintf(`[
		{"path": "/remote", "type": "file", "source": {"type": "http", "url": %q}},
		{"path": "/local", "type": "file", "source": {"type": "file", "path": %q}}
	]`, srv.URL, local))

	stdout, stderr, code := runTermfs(t, "-n", nodes)
	if code != 0 {
		t.Fatalf("exit code %d\nstderr:\n%s", code, stderr)
	}

	remote := findLine(t, stdout, "/", "remote")
	if want := fmt.Sprint(len("served over http") + 1); remote[3] != want {
		t.Fatalf("remote size: expected %s, got %s", want, remote[3])
	}
	localLine := findLine(t, stdout, "/", "local")
	if want := fmt.Sprint(len("read from disk") + 1); localLine[3] != want {
		t.Fatalf("local size: expected %s, got %s", want, localLine[3])
	}
}

// TermfsInstance is a running, mounted termfs process
type TermfsInstance struct {
	cmd      *exec.Cmd
	MountDir string
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
}

func startMounted(t *testing.T, nodesFile string) *TermfsInstance {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE not available")
	}
	if _, err := exec.LookPath("fusermount"); err != nil {
		t.Skip("fusermount not available")
	}

	mountDir := t.TempDir()
	cmd := exec.Command(termfsBin, "--nodes", nodesFile, "-v", "4", mountDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start termfs: %v", err)
	}

	instance := &TermfsInstance{cmd: cmd, MountDir: mountDir, stdout: &stdout, stderr: &stderr}
	if err := instance.WaitForMount(15 * time.Second); err != nil {
		instance.Stop()
		t.Fatalf("termfs mount failed: %v\nstderr:\n%s", err, stderr.String())
	}
	return instance
}

// Stop gracefully stops the termfs instance
func (w *TermfsInstance) Stop() {
	if w.cmd == nil || w.cmd.Process == nil {
		return
	}
	_ = w.cmd.Process.Signal(os.Interrupt) // Process may have already exited

	done := make(chan error, 1)
	go func() {
		done <- w.cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		// Force kill if graceful shutdown takes too long
		_ = w.cmd.Process.Kill()
		<-done
	}
}

// WaitForMount waits for the mounted tree to show its entries
func (w *TermfsInstance) WaitForMount(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if files, err := os.ReadDir(w.MountDir); err == nil && len(files) > 0 {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for termfs mount to be ready")
}

func TestE2EMountAndRead(t *testing.T) {
	instance := startMounted(t, writeFile(t, "nodes.yaml", nodesYAML))
	defer instance.Stop()

	data, err := os.ReadFile(filepath.Join(instance.MountDir, "etc", "motd"))
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(data) != "Hello from termfs" {
		t.Fatalf("content mismatch: got %q", string(data))
	}

	// absolute link targets resolve inside the mount
	data, err = os.ReadFile(filepath.Join(instance.MountDir, "motd"))
	if err != nil {
		t.Fatalf("failed to read through link: %v", err)
	}
	if string(data) != "Hello from termfs" {
		t.Fatalf("link content mismatch: got %q", string(data))
	}

	info, err := os.Stat(filepath.Join(instance.MountDir, "etc"))
	if err != nil {
		t.Fatalf("stat etc: %v", err)
	}
	if !info.IsDir() || info.Mode().Perm() != 0o755 {
		t.Fatalf("unexpected etc mode: %v", info.Mode())
	}

	err = os.WriteFile(filepath.Join(instance.MountDir, "etc", "motd"), []byte("x"), 0o644)
	if err == nil {
		t.Fatalf("expected write to read-only mount to fail")
	}
}
