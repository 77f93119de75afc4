// write_test.go tests [Write] and [WriteJSON] for basic correctness,
// concurrent safety across distinct files, and cleanup of temp files
// on failure.

package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// tempLeftovers returns the names of stray temp files in dir.
func tempLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var stray []string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			stray = append(stray, e.Name())
		}
	}
	return stray
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("hello world")},
		{"empty", nil},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out.bin")

			if err := Write(path, tt.data, 0o644); err != nil {
				t.Fatalf("Write: %v", err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != string(tt.data) {
				t.Errorf("content = %q, want %q", got, tt.data)
			}
			if stray := tempLeftovers(t, dir); len(stray) > 0 {
				t.Errorf("temp files left behind: %v", stray)
			}
		})
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")

	for _, content := range []string{"first", "second", "third"} {
		if err := Write(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Write %q: %v", content, err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != content {
			t.Errorf("content = %q, want %q", got, content)
		}
	}

	if stray := tempLeftovers(t, dir); len(stray) > 0 {
		t.Errorf("temp files left behind: %v", stray)
	}
}

func TestWriteConcurrentFiles(t *testing.T) {
	dir := t.TempDir()
	const writers = 20

	// One file per goroutine: Windows cannot atomically rename over a
	// target another process holds open, so the package only promises
	// atomicity per path.
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		i := i
		go func() {
			defer wg.Done()
			path := filepath.Join(dir, fmt.Sprintf("worker-%02d.txt", i))
			if err := Write(path, fmt.Appendf(nil, "payload %d", i), 0o644); err != nil {
				t.Errorf("Write %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		path := filepath.Join(dir, fmt.Sprintf("worker-%02d.txt", i))
		got, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("ReadFile %d: %v", i, err)
			continue
		}
		if want := fmt.Sprintf("payload %d", i); string(got) != want {
			t.Errorf("file %d = %q, want %q", i, got, want)
		}
	}

	if stray := tempLeftovers(t, dir); len(stray) > 0 {
		t.Errorf("temp files left behind: %v", stray)
	}
}

func TestWritePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.toml")

	if err := Write(path, []byte("secret"), 0o600); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// Windows collapses Unix permission bits, so only assert the owner
	// read-write floor that survives on every platform.
	if got := info.Mode().Perm(); got&0o600 == 0 {
		t.Errorf("permissions = %o, want at least owner rw", got)
	}
}

func TestWriteMissingDirectory(t *testing.T) {
	parent := t.TempDir()
	path := filepath.Join(parent, "no-such-dir", "file.txt")

	if err := Write(path, []byte("data"), 0o644); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
	if stray := tempLeftovers(t, parent); len(stray) > 0 {
		t.Errorf("temp files left behind: %v", stray)
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	want := record{Name: "daemon", Count: 3}

	if err := WriteJSON(path, want, 0o600); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasSuffix(string(raw), "\n") {
		t.Error("output should end with a trailing newline")
	}

	var got record
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")

	// Channels cannot be marshaled; the file must not be created.
	if err := WriteJSON(path, make(chan int), 0o600); err == nil {
		t.Fatal("expected error for unencodable value")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should not exist after failed encode, stat err = %v", err)
	}
}
