package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "test.log")

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")
		if err := os.WriteFile(path, []byte("initial\n"), 0644); err != nil {
			t.Fatal(err)
		}

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatal(err)
		}
		if rw.Size() != int64(len("initial\n")) {
			t.Errorf("Size() = %d", rw.Size())
		}
		_, _ = rw.Write([]byte("more\n"))
		_ = rw.Close()

		data, _ := os.ReadFile(path)
		if string(data) != "initial\nmore\n" {
			t.Errorf("content = %q", data)
		}
	})
}

// smallWriter rotates after roughly 1KB by shrinking maxBytes directly.
func smallWriter(t *testing.T, backups int) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.log")
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: backups})
	if err != nil {
		t.Fatal(err)
	}
	rw.maxBytes = 1024
	t.Cleanup(func() { _ = rw.Close() })
	return rw, path
}

func TestRotation(t *testing.T) {
	rw, path := smallWriter(t, 2)
	line := []byte(strings.Repeat("x", 600) + "\n")

	for i := 0; i < 4; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("backups beyond MaxBackups must be removed")
	}
	if rw.Size() != int64(len(line)) {
		t.Errorf("live file size = %d, want %d", rw.Size(), len(line))
	}
}

func TestRotation_NoBackups(t *testing.T) {
	rw, path := smallWriter(t, 0)
	line := []byte(strings.Repeat("y", 700) + "\n")

	_, _ = rw.Write(line)
	_, _ = rw.Write(line)

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should be kept with MaxBackups=0")
	}
	data, _ := os.ReadFile(path)
	if len(data) != len(line) {
		t.Errorf("live file has %d bytes, want %d", len(data), len(line))
	}
}

func TestRotation_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 0, MaxBackups: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("z", 4096))
	for i := 0; i < 8; i++ {
		_, _ = rw.Write(chunk)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("MaxSizeMB=0 must never rotate")
	}
}

func TestWriteAfterClose(t *testing.T) {
	rw, _ := smallWriter(t, 1)
	_ = rw.Close()
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("expected error writing to a closed writer")
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	rw, path := smallWriter(t, 5)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, _ = rw.Write([]byte("0123456789abcdef\n"))
			}
		}()
	}
	wg.Wait()
	_ = rw.Close()

	total := 0
	matches, _ := filepath.Glob(path + "*")
	for _, m := range matches {
		data, _ := os.ReadFile(m)
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line != "0123456789abcdef" {
				t.Fatalf("torn line %q in %s", line, m)
			}
			total++
		}
	}
	if total != 160 {
		t.Errorf("found %d lines across files, want 160", total)
	}
}
