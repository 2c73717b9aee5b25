package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, dir, name string, size int, modified time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	if err := os.Chtimes(path, modified, modified); err != nil {
		t.Fatalf("Chtimes(%s) error = %v", name, err)
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFile(t, dir, "old.mp4", 10, base)
	writeFile(t, dir, "newer.mp4", 20, base.Add(10*time.Minute))
	writeFile(t, dir, "newest.mp3", 30, base.Add(20*time.Minute))
	writeFile(t, dir, ".DS_Store", 5, base.Add(30*time.Minute))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	svc := NewService(dir, 0, zerolog.Nop())
	files, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"newest.mp3", "newer.mp4", "old.mp4"}
	if len(files) != len(want) {
		t.Fatalf("List() returned %d files, want %d", len(files), len(want))
	}
	for i, name := range want {
		if files[i].Filename != name {
			t.Errorf("files[%d] = %q, want %q", i, files[i].Filename, name)
		}
	}
	if files[0].Size != 30 {
		t.Errorf("Size = %d, want 30", files[0].Size)
	}
}

func TestService_ListCapped(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		writeFile(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".mp4", 1, base.Add(time.Duration(i)*time.Minute))
	}

	svc := NewService(dir, 2, zerolog.Nop())
	files, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("List() returned %d files, want cap of 2", len(files))
	}
}

func TestService_ListMissingDir(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "nope"), 0, zerolog.Nop())
	files, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("List() returned %d files, want 0", len(files))
	}
}

func TestService_Resolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "video.mp4", 10, time.Now())

	svc := NewService(dir, 0, zerolog.Nop())

	path, err := svc.Resolve("video.mp4")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if path != filepath.Join(dir, "video.mp4") {
		t.Errorf("Resolve() = %q, want file inside dir", path)
	}
}

func TestService_ResolveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, 0, zerolog.Nop())

	for _, name := range []string{
		"",
		".",
		"..",
		"../secret",
		"../../etc/passwd",
		"sub/child.mp4",
		`..\windows`,
	} {
		if _, err := svc.Resolve(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestService_ResolveMissingFile(t *testing.T) {
	svc := NewService(t.TempDir(), 0, zerolog.Nop())
	if _, err := svc.Resolve("ghost.mp4"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Resolve() error = %v, want ErrFileNotFound", err)
	}
}
