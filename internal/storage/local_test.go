package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/tessloc/tessloc/internal/errors"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLocalStorageUploadDownload(t *testing.T) {
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "objects"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()
	scratch := t.TempDir()

	src := writeTestFile(t, scratch, "tess-wcs-catalog.db", "catalog payload")
	if err := store.Upload(ctx, src, "catalogs/tess-wcs-catalog.db"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, "catalogs/tess-wcs-catalog.db")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Fatal("uploaded object should exist")
	}

	dest := filepath.Join(scratch, "downloaded.db")
	if err := store.Download(ctx, "catalogs/tess-wcs-catalog.db", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(content) != "catalog payload" {
		t.Errorf("downloaded content = %q", content)
	}
}

func TestLocalStorageDownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "objects"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	err = store.Download(context.Background(), "catalogs/missing.db",
		filepath.Join(t.TempDir(), "out.db"))
	if errors.GetCode(err) != errors.CodeObjectNotFound {
		t.Errorf("code = %v, want OBJECT_NOT_FOUND", errors.GetCode(err))
	}
}

func TestLocalStorageDelete(t *testing.T) {
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "objects"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	src := writeTestFile(t, t.TempDir(), "a.db", "x")
	if err := store.Upload(ctx, src, "a.db"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Delete(ctx, "a.db"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err := store.Exists(ctx, "a.db")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("deleted object still exists")
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, "a.db"); err != nil {
		t.Errorf("repeat Delete failed: %v", err)
	}
}

func TestLocalStorageListObjects(t *testing.T) {
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "objects"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()
	scratch := t.TempDir()

	for _, name := range []string{"catalogs/s0001.db", "catalogs/s0002.db", "other/readme"} {
		src := writeTestFile(t, scratch, filepath.Base(name), name)
		if err := store.Upload(ctx, src, name); err != nil {
			t.Fatalf("Upload %s failed: %v", name, err)
		}
	}

	objects, err := store.ListObjects(ctx, "catalogs")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	sort.Strings(objects)
	want := []string{"catalogs/s0001.db", "catalogs/s0002.db"}
	if len(objects) != len(want) {
		t.Fatalf("ListObjects = %v, want %v", objects, want)
	}
	for i := range want {
		if objects[i] != want[i] {
			t.Errorf("object %d = %q, want %q", i, objects[i], want[i])
		}
	}

	empty, err := store.ListObjects(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list, got %v", empty)
	}
}
