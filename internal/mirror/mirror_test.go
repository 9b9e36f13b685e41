package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tessloc/tessloc/internal/config"
	"github.com/tessloc/tessloc/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Catalog.ListingDir = ""
	cfg.Resolve()
	if err := os.MkdirAll(cfg.Catalog.ListingDir, 0755); err != nil {
		t.Fatalf("creating listing dir: %v", err)
	}
	return cfg
}

func writeArtifact(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestPublishAndPull(t *testing.T) {
	ctx := context.Background()
	objects, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "bucket"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	// Build side: a WCS catalog and two sector listings on disk.
	buildCfg := testConfig(t)
	writeArtifact(t, buildCfg.WCSCatalogPath(), "wcs catalog")
	writeArtifact(t, buildCfg.ListingPath(1), "sector 1 listing")
	writeArtifact(t, buildCfg.ListingPath(2), "sector 2 listing")

	uploaded, err := New(objects, buildCfg).Publish(ctx)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if uploaded != 3 {
		t.Fatalf("published %d artifacts, want 3", uploaded)
	}

	// Serve side: an empty data directory pulls everything.
	serveCfg := testConfig(t)
	downloaded, err := New(objects, serveCfg).Pull(ctx)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if downloaded != 3 {
		t.Fatalf("pulled %d artifacts, want 3", downloaded)
	}

	content, err := os.ReadFile(serveCfg.ListingPath(2))
	if err != nil {
		t.Fatalf("reading pulled listing: %v", err)
	}
	if string(content) != "sector 2 listing" {
		t.Errorf("pulled listing content = %q", content)
	}
	if _, err := os.Stat(serveCfg.WCSCatalogPath()); err != nil {
		t.Errorf("pulled WCS catalog missing: %v", err)
	}
}

func TestPullSkipsLocalArtifacts(t *testing.T) {
	ctx := context.Background()
	objects, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "bucket"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	buildCfg := testConfig(t)
	writeArtifact(t, buildCfg.WCSCatalogPath(), "remote catalog")
	writeArtifact(t, buildCfg.ListingPath(1), "remote listing")
	if _, err := New(objects, buildCfg).Publish(ctx); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	serveCfg := testConfig(t)
	writeArtifact(t, serveCfg.ListingPath(1), "local listing")

	downloaded, err := New(objects, serveCfg).Pull(ctx)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if downloaded != 1 {
		t.Fatalf("pulled %d artifacts, want 1 (only the catalog)", downloaded)
	}

	content, err := os.ReadFile(serveCfg.ListingPath(1))
	if err != nil {
		t.Fatalf("reading listing: %v", err)
	}
	if string(content) != "local listing" {
		t.Errorf("local listing was overwritten: %q", content)
	}
}

func TestPublishNothingBuilt(t *testing.T) {
	objects, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "bucket"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	uploaded, err := New(objects, testConfig(t)).Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if uploaded != 0 {
		t.Errorf("published %d artifacts from an empty data dir", uploaded)
	}
}
