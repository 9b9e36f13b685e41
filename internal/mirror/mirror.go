// Package mirror publishes built catalog artifacts to object storage and
// pulls them on read-only deployments, so one machine can build the
// catalogs and many can serve them.
package mirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/tessloc/tessloc/internal/config"
	"github.com/tessloc/tessloc/internal/storage"
	"github.com/tessloc/tessloc/pkg/tess"
)

// wcsCatalogKey is the object path of the WCS catalog; per-sector listing
// files live under listingPrefix with their local base names.
const (
	wcsCatalogKey = "tess-wcs-catalog.db"
	listingPrefix = "catalogs"
)

// Mirror copies catalog artifacts between the local data directory and an
// object store.
type Mirror struct {
	objects storage.ObjectStorage
	cfg     *config.Config
}

// New creates a mirror over the given object store.
func New(objects storage.ObjectStorage, cfg *config.Config) *Mirror {
	return &Mirror{objects: objects, cfg: cfg}
}

// Publish uploads every locally present catalog artifact: the WCS catalog
// and each per-sector listing file. Artifacts not yet built are skipped.
// Returns the number of uploaded objects.
func (m *Mirror) Publish(ctx context.Context) (int, error) {
	uploaded := 0

	if fileExists(m.cfg.WCSCatalogPath()) {
		if err := m.objects.Upload(ctx, m.cfg.WCSCatalogPath(), wcsCatalogKey); err != nil {
			return uploaded, err
		}
		uploaded++
	} else {
		log.Printf("mirror: WCS catalog not built yet, skipping upload")
	}

	for sector := 1; sector <= tess.Sectors; sector++ {
		local := m.cfg.ListingPath(sector)
		if !fileExists(local) {
			continue
		}
		key := listingKey(sector)
		if err := m.objects.Upload(ctx, local, key); err != nil {
			return uploaded, err
		}
		uploaded++
	}

	log.Printf("mirror: published %d artifacts", uploaded)
	return uploaded, nil
}

// Pull downloads every remote artifact that is missing locally. Artifacts
// already on disk are left untouched; a rebuilt remote catalog is only
// picked up after the local copy is removed.
func (m *Mirror) Pull(ctx context.Context) (int, error) {
	downloaded := 0

	if !fileExists(m.cfg.WCSCatalogPath()) {
		exists, err := m.objects.Exists(ctx, wcsCatalogKey)
		if err != nil {
			return downloaded, err
		}
		if exists {
			if err := m.objects.Download(ctx, wcsCatalogKey, m.cfg.WCSCatalogPath()); err != nil {
				return downloaded, err
			}
			downloaded++
		}
	}

	keys, err := m.objects.ListObjects(ctx, listingPrefix)
	if err != nil {
		return downloaded, err
	}
	for _, key := range keys {
		local := m.localListingPath(key)
		if fileExists(local) {
			continue
		}
		if err := m.objects.Download(ctx, key, local); err != nil {
			return downloaded, err
		}
		downloaded++
	}

	log.Printf("mirror: pulled %d artifacts", downloaded)
	return downloaded, nil
}

func (m *Mirror) localListingPath(key string) string {
	return filepath.Join(m.cfg.Catalog.ListingDir, path.Base(key))
}

func listingKey(sector int) string {
	return path.Join(listingPrefix, fmt.Sprintf("tess-s%04d-ffi-catalog.db", sector))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
