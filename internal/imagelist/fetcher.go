package imagelist

import (
	"context"
	"log"
	"sort"

	"github.com/tessloc/tessloc/internal/archive"
	"github.com/tessloc/tessloc/pkg/tess"
)

// Fetcher populates the listing store from the archive. Fetching is
// idempotent per sector: a sector whose listing already exists on disk is
// skipped without touching the network.
type Fetcher struct {
	querier archive.Querier
	store   *Store
}

// NewFetcher creates a fetcher backed by the given archive querier.
func NewFetcher(querier archive.Querier, store *Store) *Fetcher {
	return &Fetcher{querier: querier, store: store}
}

// Fetch downloads and persists the image listing of one sector. If the
// sector's listing already exists the fetch is skipped and (nil, nil) is
// returned. On a fresh fetch the persisted rows are returned sorted by
// filename.
func (f *Fetcher) Fetch(ctx context.Context, sector int) ([]tess.Image, error) {
	if f.store.Exists(sector) {
		log.Printf("imagelist: sector %d listing already exists, skipping fetch", sector)
		return nil, nil
	}

	products, err := f.querier.QuerySector(ctx, sector)
	if err != nil {
		return nil, err
	}

	images, err := normalizeProducts(sector, products)
	if err != nil {
		return nil, err
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].Filename < images[j].Filename
	})

	if err := f.store.Write(ctx, sector, images); err != nil {
		return nil, err
	}
	log.Printf("imagelist: persisted %d images for sector %d", len(images), sector)
	return images, nil
}

// FetchAll fetches every sector from 1 through tess.Sectors. A failing
// sector is logged and does not prevent the remaining sectors from being
// fetched; the number of failures is returned.
func (f *Fetcher) FetchAll(ctx context.Context) int {
	failed := 0
	for sector := 1; sector <= tess.Sectors; sector++ {
		if err := ctx.Err(); err != nil {
			log.Printf("imagelist: fetch aborted at sector %d: %v", sector, err)
			return failed + (tess.Sectors - sector + 1)
		}
		if _, err := f.Fetch(ctx, sector); err != nil {
			log.Printf("imagelist: fetching sector %d failed: %v", sector, err)
			failed++
		}
	}
	return failed
}
