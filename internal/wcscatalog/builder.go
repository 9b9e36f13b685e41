package wcscatalog

import (
	"context"
	"fmt"
	"log"

	"github.com/tessloc/tessloc/internal/archive"
	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/internal/imagelist"
	"github.com/tessloc/tessloc/pkg/tess"
)

// Builder assembles WCS catalog rows from the image listings. For each
// triple it downloads the header of the listing's temporal midpoint image;
// that one mid-sector solution stands in for the triple's whole window.
type Builder struct {
	fetcher *imagelist.Fetcher
	loader  *imagelist.Loader
	headers archive.HeaderSource
	store   *Store
	urlFor  func(filename string) string
}

// NewBuilder creates a builder. urlFor maps a product filename to its
// download URL; nil selects the MAST default.
func NewBuilder(fetcher *imagelist.Fetcher, loader *imagelist.Loader,
	headers archive.HeaderSource, store *Store, urlFor func(string) string) *Builder {
	if urlFor == nil {
		urlFor = archive.ProductURL
	}
	return &Builder{
		fetcher: fetcher,
		loader:  loader,
		headers: headers,
		store:   store,
		urlFor:  urlFor,
	}
}

// Update rebuilds the catalog for the given sectors, defaulting to every
// sector when none are named. The rebuild is full-replace: rows of sectors
// outside the requested set are discarded, so a partial sector list
// shrinks the catalog to exactly those sectors.
//
// Any failing triple aborts the build before the store is touched.
func (b *Builder) Update(ctx context.Context, sectors []int) error {
	if len(sectors) == 0 {
		sectors = make([]int, 0, tess.Sectors)
		for s := 1; s <= tess.Sectors; s++ {
			sectors = append(sectors, s)
		}
	}

	rows := make([]Row, 0, len(sectors)*tess.Cameras*tess.CCDs)
	for _, sector := range sectors {
		if _, err := b.fetcher.Fetch(ctx, sector); err != nil {
			return err
		}

		for camera := 1; camera <= tess.Cameras; camera++ {
			for ccd := 1; ccd <= tess.CCDs; ccd++ {
				key := tess.CCDKey{Sector: sector, Camera: camera, CCD: ccd}
				row, err := b.buildRow(ctx, key)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
		}
		log.Printf("wcscatalog: built %d rows for sector %d", tess.Cameras*tess.CCDs, sector)
	}

	if err := b.store.Replace(ctx, rows); err != nil {
		return err
	}
	log.Printf("wcscatalog: replaced catalog with %d rows covering %d sectors",
		len(rows), len(sectors))
	return nil
}

// buildRow assembles one catalog row: window bounds from the first and
// last listed image, header from the midpoint image.
func (b *Builder) buildRow(ctx context.Context, key tess.CCDKey) (Row, error) {
	images, err := b.loader.ListImages(ctx, key)
	if err != nil {
		return Row{}, err
	}
	if len(images) == 0 {
		return Row{}, errors.NewCatalogError(errors.CodeEmptyListing,
			fmt.Sprintf("no images listed for %s", key), nil)
	}

	mid := images[len(images)/2]
	header, err := b.headers.FetchHeader(ctx, b.urlFor(mid.Filename))
	if err != nil {
		return Row{}, err
	}

	return Row{
		Sector: key.Sector,
		Camera: key.Camera,
		CCD:    key.CCD,
		Begin:  images[0].Start,
		End:    images[len(images)-1].Stop,
		WCS:    header,
	}, nil
}
