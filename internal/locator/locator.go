// Package locator is the query-side service: it owns every process-lifetime
// cache (listing memo, catalog memo, WCS resolution cache, sector-date
// index, time-to-sector memo) and answers lookups against the built
// catalogs. Lookups never touch the network.
package locator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/internal/imagelist"
	"github.com/tessloc/tessloc/internal/wcs"
	"github.com/tessloc/tessloc/internal/wcscatalog"
	"github.com/tessloc/tessloc/pkg/tess"
)

// acceptedLayouts are the timestamp forms TimeToSector accepts; every form
// is normalized to tess.TimeFormat before the index scan.
var acceptedLayouts = []string{
	tess.TimeFormat,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type sectorHit struct {
	sector int
	found  bool
}

// Service answers catalog lookups. All caching lives here; a Reset makes a
// freshly rebuilt catalog visible without restarting the process.
type Service struct {
	loader *imagelist.Loader
	store  *wcscatalog.Store
	cache  *wcs.ResolutionCache

	mu          sync.Mutex
	dates       []wcscatalog.SectorRange
	datesLoaded bool
	sectorMemo  map[string]sectorHit
}

// NewService creates a locator over the given catalogs. cacheSize bounds
// the WCS resolution cache; non-positive selects the default.
func NewService(loader *imagelist.Loader, store *wcscatalog.Store, cacheSize int) *Service {
	return &Service{
		loader:     loader,
		store:      store,
		cache:      wcs.NewResolutionCache(cacheSize),
		sectorMemo: make(map[string]sectorHit),
	}
}

// Images returns the image listing of one (sector, camera, ccd) triple.
func (s *Service) Images(ctx context.Context, key tess.CCDKey) ([]tess.Image, error) {
	return s.loader.ListImages(ctx, key)
}

// GetRow returns the raw WCS catalog row for key.
func (s *Service) GetRow(ctx context.Context, key tess.CCDKey) (wcscatalog.Row, error) {
	return s.store.Get(ctx, key)
}

// GetWCS returns the parsed WCS solution for key. The parse happens once
// per triple; repeated calls return the identical *wcs.WCS.
func (s *Service) GetWCS(ctx context.Context, key tess.CCDKey) (*wcs.WCS, error) {
	row, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.cache.Resolve(key, row.WCS)
}

// SectorDates returns the sector-date index, derived from the catalog once
// per service lifetime.
func (s *Service) SectorDates(ctx context.Context) ([]wcscatalog.SectorRange, error) {
	s.mu.Lock()
	if s.datesLoaded {
		dates := s.dates
		s.mu.Unlock()
		return dates, nil
	}
	s.mu.Unlock()

	rows, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	dates, err := wcscatalog.SectorDates(rows)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.dates = dates
	s.datesLoaded = true
	s.mu.Unlock()
	return dates, nil
}

// TimeToSector maps a timestamp to the sector observing at that time. The
// scan is ascending and the first interval containing t, inclusive at both
// ends, wins. A timestamp outside every sector window is an expected
// result, reported as found=false rather than an error.
func (s *Service) TimeToSector(ctx context.Context, timestamp string) (int, bool, error) {
	normalized, err := normalizeTimestamp(timestamp)
	if err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	if hit, ok := s.sectorMemo[normalized]; ok {
		s.mu.Unlock()
		return hit.sector, hit.found, nil
	}
	s.mu.Unlock()

	dates, err := s.SectorDates(ctx)
	if err != nil {
		return 0, false, err
	}

	hit := sectorHit{}
	for _, r := range dates {
		if normalized >= r.Begin && normalized <= r.End {
			hit = sectorHit{sector: r.Sector, found: true}
			break
		}
	}

	s.mu.Lock()
	s.sectorMemo[normalized] = hit
	s.mu.Unlock()
	return hit.sector, hit.found, nil
}

// TimeToSectorAt is TimeToSector for a time.Time.
func (s *Service) TimeToSectorAt(ctx context.Context, t time.Time) (int, bool, error) {
	return s.TimeToSector(ctx, t.UTC().Format(tess.TimeFormat))
}

// PixelToSky converts a CCD pixel coordinate to (ra, dec) in degrees using
// the triple's cached solution. The pixel must lie on the science area.
func (s *Service) PixelToSky(ctx context.Context, key tess.CCDKey, column, row float64) (ra, dec float64, err error) {
	if column < tess.ColumnMin || column > tess.ColumnMax {
		return 0, 0, errors.NewValidationError(errors.CodeInvalidPixel,
			fmt.Sprintf("column %v outside science area [%v, %v]",
				column, tess.ColumnMin, tess.ColumnMax))
	}
	if row < tess.RowMin || row > tess.RowMax {
		return 0, 0, errors.NewValidationError(errors.CodeInvalidPixel,
			fmt.Sprintf("row %v outside science area [%v, %v]",
				row, tess.RowMin, tess.RowMax))
	}

	w, err := s.GetWCS(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	ra, dec = w.PixelToSky(column, row)
	return ra, dec, nil
}

// SkyToPixel converts (ra, dec) in degrees to the CCD pixel coordinate of
// the triple's cached solution.
func (s *Service) SkyToPixel(ctx context.Context, key tess.CCDKey, ra, dec float64) (column, row float64, err error) {
	w, err := s.GetWCS(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return w.SkyToPixel(ra, dec)
}

// Reset drops every cache so the next lookup observes the catalogs as
// currently persisted.
func (s *Service) Reset() {
	s.loader.Reset()
	s.store.Reset()
	s.cache.Reset()

	s.mu.Lock()
	s.dates = nil
	s.datesLoaded = false
	s.sectorMemo = make(map[string]sectorHit)
	s.mu.Unlock()
}

// normalizeTimestamp parses any accepted timestamp layout and reformats it
// to the catalog layout, so string comparison against the index is valid.
func normalizeTimestamp(timestamp string) (string, error) {
	trimmed := strings.TrimSpace(timestamp)
	for _, layout := range acceptedLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t.Format(tess.TimeFormat), nil
		}
	}
	return "", errors.NewLookupError(errors.CodeBadTimestamp,
		fmt.Sprintf("unparseable timestamp %q", timestamp))
}
