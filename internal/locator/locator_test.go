package locator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/internal/imagelist"
	"github.com/tessloc/tessloc/internal/wcscatalog"
	"github.com/tessloc/tessloc/pkg/tess"
)

const testHeader = `CTYPE1  = 'RA---TAN'
CTYPE2  = 'DEC--TAN'
CRPIX1  =               1045.0
CRPIX2  =               1001.0
CRVAL1  =            324.56789
CRVAL2  =            -33.17834
CD1_1   =         -0.000583123
CD1_2   =          0.000021345
CD2_1   =          0.000020911
CD2_2   =          0.000584011`

// testService builds a locator over a catalog with two sectors whose
// windows match the first two mission sectors.
func testService(t *testing.T) (*Service, *wcscatalog.Store) {
	t.Helper()
	dir := t.TempDir()

	listingStore := imagelist.NewStore(func(sector int) string {
		return filepath.Join(dir, fmt.Sprintf("tess-s%04d-ffi-catalog.db", sector))
	})
	store := wcscatalog.NewStore(filepath.Join(dir, "tess-wcs-catalog.db"))

	rows := []wcscatalog.Row{
		{Sector: 1, Camera: 1, CCD: 1, Begin: "2018-07-25 00:00:00", End: "2018-08-22 00:00:00",
			WCS: testHeader},
		{Sector: 2, Camera: 1, CCD: 1, Begin: "2018-08-22 00:00:01", End: "2018-09-20 00:00:00",
			WCS: testHeader},
	}
	if err := store.Replace(context.Background(), rows); err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}

	return NewService(imagelist.NewLoader(listingStore), store, 0), store
}

func TestTimeToSector(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	tests := []struct {
		timestamp string
		sector    int
		found     bool
	}{
		{"2018-08-01", 1, true},
		{"2018-08-01 12:30:00", 1, true},
		{"2018-08-01T12:30:00", 1, true},
		{"2018-07-25 00:00:00", 1, true}, // window begin is inclusive
		{"2018-08-22 00:00:00", 1, true}, // window end is inclusive
		{"2018-08-22 00:00:01", 2, true},
		{"2018-09-20 00:00:00", 2, true},
		{"2018-09-20 00:00:01", 0, false},
		{"2017-01-01", 0, false}, // before the mission started
	}

	for _, tt := range tests {
		sector, found, err := svc.TimeToSector(ctx, tt.timestamp)
		if err != nil {
			t.Errorf("TimeToSector(%q): %v", tt.timestamp, err)
			continue
		}
		if sector != tt.sector || found != tt.found {
			t.Errorf("TimeToSector(%q) = (%d, %v), want (%d, %v)",
				tt.timestamp, sector, found, tt.sector, tt.found)
		}
	}
}

func TestTimeToSectorBadTimestamp(t *testing.T) {
	svc, _ := testService(t)

	_, _, err := svc.TimeToSector(context.Background(), "not a timestamp")
	if errors.GetCode(err) != errors.CodeBadTimestamp {
		t.Errorf("code = %v, want BAD_TIMESTAMP", errors.GetCode(err))
	}
}

func TestTimeToSectorAt(t *testing.T) {
	svc, _ := testService(t)

	when, err := tess.ParseISO("2018-08-01 00:00:00")
	if err != nil {
		t.Fatalf("ParseISO: %v", err)
	}
	sector, found, err := svc.TimeToSectorAt(context.Background(), when)
	if err != nil {
		t.Fatalf("TimeToSectorAt: %v", err)
	}
	if sector != 1 || !found {
		t.Errorf("TimeToSectorAt = (%d, %v), want (1, true)", sector, found)
	}
}

func TestSectorDatesMemoized(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	first, err := svc.SectorDates(ctx)
	if err != nil {
		t.Fatalf("SectorDates failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 sector ranges, got %d", len(first))
	}
	second, err := svc.SectorDates(ctx)
	if err != nil {
		t.Fatalf("repeat SectorDates failed: %v", err)
	}
	if &first[0] != &second[0] {
		t.Error("repeat SectorDates did not return the memoized slice")
	}
}

func TestGetWCSIdentity(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	key := tess.CCDKey{Sector: 1, Camera: 1, CCD: 1}

	first, err := svc.GetWCS(ctx, key)
	if err != nil {
		t.Fatalf("GetWCS failed: %v", err)
	}
	second, err := svc.GetWCS(ctx, key)
	if err != nil {
		t.Fatalf("repeat GetWCS failed: %v", err)
	}
	if first != second {
		t.Error("repeat GetWCS returned a different *WCS")
	}
}

func TestGetWCSMissingRow(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.GetWCS(context.Background(), tess.CCDKey{Sector: 1, Camera: 2, CCD: 1})
	if errors.GetCode(err) != errors.CodeRowNotFound {
		t.Errorf("code = %v, want ROW_NOT_FOUND", errors.GetCode(err))
	}
}

func TestPixelToSky(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	key := tess.CCDKey{Sector: 1, Camera: 1, CCD: 1}

	ra, dec, err := svc.PixelToSky(ctx, key, 1045, 1001)
	if err != nil {
		t.Fatalf("PixelToSky failed: %v", err)
	}
	if ra != 324.56789 || dec != -33.17834 {
		t.Errorf("reference pixel = (%v, %v)", ra, dec)
	}

	// Round trip through the paired conversion.
	col, row, err := svc.SkyToPixel(ctx, key, ra, dec)
	if err != nil {
		t.Fatalf("SkyToPixel failed: %v", err)
	}
	if col != 1045 || row != 1001 {
		t.Errorf("round trip = (%v, %v)", col, row)
	}
}

func TestPixelToSkyBounds(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	key := tess.CCDKey{Sector: 1, Camera: 1, CCD: 1}

	for _, p := range [][2]float64{{44.4, 100}, {2092.6, 100}, {100, 0.4}, {100, 2048.6}} {
		_, _, err := svc.PixelToSky(ctx, key, p[0], p[1])
		if errors.GetCode(err) != errors.CodeInvalidPixel {
			t.Errorf("PixelToSky(%v, %v): code = %v, want INVALID_PIXEL",
				p[0], p[1], errors.GetCode(err))
		}
	}
}

func TestResetObservesRebuild(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	if _, _, err := svc.TimeToSector(ctx, "2018-08-01"); err != nil {
		t.Fatalf("TimeToSector failed: %v", err)
	}

	// Rebuild the catalog with a single shifted sector behind the caches.
	rows := []wcscatalog.Row{
		{Sector: 5, Camera: 1, CCD: 1, Begin: "2019-01-01 00:00:00", End: "2019-01-28 00:00:00",
			WCS: testHeader},
	}
	if err := store.Replace(ctx, rows); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	svc.Reset()

	sector, found, err := svc.TimeToSector(ctx, "2018-08-01")
	if err != nil {
		t.Fatalf("TimeToSector after Reset failed: %v", err)
	}
	if found {
		t.Errorf("stale window still matched: sector %d", sector)
	}
	sector, found, err = svc.TimeToSector(ctx, "2019-01-15")
	if err != nil {
		t.Fatalf("TimeToSector after Reset failed: %v", err)
	}
	if sector != 5 || !found {
		t.Errorf("rebuilt window not visible: (%d, %v)", sector, found)
	}
}
