package imagelist

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/tessloc/tessloc/internal/archive"
	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/pkg/tess"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(func(sector int) string {
		return filepath.Join(dir, fmt.Sprintf("tess-s%04d-ffi-catalog.db", sector))
	})
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    tess.CCDKey
		wantErr bool
	}{
		{"tess2018206045859-s0001-1-1-0120-s_ffic.fits", tess.CCDKey{Sector: 1, Camera: 1, CCD: 1}, false},
		{"tess2019279125936-s0017-4-3-0161-s_ffic.fits", tess.CCDKey{Sector: 17, Camera: 4, CCD: 3}, false},
		{"tess2022357055924-s0059-2-4-0250-s_ffic.fits", tess.CCDKey{Sector: 59, Camera: 2, CCD: 4}, false},
		{"tess2018206045859-s0001-5-1-0120-s_ffic.fits", tess.CCDKey{}, true}, // camera out of range
		{"tess2018206045859-s0001-1-0-0120-s_ffic.fits", tess.CCDKey{}, true}, // ccd out of range
		{"not-a-tess-product.fits", tess.CCDKey{}, true},
		{"", tess.CCDKey{}, true},
	}

	for _, tt := range tests {
		got, err := ParseFilename(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFilename(%q): expected error", tt.name)
			} else if errors.GetCode(err) != errors.CodeMalformedFilename {
				t.Errorf("ParseFilename(%q): code = %v, want MALFORMED_FILENAME", tt.name, errors.GetCode(err))
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFilename(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilename(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	url := "https://archive.example/path/to/tess2018206045859-s0001-1-1-0120-s_ffic.fits"
	if got := filenameFromURL(url); got != "tess2018206045859-s0001-1-1-0120-s_ffic.fits" {
		t.Errorf("filenameFromURL = %q", got)
	}
	if got := filenameFromURL("bare.fits"); got != "bare.fits" {
		t.Errorf("filenameFromURL on bare name = %q", got)
	}
}

func TestStoreWriteRead(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	images := []tess.Image{
		{Filename: "tess2018206045859-s0001-1-1-0120-s_ffic.fits", Sector: 1, Camera: 1, CCD: 1,
			Start: "2018-07-25 12:00:00", Stop: "2018-07-25 12:30:00"},
		{Filename: "tess2018206192059-s0001-1-2-0120-s_ffic.fits", Sector: 1, Camera: 1, CCD: 2,
			Start: "2018-07-26 00:00:00", Stop: "2018-07-26 00:30:00"},
	}

	if store.Exists(1) {
		t.Fatal("listing should not exist before write")
	}
	if err := store.Write(ctx, 1, images); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !store.Exists(1) {
		t.Fatal("listing should exist after write")
	}

	got, err := store.Read(ctx, 1)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 images, got %d", len(got))
	}
	if got[0] != images[0] || got[1] != images[1] {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestStoreReadMissingSector(t *testing.T) {
	store := testStore(t)
	_, err := store.Read(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for missing listing")
	}
	if errors.GetCode(err) != errors.CodeListingNotFound {
		t.Errorf("code = %v, want LISTING_NOT_FOUND", errors.GetCode(err))
	}
}

// fakeQuerier serves canned products and counts queries.
type fakeQuerier struct {
	products map[int][]archive.Product
	calls    int
	err      error
}

func (f *fakeQuerier) QuerySector(ctx context.Context, sector int) ([]archive.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products[sector], nil
}

func TestFetcherFetch(t *testing.T) {
	store := testStore(t)
	querier := &fakeQuerier{products: map[int][]archive.Product{
		1: {
			// Deliberately out of filename order to exercise the sort.
			{AccessURL: "https://a.example/tess2018206192059-s0001-2-3-0120-s_ffic.fits",
				TMinMJD: 58325.0, TMaxMJD: 58325.02},
			{AccessURL: "https://a.example/tess2018206045859-s0001-1-1-0120-s_ffic.fits",
				TMinMJD: 58324.5, TMaxMJD: 58324.52},
		},
	}}
	fetcher := NewFetcher(querier, store)
	ctx := context.Background()

	images, err := fetcher.Fetch(ctx, 1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].Filename >= images[1].Filename {
		t.Errorf("images not sorted by filename: %q, %q", images[0].Filename, images[1].Filename)
	}
	if images[0].Start != "2018-07-25 12:00:00" {
		t.Errorf("start = %q, want 2018-07-25 12:00:00", images[0].Start)
	}

	// Second fetch must skip the network entirely.
	again, err := fetcher.Fetch(ctx, 1)
	if err != nil {
		t.Fatalf("repeat Fetch failed: %v", err)
	}
	if again != nil {
		t.Errorf("repeat Fetch returned %d images, want nil", len(again))
	}
	if querier.calls != 1 {
		t.Errorf("querier called %d times, want 1", querier.calls)
	}
}

func TestFetcherRejectsWrongSector(t *testing.T) {
	store := testStore(t)
	querier := &fakeQuerier{products: map[int][]archive.Product{
		1: {{AccessURL: "https://a.example/tess2018206045859-s0002-1-1-0120-s_ffic.fits",
			TMinMJD: 58324.5, TMaxMJD: 58324.52}},
	}}
	fetcher := NewFetcher(querier, store)

	if _, err := fetcher.Fetch(context.Background(), 1); err == nil {
		t.Fatal("expected error when filename encodes a different sector")
	}
	if store.Exists(1) {
		t.Error("failed fetch must not persist a listing")
	}
}

func TestLoaderListImages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	images := []tess.Image{
		{Filename: "tess2018206045859-s0001-1-1-0120-s_ffic.fits", Sector: 1, Camera: 1, CCD: 1,
			Start: "2018-07-25 12:00:00", Stop: "2018-07-25 12:30:00"},
		{Filename: "tess2018206192059-s0001-1-2-0120-s_ffic.fits", Sector: 1, Camera: 1, CCD: 2,
			Start: "2018-07-26 00:00:00", Stop: "2018-07-26 00:30:00"},
		{Filename: "tess2018207045859-s0001-1-1-0121-s_ffic.fits", Sector: 1, Camera: 1, CCD: 1,
			Start: "2018-07-26 12:00:00", Stop: "2018-07-26 12:30:00"},
	}
	if err := store.Write(ctx, 1, images); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loader := NewLoader(store)
	got, err := loader.ListImages(ctx, tess.CCDKey{Sector: 1, Camera: 1, CCD: 1})
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 images for camera 1 ccd 1, got %d", len(got))
	}
	for _, img := range got {
		if img.Camera != 1 || img.CCD != 1 {
			t.Errorf("filter leaked image %+v", img)
		}
	}

	if _, err := loader.ListImages(ctx, tess.CCDKey{Sector: 1, Camera: 9, CCD: 1}); err == nil {
		t.Error("expected validation error for camera 9")
	}
}

func TestLoaderMemoization(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	images := []tess.Image{
		{Filename: "tess2018206045859-s0001-1-1-0120-s_ffic.fits", Sector: 1, Camera: 1, CCD: 1,
			Start: "2018-07-25 12:00:00", Stop: "2018-07-25 12:30:00"},
	}
	if err := store.Write(ctx, 1, images); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loader := NewLoader(store)
	first, err := loader.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := loader.Load(ctx, 1)
	if err != nil {
		t.Fatalf("repeat Load failed: %v", err)
	}
	if &first[0] != &second[0] {
		t.Error("repeat Load did not return the memoized slice")
	}

	loader.Reset()
	third, err := loader.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load after Reset failed: %v", err)
	}
	if len(third) != 1 {
		t.Errorf("expected 1 image after Reset, got %d", len(third))
	}
}
