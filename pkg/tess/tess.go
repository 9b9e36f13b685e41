// Package tess defines the core value types and mission constants shared by
// all tessloc components.
package tess

import "fmt"

// Sectors is the highest sector number with a complete public FFI archive.
// The bulk fetch and catalog build default to the range [1, Sectors].
const Sectors = 69

// Cameras and CCDs per sector. Every sector observes with 4 cameras of
// 4 CCDs each, so a fully built sector contributes 16 catalog rows.
const (
	Cameras = 4
	CCDs    = 4
)

// Science-area pixel bounds of a TESS CCD. Pixel coordinates refer to pixel
// centers, so the valid science columns span [44.5, 2092.5] and the valid
// rows span [0.5, 2048.5].
const (
	ColumnMin = 44.5
	ColumnMax = 2092.5
	RowMin    = 0.5
	RowMax    = 2048.5
)

// CCDKey identifies one (sector, camera, ccd) combination, the natural key
// of the WCS catalog.
type CCDKey struct {
	Sector int
	Camera int
	CCD    int
}

// Validate checks that the key identifies a physically possible CCD.
func (k CCDKey) Validate() error {
	if k.Sector < 1 {
		return fmt.Errorf("tess: sector must be >= 1, got %d", k.Sector)
	}
	if k.Camera < 1 || k.Camera > Cameras {
		return fmt.Errorf("tess: camera must be in [1, %d], got %d", Cameras, k.Camera)
	}
	if k.CCD < 1 || k.CCD > CCDs {
		return fmt.Errorf("tess: ccd must be in [1, %d], got %d", CCDs, k.CCD)
	}
	return nil
}

// String returns the key in the s0001-1-1 form used in FFI filenames.
func (k CCDKey) String() string {
	return fmt.Sprintf("s%04d-%d-%d", k.Sector, k.Camera, k.CCD)
}

// Image is one row of the image-listing catalog: a single FFI file with its
// parsed identifiers and observation window. Start and Stop are ISO-8601
// timestamps at second precision; Start <= Stop always holds for rows
// produced by the fetcher.
type Image struct {
	Filename string
	Sector   int
	Camera   int
	CCD      int
	Start    string
	Stop     string
}

// Key returns the CCD key encoded in the image's identifiers.
func (i Image) Key() CCDKey {
	return CCDKey{Sector: i.Sector, Camera: i.Camera, CCD: i.CCD}
}
