// Package imagelist implements the image-listing catalog: one persisted
// table of FFI filenames and observation windows per sector, produced by
// querying the external archive and normalizing its response.
package imagelist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tessloc/tessloc/internal/archive"
	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/pkg/tess"
)

// filenamePattern matches the sector, camera, and ccd identifiers encoded
// in FFI filenames, e.g. tess2018206045859-s0001-1-1-0120-s_ffic.fits.
var filenamePattern = regexp.MustCompile(`-s(\d+)-([1-4])-([1-4])-`)

// ParseFilename extracts the (sector, camera, ccd) identifiers from an FFI
// filename. Malformed names fail loudly rather than producing silently
// wrong rows.
func ParseFilename(name string) (tess.CCDKey, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return tess.CCDKey{}, errors.NewValidationError(errors.CodeMalformedFilename,
			fmt.Sprintf("filename %q does not encode sector/camera/ccd", name))
	}

	sector, err := strconv.Atoi(m[1])
	if err != nil || sector < 1 {
		return tess.CCDKey{}, errors.NewValidationError(errors.CodeMalformedFilename,
			fmt.Sprintf("filename %q has invalid sector %q", name, m[1]))
	}
	camera, _ := strconv.Atoi(m[2])
	ccd, _ := strconv.Atoi(m[3])

	return tess.CCDKey{Sector: sector, Camera: camera, CCD: ccd}, nil
}

// filenameFromURL returns the final path segment of a product access URL.
func filenameFromURL(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// normalizeProducts converts archive products into listing rows: filename
// parsed into identifiers, MJD windows converted to ISO timestamps at
// second precision. Rows whose parsed sector disagrees with the queried
// sector, or whose window is inverted, are rejected.
func normalizeProducts(sector int, products []archive.Product) ([]tess.Image, error) {
	rows := make([]tess.Image, 0, len(products))
	for _, p := range products {
		name := filenameFromURL(p.AccessURL)

		key, err := ParseFilename(name)
		if err != nil {
			return nil, err
		}
		if key.Sector != sector {
			return nil, errors.NewValidationError(errors.CodeMalformedFilename,
				fmt.Sprintf("filename %q encodes sector %d, queried sector %d",
					name, key.Sector, sector))
		}

		start := tess.MJDToISO(p.TMinMJD)
		stop := tess.MJDToISO(p.TMaxMJD)
		if start > stop {
			return nil, errors.NewValidationError(errors.CodeMalformedFilename,
				fmt.Sprintf("image %q has inverted window [%s, %s]", name, start, stop))
		}

		rows = append(rows, tess.Image{
			Filename: name,
			Sector:   key.Sector,
			Camera:   key.Camera,
			CCD:      key.CCD,
			Start:    start,
			Stop:     stop,
		})
	}
	return rows, nil
}
