// Package archive provides clients for the external MAST collaborators:
// the TAP service that lists FFI products and the HTTP download of an
// image's FITS header. Both are single round-trip, retry-free calls; a
// failure propagates to the caller of the enclosing build step.
package archive

import "context"

// Product is one FFI product record returned by the archive query:
// an access URL plus the observation window in Modified Julian Date days.
type Product struct {
	AccessURL string
	TMinMJD   float64
	TMaxMJD   float64
}

// Querier lists all FFI products of a sector.
type Querier interface {
	QuerySector(ctx context.Context, sector int) ([]Product, error)
}

// HeaderSource downloads the primary FITS header of an image as a card
// string. The header carries the image's WCS solution; tessloc stores the
// string opaquely and never validates the solution itself.
type HeaderSource interface {
	FetchHeader(ctx context.Context, url string) (string, error)
}

// DefaultProductURLBase is the MAST file download endpoint that serves
// TESS products addressed by filename.
const DefaultProductURLBase = "https://mast.stsci.edu/api/v0.1/Download/file/?uri=mast:TESS/product/"

// ProductURL returns the MAST download URL of a TESS product filename.
func ProductURL(filename string) string {
	return DefaultProductURLBase + filename
}
