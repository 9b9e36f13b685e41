package wcs

import (
	"math"

	"github.com/tessloc/tessloc/internal/errors"
)

const degToRad = math.Pi / 180

// PixelToSky converts a 1-based (column, row) pixel coordinate to
// (ra, dec) in degrees through the inverse gnomonic projection.
func (w *WCS) PixelToSky(column, row float64) (ra, dec float64) {
	dx := column - w.CRPix1
	dy := row - w.CRPix2

	// Intermediate world coordinates in radians.
	xi := (w.CD[0][0]*dx + w.CD[0][1]*dy) * degToRad
	eta := (w.CD[1][0]*dx + w.CD[1][1]*dy) * degToRad

	ra0 := w.CRVal1 * degToRad
	dec0 := w.CRVal2 * degToRad

	r := math.Hypot(xi, eta)
	if r == 0 {
		return w.CRVal1, w.CRVal2
	}
	c := math.Atan(r)
	sinC, cosC := math.Sin(c), math.Cos(c)

	dec = math.Asin(cosC*math.Sin(dec0) + eta*sinC*math.Cos(dec0)/r)
	ra = ra0 + math.Atan2(xi*sinC,
		r*math.Cos(dec0)*cosC-eta*math.Sin(dec0)*sinC)

	ra /= degToRad
	dec /= degToRad
	for ra < 0 {
		ra += 360
	}
	for ra >= 360 {
		ra -= 360
	}
	return ra, dec
}

// SkyToPixel converts (ra, dec) in degrees to the 1-based (column, row)
// pixel coordinate. Coordinates on the far hemisphere of the projection
// center cannot be mapped and return an error.
func (w *WCS) SkyToPixel(ra, dec float64) (column, row float64, err error) {
	raR := ra * degToRad
	decR := dec * degToRad
	ra0 := w.CRVal1 * degToRad
	dec0 := w.CRVal2 * degToRad

	cosC := math.Sin(dec0)*math.Sin(decR) +
		math.Cos(dec0)*math.Cos(decR)*math.Cos(raR-ra0)
	if cosC <= 0 {
		return 0, 0, errors.NewWCSError(
			"sky coordinate is outside the projection hemisphere", nil)
	}

	xi := math.Cos(decR) * math.Sin(raR-ra0) / cosC / degToRad
	eta := (math.Cos(dec0)*math.Sin(decR) -
		math.Sin(dec0)*math.Cos(decR)*math.Cos(raR-ra0)) / cosC / degToRad

	det := w.CD[0][0]*w.CD[1][1] - w.CD[0][1]*w.CD[1][0]
	if det == 0 {
		return 0, 0, errors.NewWCSError("CD matrix is singular", nil)
	}
	dx := (w.CD[1][1]*xi - w.CD[0][1]*eta) / det
	dy := (w.CD[0][0]*eta - w.CD[1][0]*xi) / det

	return dx + w.CRPix1, dy + w.CRPix2, nil
}
