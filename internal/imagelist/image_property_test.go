package imagelist

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tessloc/tessloc/pkg/tess"
)

// TestFilenameParseRoundTrip verifies that any well-formed FFI filename
// parses back to the identifiers that were encoded into it.
func TestFilenameParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("encoded identifiers survive parsing", prop.ForAll(
		func(sector, camera, ccd, stamp int) bool {
			name := fmt.Sprintf("tess%013d-s%04d-%d-%d-0120-s_ffic.fits",
				stamp, sector, camera, ccd)
			key, err := ParseFilename(name)
			if err != nil {
				return false
			}
			return key == tess.CCDKey{Sector: sector, Camera: camera, CCD: ccd}
		},
		gen.IntRange(1, tess.Sectors),
		gen.IntRange(1, tess.Cameras),
		gen.IntRange(1, tess.CCDs),
		gen.IntRange(0, 9999999999),
	))

	properties.Property("window normalization preserves start <= stop", prop.ForAll(
		func(mjd float64, span float64) bool {
			start := tess.MJDToISO(mjd)
			stop := tess.MJDToISO(mjd + span)
			return start <= stop
		},
		gen.Float64Range(40000, 70000),
		gen.Float64Range(0, 30),
	))

	properties.TestingRun(t)
}
