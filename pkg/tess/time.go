package tess

import (
	"fmt"
	"math"
	"time"
)

// TimeFormat is the ISO-8601 layout used for every timestamp stored in the
// catalogs: second precision, space-separated date and time. Timestamps in
// this layout compare correctly as plain strings, which the sector lookup
// relies on.
const TimeFormat = "2006-01-02 15:04:05"

// mjdEpoch is Modified Julian Date zero: 1858-11-17 00:00:00 UTC.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// MJDToTime converts a Modified Julian Date day count to a UTC time,
// truncated to whole seconds. The archive reports observation windows as
// MJD floats; truncation (rather than rounding) matches the stored catalog
// precision.
func MJDToTime(mjd float64) time.Time {
	secs := math.Floor(mjd * 86400.0)
	return mjdEpoch.Add(time.Duration(secs) * time.Second)
}

// MJDToISO converts a Modified Julian Date to the catalog timestamp layout.
func MJDToISO(mjd float64) string {
	return MJDToTime(mjd).Format(TimeFormat)
}

// ParseISO parses a catalog timestamp back into a UTC time.
func ParseISO(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("tess: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
