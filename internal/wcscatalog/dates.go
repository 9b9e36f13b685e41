package wcscatalog

import (
	"fmt"
	"sort"

	"github.com/tessloc/tessloc/internal/errors"
)

// SectorRange is one sector's overall observation window across all of its
// camera/ccd triples.
type SectorRange struct {
	Sector int
	Begin  string
	End    string
}

// SectorDates derives the sector-date index from catalog rows: per sector,
// the earliest begin and latest end over its triples, sorted by sector.
// Sector windows must not overlap; time-to-sector lookups return the first
// matching interval, so an overlap would silently shadow the later sector.
func SectorDates(rows []Row) ([]SectorRange, error) {
	bySector := make(map[int]*SectorRange)
	for _, row := range rows {
		r, ok := bySector[row.Sector]
		if !ok {
			bySector[row.Sector] = &SectorRange{
				Sector: row.Sector,
				Begin:  row.Begin,
				End:    row.End,
			}
			continue
		}
		if row.Begin < r.Begin {
			r.Begin = row.Begin
		}
		if row.End > r.End {
			r.End = row.End
		}
	}

	ranges := make([]SectorRange, 0, len(bySector))
	for _, r := range bySector {
		ranges = append(ranges, *r)
	}
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Sector < ranges[j].Sector
	})

	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if cur.Begin <= prev.End {
			return nil, errors.NewCatalogError(errors.CodeOverlappingSectors,
				fmt.Sprintf("sector %d window [%s, %s] overlaps sector %d window [%s, %s]",
					cur.Sector, cur.Begin, cur.End, prev.Sector, prev.Begin, prev.End), nil)
		}
	}
	return ranges, nil
}
