// Package wcscatalog builds and persists the WCS catalog: one row per
// (sector, camera, ccd) triple holding the triple's astrometric header and
// the observation window that header stands in for. A derived sector-date
// index maps each sector to its overall time range.
package wcscatalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"

	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/pkg/tess"
)

// Row is one WCS catalog entry. WCS holds the raw FITS header text of the
// triple's representative image; Begin and End bound the sector's
// observation window for that triple in ISO time.
type Row struct {
	Sector int
	Camera int
	CCD    int
	Begin  string
	End    string
	WCS    string
}

// Key returns the row's unique catalog key.
func (r Row) Key() tess.CCDKey {
	return tess.CCDKey{Sector: r.Sector, Camera: r.Camera, CCD: r.CCD}
}

// Store persists the WCS catalog in a single SQLite file. Header text is
// snappy-compressed on disk with a murmur3 content hash alongside it, so a
// corrupted or truncated blob is detected on load instead of surfacing as
// a downstream parse failure.
type Store struct {
	path string

	mu     sync.Mutex
	rows   []Row
	loaded bool
}

// NewStore creates a WCS catalog store backed by the database at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the database file backing the catalog.
func (s *Store) Path() string {
	return s.path
}

// begin and end are SQLite keywords and stay quoted in every statement.
const catalogSchema = `
CREATE TABLE IF NOT EXISTS wcs_catalog (
	sector   INTEGER NOT NULL,
	camera   INTEGER NOT NULL,
	ccd      INTEGER NOT NULL,
	"begin"  TEXT NOT NULL,
	"end"    TEXT NOT NULL,
	wcs      BLOB NOT NULL,
	wcs_hash INTEGER NOT NULL,
	PRIMARY KEY (sector, camera, ccd)
);
`

func (s *Store) openDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL")
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"opening WCS catalog database", err)
	}
	return db, nil
}

// Replace rewrites the catalog with exactly the given rows in one
// transaction. Existing rows are discarded, including rows for sectors not
// present in the new set; callers rebuilding a subset of sectors must pass
// the full row set they want to keep.
func (s *Store) Replace(ctx context.Context, rows []Row) error {
	db, err := s.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, catalogSchema); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"creating WCS catalog schema", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"beginning WCS catalog transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wcs_catalog`); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"clearing WCS catalog", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO wcs_catalog (sector, camera, ccd, "begin", "end", wcs, wcs_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"preparing WCS catalog insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		blob := snappy.Encode(nil, []byte(row.WCS))
		hash := int64(murmur3.Sum64([]byte(row.WCS)))
		if _, err := stmt.ExecContext(ctx, row.Sector, row.Camera, row.CCD,
			row.Begin, row.End, blob, hash); err != nil {
			return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
				fmt.Sprintf("inserting WCS row for %s", row.Key()), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"committing WCS catalog", err)
	}

	s.mu.Lock()
	s.rows = nil
	s.loaded = false
	s.mu.Unlock()
	return nil
}

// Load returns every catalog row ordered by (sector, camera, ccd). The
// result is memoized for the store's lifetime; Reset drops the memo.
func (s *Store) Load(ctx context.Context) ([]Row, error) {
	s.mu.Lock()
	if s.loaded {
		rows := s.rows
		s.mu.Unlock()
		return rows, nil
	}
	s.mu.Unlock()

	rows, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rows = rows
	s.loaded = true
	s.mu.Unlock()
	return rows, nil
}

// Get returns the unique row for key, or ROW_NOT_FOUND.
func (s *Store) Get(ctx context.Context, key tess.CCDKey) (Row, error) {
	if err := key.Validate(); err != nil {
		return Row{}, err
	}
	rows, err := s.Load(ctx)
	if err != nil {
		return Row{}, err
	}
	for _, row := range rows {
		if row.Key() == key {
			return row, nil
		}
	}
	return Row{}, errors.NewLookupError(errors.CodeRowNotFound,
		fmt.Sprintf("no WCS catalog row for %s", key))
}

// Reset drops the memoized row set. The next Load re-reads from disk.
func (s *Store) Reset() {
	s.mu.Lock()
	s.rows = nil
	s.loaded = false
	s.mu.Unlock()
}

func (s *Store) readAll(ctx context.Context) ([]Row, error) {
	db, err := s.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, catalogSchema); err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"creating WCS catalog schema", err)
	}

	result, err := db.QueryContext(ctx,
		`SELECT sector, camera, ccd, "begin", "end", wcs, wcs_hash
		 FROM wcs_catalog ORDER BY sector, camera, ccd`)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"reading WCS catalog", err)
	}
	defer result.Close()

	var rows []Row
	for result.Next() {
		var row Row
		var blob []byte
		var hash int64
		if err := result.Scan(&row.Sector, &row.Camera, &row.CCD,
			&row.Begin, &row.End, &blob, &hash); err != nil {
			return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
				"scanning WCS catalog row", err)
		}

		text, err := snappy.Decode(nil, blob)
		if err != nil {
			return nil, errors.NewCatalogError(errors.CodeCorruptionDetected,
				fmt.Sprintf("decompressing WCS blob for %s", row.Key()), err)
		}
		if int64(murmur3.Sum64(text)) != hash {
			return nil, errors.NewCatalogError(errors.CodeCorruptionDetected,
				fmt.Sprintf("WCS content hash mismatch for %s", row.Key()), nil)
		}
		row.WCS = string(text)
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			"iterating WCS catalog", err)
	}
	return rows, nil
}
