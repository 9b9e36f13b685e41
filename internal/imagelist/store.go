package imagelist

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/pkg/tess"
)

// Store persists one image listing per sector, each in its own SQLite
// database file so a sector can be fetched, shipped, and replaced as a
// single artifact.
type Store struct {
	pathFor func(sector int) string
}

// NewStore creates a listing store. pathFor maps a sector number to the
// database file holding its listing.
func NewStore(pathFor func(sector int) string) *Store {
	return &Store{pathFor: pathFor}
}

// Path returns the database file backing a sector's listing.
func (s *Store) Path(sector int) string {
	return s.pathFor(sector)
}

// Exists reports whether a listing has already been persisted for sector.
func (s *Store) Exists(sector int) bool {
	_, err := os.Stat(s.pathFor(sector))
	return err == nil
}

const listingSchema = `
CREATE TABLE IF NOT EXISTS ffi_images (
	filename TEXT PRIMARY KEY,
	sector   INTEGER NOT NULL,
	camera   INTEGER NOT NULL,
	ccd      INTEGER NOT NULL,
	start    TEXT NOT NULL,
	stop     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ffi_images_key ON ffi_images(camera, ccd);
`

// openDB opens the sector database with WAL journaling.
func (s *Store) openDB(sector int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.pathFor(sector)+"?_journal_mode=WAL")
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("opening listing database for sector %d", sector), err)
	}
	return db, nil
}

// Write persists a sector listing in a single transaction. The listing is
// written whole; a partially written sector never becomes visible.
func (s *Store) Write(ctx context.Context, sector int, images []tess.Image) error {
	db, err := s.openDB(sector)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, listingSchema); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("creating listing schema for sector %d", sector), err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("beginning listing transaction for sector %d", sector), err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ffi_images (filename, sector, camera, ccd, start, stop)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("preparing listing insert for sector %d", sector), err)
	}
	defer stmt.Close()

	for _, img := range images {
		if _, err := stmt.ExecContext(ctx, img.Filename, img.Sector, img.Camera,
			img.CCD, img.Start, img.Stop); err != nil {
			return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
				fmt.Sprintf("inserting image %s", img.Filename), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("committing listing for sector %d", sector), err)
	}
	return nil
}

// Read loads a sector listing ordered by filename. Chronological order
// falls out of the ordering because TESS filenames embed the observation
// timestamp as their leading component.
func (s *Store) Read(ctx context.Context, sector int) ([]tess.Image, error) {
	if !s.Exists(sector) {
		return nil, errors.NewCatalogError(errors.CodeListingNotFound,
			fmt.Sprintf("no image listing persisted for sector %d", sector), nil)
	}

	db, err := s.openDB(sector)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT filename, sector, camera, ccd, start, stop
		 FROM ffi_images ORDER BY filename`)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("reading listing for sector %d", sector), err)
	}
	defer rows.Close()

	var images []tess.Image
	for rows.Next() {
		var img tess.Image
		if err := rows.Scan(&img.Filename, &img.Sector, &img.Camera, &img.CCD,
			&img.Start, &img.Stop); err != nil {
			return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
				fmt.Sprintf("scanning listing row for sector %d", sector), err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogWriteFailed,
			fmt.Sprintf("iterating listing for sector %d", sector), err)
	}
	return images, nil
}
