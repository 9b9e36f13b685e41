package imagelist

import (
	"context"
	"sync"

	"github.com/tessloc/tessloc/pkg/tess"
)

// Loader serves persisted sector listings with per-sector memoization, so
// repeated lookups against the same sector hit disk once per process.
type Loader struct {
	store *Store

	mu    sync.Mutex
	cache map[int][]tess.Image
}

// NewLoader creates a loader over the given store.
func NewLoader(store *Store) *Loader {
	return &Loader{
		store: store,
		cache: make(map[int][]tess.Image),
	}
}

// Load returns the full listing of a sector, reading it from disk on the
// first call and from memory afterwards.
func (l *Loader) Load(ctx context.Context, sector int) ([]tess.Image, error) {
	l.mu.Lock()
	if images, ok := l.cache[sector]; ok {
		l.mu.Unlock()
		return images, nil
	}
	l.mu.Unlock()

	images, err := l.store.Read(ctx, sector)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[sector] = images
	l.mu.Unlock()
	return images, nil
}

// ListImages returns the sector listing filtered to one (camera, ccd)
// pair, preserving the listing's filename order.
func (l *Loader) ListImages(ctx context.Context, key tess.CCDKey) ([]tess.Image, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	all, err := l.Load(ctx, key.Sector)
	if err != nil {
		return nil, err
	}

	images := make([]tess.Image, 0, len(all)/(tess.Cameras*tess.CCDs))
	for _, img := range all {
		if img.Camera == key.Camera && img.CCD == key.CCD {
			images = append(images, img)
		}
	}
	return images, nil
}

// Reset drops all memoized listings. Subsequent loads re-read from disk.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.cache = make(map[int][]tess.Image)
	l.mu.Unlock()
}
