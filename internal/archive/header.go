package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tessloc/tessloc/internal/errors"
)

// fitsBlockSize is the fixed FITS block size: 36 cards of 80 bytes.
const fitsBlockSize = 2880

// fitsCardSize is the fixed width of one FITS header card.
const fitsCardSize = 80

// FITSHeaderClient downloads the primary header of a remote FITS file.
// It issues a single ranged GET covering at most maxBlocks header blocks
// and reads cards until the END card, so the image payload is never
// transferred.
type FITSHeaderClient struct {
	client    *http.Client
	maxBlocks int
}

// NewFITSHeaderClient creates a header client. maxBlocks bounds how much
// of the file is requested; TESS FFI primary headers fit comfortably in a
// handful of blocks.
func NewFITSHeaderClient(timeout time.Duration, maxBlocks int) *FITSHeaderClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if maxBlocks < 1 {
		maxBlocks = 20
	}
	return &FITSHeaderClient{
		client:    &http.Client{Timeout: timeout},
		maxBlocks: maxBlocks,
	}
}

// FetchHeader downloads the primary FITS header of url and returns it as
// newline-joined 80-column cards, up to and excluding the END card.
func (f *FITSHeaderClient) FetchHeader(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewArchiveError(errors.CodeHeaderDownloadFailed,
			fmt.Sprintf("building header request for %s", url), err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", f.maxBlocks*fitsBlockSize-1))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.NewArchiveError(errors.CodeHeaderDownloadFailed,
			fmt.Sprintf("downloading header of %s", url), err)
	}
	defer resp.Body.Close()

	// Servers that ignore Range return 200 with the full file; the block
	// reader below still stops at the END card either way.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", errors.NewArchiveError(errors.CodeHeaderDownloadFailed,
			fmt.Sprintf("header download of %s returned status %d", url, resp.StatusCode), nil)
	}

	header, err := readPrimaryHeader(resp.Body, f.maxBlocks)
	if err != nil {
		return "", errors.NewArchiveError(errors.CodeHeaderDownloadFailed,
			fmt.Sprintf("reading header of %s", url), err)
	}
	return header, nil
}

// readPrimaryHeader consumes FITS blocks from r until the END card,
// returning the cards before it joined with newlines.
func readPrimaryHeader(r io.Reader, maxBlocks int) (string, error) {
	var cards []string
	block := make([]byte, fitsBlockSize)

	for b := 0; b < maxBlocks; b++ {
		if _, err := io.ReadFull(r, block); err != nil {
			return "", fmt.Errorf("short read in header block %d: %w", b, err)
		}

		for off := 0; off < fitsBlockSize; off += fitsCardSize {
			card := string(block[off : off+fitsCardSize])
			if strings.TrimRight(card, " ") == "END" {
				return strings.Join(cards, "\n"), nil
			}
			cards = append(cards, strings.TrimRight(card, " "))
		}
	}

	return "", fmt.Errorf("no END card within %d header blocks", maxBlocks)
}
