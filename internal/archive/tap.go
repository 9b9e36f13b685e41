package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tessloc/tessloc/internal/errors"
)

// TAPClient queries the MAST TAP service for TESS FFI products.
type TAPClient struct {
	baseURL string
	client  *http.Client
}

// NewTAPClient creates a TAP client for the given sync endpoint.
func NewTAPClient(baseURL string, timeout time.Duration) *TAPClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &TAPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// sectorADQL builds the ADQL query listing all FFI image products of a
// sector. The obs_id pattern pins the zero-padded sector number embedded
// in TESS product identifiers.
func sectorADQL(sector int) string {
	return fmt.Sprintf(
		`SELECT access_url, t_min, t_max FROM obscore `+
			`WHERE obs_collection='TESS' AND dataproduct_type='image' `+
			`AND obs_id LIKE 'tess%%-s%04d-%%'`, sector)
}

// tapResponse is the JSON shape of a TAP sync result.
type tapResponse struct {
	Fields []struct {
		Name string `json:"name"`
	} `json:"fields"`
	Data [][]interface{} `json:"data"`
}

// QuerySector lists all FFI products of a sector. One network round-trip,
// no retries; errors propagate to the caller.
func (t *TAPClient) QuerySector(ctx context.Context, sector int) ([]Product, error) {
	form := url.Values{}
	form.Set("REQUEST", "doQuery")
	form.Set("LANG", "ADQL")
	form.Set("FORMAT", "json")
	form.Set("QUERY", sectorADQL(sector))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeQueryFailed,
			fmt.Sprintf("building TAP request for sector %d", sector), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeQueryFailed,
			fmt.Sprintf("TAP query for sector %d", sector), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewArchiveError(errors.CodeQueryFailed,
			fmt.Sprintf("TAP query for sector %d returned status %d: %s",
				sector, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed tapResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewArchiveError(errors.CodeQueryFailed,
			fmt.Sprintf("decoding TAP response for sector %d", sector), err)
	}

	return parseTAPResult(&parsed)
}

// parseTAPResult converts the positional TAP result into products, mapping
// columns by name so column order in the response does not matter.
func parseTAPResult(r *tapResponse) ([]Product, error) {
	urlIdx, minIdx, maxIdx := -1, -1, -1
	for i, f := range r.Fields {
		switch strings.ToLower(f.Name) {
		case "access_url":
			urlIdx = i
		case "t_min":
			minIdx = i
		case "t_max":
			maxIdx = i
		}
	}
	if urlIdx < 0 || minIdx < 0 || maxIdx < 0 {
		return nil, errors.NewArchiveError(errors.CodeQueryFailed,
			"TAP response missing access_url/t_min/t_max columns", nil)
	}

	products := make([]Product, 0, len(r.Data))
	for i, row := range r.Data {
		if len(row) <= urlIdx || len(row) <= minIdx || len(row) <= maxIdx {
			return nil, errors.NewArchiveError(errors.CodeQueryFailed,
				fmt.Sprintf("TAP row %d is shorter than the field list", i), nil)
		}

		accessURL, ok := row[urlIdx].(string)
		if !ok {
			return nil, errors.NewArchiveError(errors.CodeQueryFailed,
				fmt.Sprintf("TAP row %d: access_url is not a string", i), nil)
		}

		tmin, err := tapFloat(row[minIdx])
		if err != nil {
			return nil, errors.NewArchiveError(errors.CodeQueryFailed,
				fmt.Sprintf("TAP row %d: t_min: %v", i, err), nil)
		}
		tmax, err := tapFloat(row[maxIdx])
		if err != nil {
			return nil, errors.NewArchiveError(errors.CodeQueryFailed,
				fmt.Sprintf("TAP row %d: t_max: %v", i, err), nil)
		}

		products = append(products, Product{
			AccessURL: accessURL,
			TMinMJD:   tmin,
			TMaxMJD:   tmax,
		})
	}

	return products, nil
}

// tapFloat coerces a TAP JSON cell to float64. Numeric cells arrive as
// float64 from encoding/json; some TAP services quote them.
func tapFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err != nil {
			return 0, fmt.Errorf("unparseable number %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected cell type %T", v)
	}
}
