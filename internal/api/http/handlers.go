package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/internal/locator"
	"github.com/tessloc/tessloc/pkg/tess"
)

// WCSResponse is the solution summary returned by /v1/wcs.
type WCSResponse struct {
	Sector    int    `json:"sector"`
	Camera    int    `json:"camera"`
	CCD       int    `json:"ccd"`
	Begin     string `json:"begin"`
	End       string `json:"end"`
	Header    string `json:"header"`
	RequestID string `json:"request_id"`
}

// SectorResponse is returned by /v1/sector. Sector is null when the
// timestamp is outside every sector window; that is an expected result,
// served with status 200.
type SectorResponse struct {
	Sector    *int   `json:"sector"`
	Found     bool   `json:"found"`
	RequestID string `json:"request_id"`
}

// SkyCoordResponse is returned by /v1/skycoord.
type SkyCoordResponse struct {
	RA        float64 `json:"ra"`
	Dec       float64 `json:"dec"`
	RequestID string  `json:"request_id"`
}

// SectorDatesResponse is returned by /v1/sector-dates.
type SectorDatesResponse struct {
	Sectors   []SectorDateEntry `json:"sectors"`
	RequestID string            `json:"request_id"`
}

// SectorDateEntry is one sector's observation window.
type SectorDateEntry struct {
	Sector int    `json:"sector"`
	Begin  string `json:"begin"`
	End    string `json:"end"`
}

// NewRouter builds the API router over the locator service with the
// default middleware chain applied.
func NewRouter(svc *locator.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/wcs", handleWCS(svc))
	mux.HandleFunc("/v1/sector", handleSector(svc))
	mux.HandleFunc("/v1/skycoord", handleSkyCoord(svc))
	mux.HandleFunc("/v1/sector-dates", handleSectorDates(svc))
	mux.HandleFunc("/healthz", handleHealth)
	return DefaultMiddleware()(mux)
}

// statusForError maps a service error to an HTTP status.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeRowNotFound, errors.CodeListingNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidKey, errors.CodeInvalidPixel, errors.CodeBadTimestamp:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error, requestID string) {
	writeError(w, statusForError(err), err.Error(), errors.GetCode(err), requestID)
}

// keyFromQuery parses the sector/camera/ccd query parameters.
func keyFromQuery(r *http.Request) (tess.CCDKey, error) {
	var key tess.CCDKey
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"sector", &key.Sector},
		{"camera", &key.Camera},
		{"ccd", &key.CCD},
	} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			return key, fmt.Errorf("missing query parameter %q", p.name)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return key, fmt.Errorf("query parameter %q is not an integer: %q", p.name, raw)
		}
		*p.dst = v
	}
	return key, key.Validate()
}

func handleWCS(svc *locator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
			return
		}

		key, err := keyFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), errors.CodeInvalidKey, requestID)
			return
		}

		row, err := svc.GetRow(r.Context(), key)
		if err != nil {
			writeServiceError(w, err, requestID)
			return
		}

		writeJSON(w, http.StatusOK, WCSResponse{
			Sector:    row.Sector,
			Camera:    row.Camera,
			CCD:       row.CCD,
			Begin:     row.Begin,
			End:       row.End,
			Header:    row.WCS,
			RequestID: requestID,
		})
	}
}

func handleSector(svc *locator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
			return
		}

		timestamp := r.URL.Query().Get("time")
		if timestamp == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter \"time\"",
				errors.CodeBadTimestamp, requestID)
			return
		}

		sector, found, err := svc.TimeToSector(r.Context(), timestamp)
		if err != nil {
			writeServiceError(w, err, requestID)
			return
		}

		resp := SectorResponse{Found: found, RequestID: requestID}
		if found {
			resp.Sector = &sector
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSkyCoord(svc *locator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
			return
		}

		key, err := keyFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), errors.CodeInvalidKey, requestID)
			return
		}

		column, err := strconv.ParseFloat(r.URL.Query().Get("column"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "query parameter \"column\" is not a number",
				errors.CodeInvalidPixel, requestID)
			return
		}
		row, err := strconv.ParseFloat(r.URL.Query().Get("row"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "query parameter \"row\" is not a number",
				errors.CodeInvalidPixel, requestID)
			return
		}

		ra, dec, err := svc.PixelToSky(r.Context(), key, column, row)
		if err != nil {
			writeServiceError(w, err, requestID)
			return
		}

		writeJSON(w, http.StatusOK, SkyCoordResponse{RA: ra, Dec: dec, RequestID: requestID})
	}
}

func handleSectorDates(svc *locator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
			return
		}

		dates, err := svc.SectorDates(r.Context())
		if err != nil {
			writeServiceError(w, err, requestID)
			return
		}

		entries := make([]SectorDateEntry, 0, len(dates))
		for _, d := range dates {
			entries = append(entries, SectorDateEntry{Sector: d.Sector, Begin: d.Begin, End: d.End})
		}
		writeJSON(w, http.StatusOK, SectorDatesResponse{Sectors: entries, RequestID: requestID})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
