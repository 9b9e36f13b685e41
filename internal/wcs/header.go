// Package wcs parses stored WCS headers into usable coordinate transforms
// and memoizes the parsed solutions behind an LRU cache.
package wcs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tessloc/tessloc/internal/errors"
	"github.com/tessloc/tessloc/pkg/tess"
)

const cardWidth = 80

// WCS is a parsed astrometric solution: a gnomonic (TAN) projection
// centered on (CRVAL1, CRVAL2) with the pixel-to-intermediate transform
// given by the CD matrix.
type WCS struct {
	CType1 string
	CType2 string
	CRPix1 float64
	CRPix2 float64
	CRVal1 float64
	CRVal2 float64
	CD     [2][2]float64

	// MJDRef and DateRef carry the header's time reference. DateRef is
	// derived from MJDRef when the header omits it, which TESS products
	// routinely do.
	MJDRef  float64
	DateRef string
}

// ParseHeader parses FITS header text into a WCS. It accepts both raw
// 80-column concatenated card text and newline-separated cards.
func ParseHeader(text string) (*WCS, error) {
	cards := splitCards(text)
	if len(cards) == 0 {
		return nil, errors.NewWCSError("header contains no cards", nil)
	}

	values := make(map[string]string, len(cards))
	for _, card := range cards {
		key, val, ok := parseCard(card)
		if ok {
			values[key] = val
		}
	}

	w := &WCS{}
	var err error
	if w.CType1, err = stringValue(values, "CTYPE1"); err != nil {
		return nil, err
	}
	if w.CType2, err = stringValue(values, "CTYPE2"); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(w.CType1, "-TAN") || !strings.HasSuffix(w.CType2, "-TAN") {
		return nil, errors.NewWCSError(
			fmt.Sprintf("unsupported projection %q/%q, want TAN", w.CType1, w.CType2), nil)
	}

	if w.CRPix1, err = floatValue(values, "CRPIX1"); err != nil {
		return nil, err
	}
	if w.CRPix2, err = floatValue(values, "CRPIX2"); err != nil {
		return nil, err
	}
	if w.CRVal1, err = floatValue(values, "CRVAL1"); err != nil {
		return nil, err
	}
	if w.CRVal2, err = floatValue(values, "CRVAL2"); err != nil {
		return nil, err
	}

	if w.CD, err = scaleMatrix(values); err != nil {
		return nil, err
	}

	// TESS headers carry MJDREF without DATEREF; derive it quietly instead
	// of surfacing a fix-up warning on every resolution.
	if raw, ok := values["MJD-OBS"]; ok {
		w.MJDRef, _ = strconv.ParseFloat(raw, 64)
	}
	if raw, ok := values["MJDREF"]; ok {
		w.MJDRef, _ = strconv.ParseFloat(raw, 64)
	}
	if raw, ok := values["DATEREF"]; ok {
		w.DateRef = raw
	} else if w.MJDRef != 0 {
		w.DateRef = tess.MJDToISO(w.MJDRef)
	}

	return w, nil
}

// splitCards turns header text into individual cards. Text without
// newlines is treated as concatenated 80-column cards.
func splitCards(text string) []string {
	if strings.Contains(text, "\n") {
		var cards []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimRight(line, " \r"); line != "" {
				cards = append(cards, line)
			}
		}
		return cards
	}

	var cards []string
	for len(text) > 0 {
		n := cardWidth
		if len(text) < n {
			n = len(text)
		}
		card := strings.TrimRight(text[:n], " ")
		text = text[n:]
		if card == "" {
			continue
		}
		if card == "END" {
			break
		}
		cards = append(cards, card)
	}
	return cards
}

// parseCard extracts a key/value pair from one card. Commentary cards
// (COMMENT, HISTORY, blank keyword) carry no value and are skipped.
func parseCard(card string) (key, value string, ok bool) {
	eq := strings.Index(card, "=")
	if eq < 1 || eq > 8+1 {
		return "", "", false
	}
	key = strings.TrimSpace(card[:eq])
	if key == "" || key == "COMMENT" || key == "HISTORY" {
		return "", "", false
	}

	rest := strings.TrimSpace(card[eq+1:])
	if strings.HasPrefix(rest, "'") {
		// Quoted string; the closing quote ends the value, anything after
		// the / separator is an inline comment.
		end := strings.Index(rest[1:], "'")
		if end < 0 {
			return "", "", false
		}
		return key, strings.TrimSpace(rest[1 : 1+end]), true
	}

	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = strings.TrimSpace(rest[:slash])
	}
	if rest == "" {
		return "", "", false
	}
	return key, rest, true
}

func stringValue(values map[string]string, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", errors.NewWCSError(fmt.Sprintf("header is missing %s", key), nil)
	}
	return v, nil
}

func floatValue(values map[string]string, key string) (float64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, errors.NewWCSError(fmt.Sprintf("header is missing %s", key), nil)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.NewWCSError(fmt.Sprintf("header %s is not numeric: %q", key, raw), err)
	}
	return f, nil
}

// scaleMatrix resolves the pixel scale: a CD matrix when present,
// otherwise PC×CDELT with PC defaulting to identity.
func scaleMatrix(values map[string]string) ([2][2]float64, error) {
	var cd [2][2]float64

	if _, ok := values["CD1_1"]; ok {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				key := fmt.Sprintf("CD%d_%d", i+1, j+1)
				if raw, ok := values[key]; ok {
					f, err := strconv.ParseFloat(raw, 64)
					if err != nil {
						return cd, errors.NewWCSError(
							fmt.Sprintf("header %s is not numeric: %q", key, raw), err)
					}
					cd[i][j] = f
				}
			}
		}
		return cd, nil
	}

	cdelt1, err := floatValue(values, "CDELT1")
	if err != nil {
		return cd, errors.NewWCSError("header carries neither CD matrix nor CDELT scale", nil)
	}
	cdelt2, err := floatValue(values, "CDELT2")
	if err != nil {
		return cd, err
	}

	pc := [2][2]float64{{1, 0}, {0, 1}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			key := fmt.Sprintf("PC%d_%d", i+1, j+1)
			if raw, ok := values[key]; ok {
				f, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return cd, errors.NewWCSError(
						fmt.Sprintf("header %s is not numeric: %q", key, raw), err)
				}
				pc[i][j] = f
			}
		}
	}

	cd[0][0] = cdelt1 * pc[0][0]
	cd[0][1] = cdelt1 * pc[0][1]
	cd[1][0] = cdelt2 * pc[1][0]
	cd[1][1] = cdelt2 * pc[1][1]
	return cd, nil
}
