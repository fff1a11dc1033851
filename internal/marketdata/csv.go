// Package marketdata loads historical OHLCV bars from CSV exports.
package marketdata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"momentum-trade/internal/model"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMalformed is returned for rows that cannot be parsed into a candle.
var ErrMalformed = errors.New("malformed candle data")

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
}

// Load reads candles from a CSV file.
func Load(path string) ([]model.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candles %s: %w", path, err)
	}
	defer f.Close()

	candles, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading candles %s: %w", path, err)
	}
	return candles, nil
}

// Read parses time,open,high,low,close[,volume] rows. A header row is skipped
// when present. Terminal exports in UTF-16 are detected by their byte order mark.
// Timestamps are unix seconds, unix milliseconds or one of the layouts in
// timeLayouts (UTC), and must be strictly increasing.
func Read(r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(decode(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var candles []model.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if line == 1 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if isHeader(rec) {
				continue
			}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		c, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if n := len(candles); n > 0 && !c.Time.After(candles[n-1].Time) {
			return nil, fmt.Errorf("%w: line %d: timestamp %s not after %s",
				ErrMalformed, line, c.Time.Format(time.RFC3339), candles[n-1].Time.Format(time.RFC3339))
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func decode(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	bom, _ := br.Peek(2)
	if len(bom) == 2 && ((bom[0] == 0xFF && bom[1] == 0xFE) || (bom[0] == 0xFE && bom[1] == 0xFF)) {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	}
	return br
}

func isHeader(rec []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-1]), 64)
	return err != nil
}

func parseRow(rec []string) (model.Candle, error) {
	if len(rec) < 5 {
		return model.Candle{}, fmt.Errorf("want at least 5 fields, got %d", len(rec))
	}
	ts, err := parseTime(strings.TrimSpace(rec[0]))
	if err != nil {
		return model.Candle{}, err
	}

	var vals [5]float64
	for i := 1; i < len(rec) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = v
	}

	c := model.Candle{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if c.High < c.Low || c.Close <= 0 {
		return model.Candle{}, fmt.Errorf("inconsistent bar high=%f low=%f close=%f", c.High, c.Low, c.Close)
	}
	return c, nil
}

func parseTime(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
