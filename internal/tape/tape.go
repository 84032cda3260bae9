// Package tape implements the Market Tape: a read-only, in-memory store of
// per-asset OHLCV bars indexed by a strictly increasing timestamp. One CSV
// per asset is loaded into a shared Tape, with flexible header matching and
// RFC3339-or-unix-seconds timestamp parsing.
package tape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when an asset or timestamp is not present in the
// tape.
var ErrNotFound = errors.New("tape: not found")

// Bar is one OHLCV row for one asset at one timestamp.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// series is one asset's bars, sorted ascending by Timestamp, plus an index
// for O(1) timestamp lookups.
type series struct {
	bars  []Bar
	index map[int64]int // unix nano -> position in bars
}

// Tape is the shared, read-only multi-asset bar store. The zero value is not
// usable; construct with New or LoadCSVs.
type Tape struct {
	assets []string
	data   map[string]*series
}

// New builds a Tape from already-loaded per-asset bar slices. Each slice must
// be sorted ascending by Timestamp with no duplicate timestamps; New does not
// re-sort — use LoadCSVs or sort.Slice the input first.
func New(bars map[string][]Bar) (*Tape, error) {
	if len(bars) == 0 {
		return nil, errors.New("tape: no asset data provided")
	}
	t := &Tape{data: make(map[string]*series, len(bars))}
	for asset, rows := range bars {
		idx := make(map[int64]int, len(rows))
		for i, b := range rows {
			key := b.Timestamp.UnixNano()
			if _, dup := idx[key]; dup {
				return nil, fmt.Errorf("tape: duplicate timestamp %s for asset %s", b.Timestamp, asset)
			}
			if i > 0 && !b.Timestamp.After(rows[i-1].Timestamp) {
				return nil, fmt.Errorf("tape: timestamps not strictly increasing for asset %s at %s", asset, b.Timestamp)
			}
			idx[key] = i
		}
		t.data[asset] = &series{bars: rows, index: idx}
		t.assets = append(t.assets, asset)
	}
	sort.Strings(t.assets)
	return t, nil
}

// Assets returns the asset names loaded into the tape, in a stable (sorted)
// order. Callers that need a configured pace-driver asset should pass their
// own ordered asset list rather than rely on this; Assets is provided for
// introspection/export only.
func (t *Tape) Assets() []string {
	out := make([]string, len(t.assets))
	copy(out, t.assets)
	return out
}

func (t *Tape) series(asset string) (*series, error) {
	s, ok := t.data[asset]
	if !ok {
		return nil, fmt.Errorf("%w: asset %s", ErrNotFound, asset)
	}
	return s, nil
}

// Price returns the close price for asset at the exact bar timestamp ts.
func (t *Tape) Price(asset string, ts time.Time) (float64, error) {
	b, err := t.OHLCV(asset, ts)
	if err != nil {
		return 0, err
	}
	return b.Close, nil
}

// OHLCV returns the full bar for asset at the exact bar timestamp ts.
func (t *Tape) OHLCV(asset string, ts time.Time) (Bar, error) {
	s, err := t.series(asset)
	if err != nil {
		return Bar{}, err
	}
	i, ok := s.index[ts.UnixNano()]
	if !ok {
		return Bar{}, fmt.Errorf("%w: timestamp %s for asset %s", ErrNotFound, ts, asset)
	}
	return s.bars[i], nil
}

// FirstTs returns the earliest bar timestamp for asset.
func (t *Tape) FirstTs(asset string) (time.Time, error) {
	s, err := t.series(asset)
	if err != nil {
		return time.Time{}, err
	}
	return s.bars[0].Timestamp, nil
}

// LastTs returns the latest bar timestamp for asset.
func (t *Tape) LastTs(asset string) (time.Time, error) {
	s, err := t.series(asset)
	if err != nil {
		return time.Time{}, err
	}
	return s.bars[len(s.bars)-1].Timestamp, nil
}

// NextTs returns (true, zero) when ts is the last bar for asset, or
// (false, next timestamp) otherwise. It fails with ErrNotFound if ts is not
// an exact bar timestamp for asset.
func (t *Tape) NextTs(asset string, ts time.Time) (end bool, next time.Time, err error) {
	s, err := t.series(asset)
	if err != nil {
		return false, time.Time{}, err
	}
	i, ok := s.index[ts.UnixNano()]
	if !ok {
		return false, time.Time{}, fmt.Errorf("%w: timestamp %s for asset %s", ErrNotFound, ts, asset)
	}
	if i+1 >= len(s.bars) {
		return true, time.Time{}, nil
	}
	return false, s.bars[i+1].Timestamp, nil
}

// ValidatePaceAlignment checks that every asset's bar timestamps are a
// superset-aligned match of the pace asset's timestamps — i.e. for every
// timestamp on the pace asset, every other asset either has no data at all
// (not loaded) or has a bar at that exact timestamp. Mismatched multi-asset
// tapes are a configuration error; engine.New runs this check when it is
// constructed.
func (t *Tape) ValidatePaceAlignment(paceAsset string) error {
	pace, err := t.series(paceAsset)
	if err != nil {
		return err
	}
	for asset, s := range t.data {
		if asset == paceAsset {
			continue
		}
		for _, b := range pace.bars {
			if _, ok := s.index[b.Timestamp.UnixNano()]; !ok {
				return fmt.Errorf("tape: asset %s missing bar at pace timestamp %s (asset %s)", asset, b.Timestamp, paceAsset)
			}
		}
	}
	return nil
}

// LoadCSVs loads one CSV file per asset (columns: date/time, open, high,
// low, close, volume) into a Tape.
func LoadCSVs(assetPaths map[string]string) (*Tape, error) {
	bars := make(map[string][]Bar, len(assetPaths))
	for asset, path := range assetPaths {
		rows, err := LoadCSV(path)
		if err != nil {
			return nil, fmt.Errorf("tape: loading %s: %w", asset, err)
		}
		bars[asset] = rows
	}
	return New(bars)
}

// LoadCSV reads a single per-asset bar CSV. Header names are matched
// case-insensitively; the timestamp column may be named "date" or "time"/
// "timestamp" and accepts RFC3339 or UNIX-seconds values.
func LoadCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []Bar
	var headers []string
	rowIdx := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		tsStr := firstNonEmpty(row, "date", "time", "timestamp")
		op := firstNonEmpty(row, "open")
		hp := firstNonEmpty(row, "high")
		lp := firstNonEmpty(row, "low")
		cp := firstNonEmpty(row, "close")
		vp := firstNonEmpty(row, "volume", "vol")
		if tsStr == "" || op == "" || cp == "" {
			rowIdx++
			continue
		}
		ts, err := parseTimeFlexible(tsStr)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIdx, err)
		}
		o, _ := strconv.ParseFloat(op, 64)
		h, _ := strconv.ParseFloat(hp, 64)
		l, _ := strconv.ParseFloat(lp, 64)
		c, _ := strconv.ParseFloat(cp, 64)
		v, _ := strconv.ParseFloat(vp, 64)
		out = append(out, Bar{Timestamp: ts.UTC(), Open: o, High: h, Low: l, Close: c, Volume: v})
		rowIdx++
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
