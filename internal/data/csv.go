package data

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"simtrader/types"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// csvBar is one row of a <SYMBOL>.csv file.
type csvBar struct {
	Timestamp string `csv:"timestamp"`
	Open      string `csv:"open"`
	High      string `csv:"high"`
	Low       string `csv:"low"`
	Close     string `csv:"close"`
	Volume    string `csv:"volume"`
}

func (r csvBar) toModel(symbol string, interval types.Interval) (types.Bar, error) {
	ts, err := parseTime(r.Timestamp)
	if err != nil {
		return types.Bar{}, err
	}
	fields := [5]decimal.Decimal{}
	for i, s := range []string{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return types.Bar{}, fmt.Errorf("%s at %s: %w", symbol, r.Timestamp, err)
		}
		fields[i] = d
	}
	return types.Bar{
		Symbol:    symbol,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		Interval:  interval,
		Timestamp: ts,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// CSV reads <dir>/<SYMBOL>.csv with a header of
// timestamp,open,high,low,close,volume.
type CSV struct {
	dir string
}

func NewCSV(dir string) *CSV {
	return &CSV{dir: dir}
}

func (c *CSV) Bars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(c.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	bars := make([]types.Bar, 0, len(rows))
	for _, row := range rows {
		b, err := row.toModel(symbol, interval)
		if err != nil {
			return nil, err
		}
		if InRange(b.Timestamp, start, end) {
			bars = append(bars, b)
		}
	}
	bars = Normalize(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
	}
	return bars, nil
}

// WriteCSV stores bars in the layout NewCSV reads.
func WriteCSV(dir string, symbol string, bars []types.Bar) error {
	f, err := os.Create(filepath.Join(dir, symbol+".csv"))
	if err != nil {
		return err
	}
	return writeBars(f, bars)
}

// writeBars marshals bars to wc and closes it.
func writeBars(wc io.WriteCloser, bars []types.Bar) error {
	rows := make([]*csvBar, len(bars))
	for i, b := range bars {
		rows[i] = &csvBar{
			Timestamp: b.Timestamp.UTC().Format(time.RFC3339),
			Open:      b.Open.String(),
			High:      b.High.String(),
			Low:       b.Low.String(),
			Close:     b.Close.String(),
			Volume:    b.Volume.String(),
		}
	}
	if err := gocsv.Marshal(&rows, wc); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write bars: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close bars file: %w", err)
	}
	return nil
}
