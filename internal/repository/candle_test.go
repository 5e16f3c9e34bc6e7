package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"simtrader/internal/data"
	"simtrader/types"
)

var testInterval = types.OneMinute
var startTime = time.UnixMilli(0)
var endTime = startTime.Add(time.Minute * 5)

type mockCandlesRepository struct {
	sqlError error
	empty    bool
	last     *aggregatesParams
}

func TestDatabase_GetAggregates(t *testing.T) {
	type args struct {
		assetId  int64
		interval types.Interval
		start    time.Time
		end      time.Time
	}
	tests := []struct {
		name    string
		args    args
		want    []types.Bar
		empty   bool
		sqlErr  error
		wantErr error
	}{
		{"should throw ErrNoCandles", args{999, testInterval, startTime, endTime}, nil, true, nil, ErrNoCandles},
		{"should throw ErrNoCandles on no rows", args{999, testInterval, startTime, endTime}, nil, false, pgx.ErrNoRows, ErrNoCandles},
		{"should match data.ErrNoBars", args{999, testInterval, startTime, endTime}, nil, true, nil, data.ErrNoBars},
		{"should throw ErrIntervalNotSupported", args{999, types.Month, startTime, endTime}, nil, false, nil, ErrIntervalNotSupported},
		{"should return candles", args{999, testInterval, startTime, endTime}, mockBars("AAPL", startTime, endTime), false, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{
				candles: &mockCandlesRepository{
					sqlError: tt.sqlErr,
					empty:    tt.empty,
				},
			}
			asset := &types.Asset{ID: tt.args.assetId, Symbol: "AAPL"}
			got, err := db.GetAggregates(context.Background(), asset, tt.args.interval, tt.args.start, tt.args.end)

			if err != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetAggregates() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("GetAggregates() len = %d, want %d", len(got), len(tt.want))
			}
			for i := 0; i < len(tt.want); i++ {
				if got[i].Symbol != tt.want[i].Symbol {
					t.Errorf("GetAggregates() %s symbol got = %v, want %v", got[i].Timestamp, got[i].Symbol, tt.want[i].Symbol)
					break
				}
				if got[i].Interval != tt.args.interval {
					t.Errorf("GetAggregates() %s interval got = %v, want %v", got[i].Timestamp, got[i].Interval, tt.want[i].Interval)
					break
				}
				if !got[i].High.Equal(tt.want[i].High) {
					t.Errorf("GetAggregates() %s high got = %v, want %v", got[i].Timestamp, got[i].High, tt.want[i].High)
					break
				}
			}
		})
	}
}

func TestDatabase_GetAggregatesOpenRange(t *testing.T) {
	repo := &mockCandlesRepository{}
	db := &Database{candles: repo}

	_, err := db.GetAggregates(context.Background(), &types.Asset{ID: 1, Symbol: "AAPL"}, types.Day, time.Time{}, endTime)
	if err != nil && !errors.Is(err, ErrNoCandles) {
		t.Fatalf("GetAggregates() error = %v", err)
	}
	if repo.last == nil {
		t.Fatal("GetAggregates() did not query")
	}
	if repo.last.Starttime != nil {
		t.Errorf("GetAggregates() start = %v, want open", repo.last.Starttime)
	}
	if repo.last.Endtime == nil || !repo.last.Endtime.Equal(endTime) {
		t.Errorf("GetAggregates() end = %v, want %v", repo.last.Endtime, endTime)
	}
	if repo.last.TimeBucket != "1 day" {
		t.Errorf("GetAggregates() bucket = %q", repo.last.TimeBucket)
	}
}

func TestDatabase_BarsIsASource(t *testing.T) {
	var src data.Source = &Database{
		assets:  mockAssetsRepository{},
		candles: &mockCandlesRepository{},
	}
	bars, err := src.Bars(context.Background(), "AAPL", testInterval, startTime, endTime)
	if err != nil {
		t.Fatalf("Bars() error = %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("Bars() len = %d, want 5", len(bars))
	}

	_, err = (&Database{assets: mockAssetsRepository{sqlError: pgx.ErrNoRows}}).Bars(context.Background(), "NOPE", testInterval, startTime, endTime)
	if !errors.Is(err, data.ErrUnknownSymbol) {
		t.Errorf("Bars() error = %v, want %v", err, data.ErrUnknownSymbol)
	}
}

func (m *mockCandlesRepository) GetAggregates(_ context.Context, arg aggregatesParams) ([]aggregateRow, error) {
	m.last = &arg
	if m.sqlError != nil {
		return []aggregateRow{}, m.sqlError
	}
	if m.empty || arg.Starttime == nil || arg.Endtime == nil {
		return nil, nil
	}
	var candles []aggregateRow
	i := *arg.Starttime
	for i.Before(*arg.Endtime) {
		candles = append(candles, aggregateRow{
			Bucket:  i,
			AssetID: arg.AssetID,
			Open:    decimal.NewFromInt(i.UnixMilli()),
			High:    decimal.NewFromInt(i.UnixMilli()),
			Low:     decimal.NewFromInt(i.UnixMilli()),
			Close:   decimal.NewFromInt(i.UnixMilli()),
			Volume:  decimal.NewFromInt(i.UnixMilli()),
		})
		i = i.Add(types.IntervalToTime[testInterval])
	}
	return candles, nil
}

func mockBars(ticker string, start, end time.Time) []types.Bar {
	var bars []types.Bar
	i := start
	for i.Before(end) {
		bars = append(bars, types.Bar{
			Symbol:    ticker,
			Timestamp: i,
			Interval:  testInterval,
			Open:      decimal.NewFromInt(i.UnixMilli()),
			High:      decimal.NewFromInt(i.UnixMilli()),
			Low:       decimal.NewFromInt(i.UnixMilli()),
			Close:     decimal.NewFromInt(i.UnixMilli()),
			Volume:    decimal.NewFromInt(i.UnixMilli()),
		})
		i = i.Add(types.IntervalToTime[testInterval])
	}
	return bars
}
