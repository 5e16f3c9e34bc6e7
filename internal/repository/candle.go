package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"simtrader/internal/data"
	"simtrader/types"
)

var bucketToInterval = map[types.Interval]string{
	types.OneMinute:     "1 minute",
	types.FiveMinutes:   "5 minutes",
	types.ThirtyMinutes: "30 minutes",
	types.Hour:          "1 hour",
	types.FourHours:     "4 hours",
	types.Day:           "1 day",
	types.Week:          "1 week",
}

// GetAggregates buckets the stored candles of asset into interval bars.
func (db *Database) GetAggregates(ctx context.Context, asset *types.Asset, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	bucket, ok := bucketToInterval[interval]
	if !ok {
		return nil, fmt.Errorf("%s: %w", interval, ErrIntervalNotSupported)
	}
	args := aggregatesParams{
		TimeBucket: bucket,
		AssetID:    int32(asset.ID),
	}
	if !start.IsZero() {
		args.Starttime = &start
	}
	if !end.IsZero() {
		args.Endtime = &end
	}
	candles, err := db.candles.GetAggregates(ctx, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %w: %w", asset.Symbol, ErrNoCandles, data.ErrNoBars)
		}
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s %w: %w", asset.Symbol, ErrNoCandles, data.ErrNoBars)
	}
	return convertCandles(candles, interval, asset.Symbol), nil
}

// Bars makes Database a data.Source.
func (db *Database) Bars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	asset, err := db.GetAssetByTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	bars, err := db.GetAggregates(ctx, asset, interval, start, end)
	if err != nil {
		return nil, err
	}
	if err := data.Validate(symbol, bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func convertCandles(candleDAOs []aggregateRow, interval types.Interval, ticker string) []types.Bar {
	bars := make([]types.Bar, 0, len(candleDAOs))
	for _, dao := range candleDAOs {
		bars = append(bars, types.Bar{
			Symbol:    ticker,
			Open:      dao.Open,
			Close:     dao.Close,
			High:      dao.High,
			Low:       dao.Low,
			Volume:    dao.Volume,
			Interval:  interval,
			Timestamp: dao.Bucket,
		})
	}
	return bars
}
