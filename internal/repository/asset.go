package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"simtrader/internal/data"
	"simtrader/types"
)

// GetAssetByTicker retrieves a types.Asset by its ticker.
func (db *Database) GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error) {
	asset, err := db.assets.GetAssetByTicker(ctx, ticker)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ticker %s %w: %w", ticker, ErrAssetNotFound, data.ErrUnknownSymbol)
		}
		return nil, err
	}
	assetType, err := types.ParseAssetType(asset.Type)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", ticker, err)
	}
	return &types.Asset{
		ID:         int64(asset.ID),
		Symbol:     asset.Ticker,
		Name:       asset.Name,
		Type:       assetType,
		CreatedAt:  asset.CreatedAt,
		ModifiedAt: asset.ModifiedAt,
	}, nil
}
