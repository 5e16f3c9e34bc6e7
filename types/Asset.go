package types

import (
	"fmt"
	"time"
)

type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeEtf    AssetType = "ETF"
	AssetTypeForex  AssetType = "FOREX"
)

// ParseAssetType accepts the stored asset type names.
func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(s); t {
	case AssetTypeStock, AssetTypeCrypto, AssetTypeEtf, AssetTypeForex:
		return t, nil
	}
	return "", fmt.Errorf("unknown asset type %q", s)
}

// Asset is the stored identity behind a feed symbol.
type Asset struct {
	ID         int64
	Symbol     string
	Name       string
	Type       AssetType
	CreatedAt  time.Time
	ModifiedAt time.Time
}
