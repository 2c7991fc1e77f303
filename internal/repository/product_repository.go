package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品カタログの参照。スキャンコードの解決にだけ使う。
type ProductRepository interface {
	// SKUで1件取得。無ければnil。
	FindByShopAndSKU(ctx context.Context, shopID int64, sku string) (*model.Product, error)

	// EANで1件取得。無ければnil。
	FindByShopAndEAN(ctx context.Context, shopID int64, ean string) (*model.Product, error)
}
