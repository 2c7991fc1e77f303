package repository

import (
	"context"

	"app/internal/domain/model"
)

// 店舗の読み取り。存在確認にだけ使う。
type ShopRepository interface {
	// IDで1件取得。無ければnil。
	FindByID(ctx context.Context, shopID int64) (*model.Shop, error)
}
