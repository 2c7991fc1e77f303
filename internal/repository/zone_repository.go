package repository

import (
	"context"

	"app/internal/domain/model"
)

// ゾーンの読み取り。棚卸コアからは読み取り専用。
type ZoneRepository interface {
	// IDで1件取得。無ければnil。
	FindByID(ctx context.Context, zoneID int64) (*model.Zone, error)

	// IDで1件取得し、トランザクション中は行ロックを保持する。
	// (zone, countType)単位の排他はこのロックで直列化する。
	FindByIDForUpdate(ctx context.Context, zoneID int64) (*model.Zone, error)

	//店舗のゾーン一覧
	ListByShop(ctx context.Context, shopID int64) ([]model.Zone, error)
}
