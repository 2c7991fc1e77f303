package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type zoneGormRepository struct {
	db *gorm.DB
}

func NewZoneGormRepository(db *gorm.DB) repo.ZoneRepository {
	return &zoneGormRepository{db: db}
}

// IDでゾーンを1件取得
func (r *zoneGormRepository) FindByID(ctx context.Context, zoneID int64) (*model.Zone, error) {
	var z model.Zone

	err := r.db.WithContext(ctx).
		Where("id = ?", zoneID).
		First(&z).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &z, nil
}

// SELECT ... FOR UPDATE でゾーン行をロックして取得。
// 同じゾーンを狙うStartはここで直列化され、別ゾーンは並列のまま。
func (r *zoneGormRepository) FindByIDForUpdate(ctx context.Context, zoneID int64) (*model.Zone, error) {
	var z model.Zone

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", zoneID).
		First(&z).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &z, nil
}

// 店舗のゾーン一覧（コード順）
func (r *zoneGormRepository) ListByShop(ctx context.Context, shopID int64) ([]model.Zone, error) {
	var zones []model.Zone

	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("code ASC").
		Find(&zones).Error

	if err != nil {
		return nil, err
	}
	return zones, nil
}
