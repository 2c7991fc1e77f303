package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type shopGormRepository struct {
	db *gorm.DB
}

func NewShopGormRepository(db *gorm.DB) repo.ShopRepository {
	return &shopGormRepository{db: db}
}

// IDで店舗を1件取得
func (r *shopGormRepository) FindByID(ctx context.Context, shopID int64) (*model.Shop, error) {
	var s model.Shop

	err := r.db.WithContext(ctx).
		Where("id = ?", shopID).
		First(&s).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &s, nil
}
