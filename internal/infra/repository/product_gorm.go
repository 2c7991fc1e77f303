package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type productGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) repo.ProductRepository {
	return &productGormRepository{db: db}
}

// SKUで商品を1件取得
func (r *productGormRepository) FindByShopAndSKU(ctx context.Context, shopID int64, sku string) (*model.Product, error) {
	var p model.Product

	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND sku = ?", shopID, sku).
		First(&p).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &p, nil
}

// EANで商品を1件取得
func (r *productGormRepository) FindByShopAndEAN(ctx context.Context, shopID int64, ean string) (*model.Product, error) {
	var p model.Product

	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND ean = ?", shopID, ean).
		First(&p).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &p, nil
}
