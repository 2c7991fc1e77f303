package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type countLineGormRepository struct {
	db *gorm.DB
}

func NewCountLineGormRepository(db *gorm.DB) repo.CountLineRepository {
	return &countLineGormRepository{db: db}
}

// 集約済み明細の一括作成（Complete時のみ）
func (r *countLineGormRepository) CreateBulk(ctx context.Context, lines []model.CountLine) error {
	if len(lines) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&lines).Error; err != nil {
		return err
	}
	return nil
}

func (r *countLineGormRepository) ListByRunIDs(ctx context.Context, runIDs []int64) ([]model.CountLine, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}

	var lines []model.CountLine
	err := r.db.WithContext(ctx).
		Where("run_id IN ?", runIDs).
		Order("product_code ASC").
		Find(&lines).Error

	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *countLineGormRepository) DeleteByRunIDs(ctx context.Context, runIDs []int64) (int64, error) {
	if len(runIDs) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Where("run_id IN ?", runIDs).
		Delete(&model.CountLine{})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
