package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type runGormRepository struct {
	db *gorm.DB
}

func NewRunGormRepository(db *gorm.DB) repo.RunRepository {
	return &runGormRepository{db: db}
}

func (r *runGormRepository) FindByID(ctx context.Context, runID int64) (*model.CountingRun, error) {
	var run model.CountingRun

	err := r.db.WithContext(ctx).
		Where("id = ?", runID).
		First(&run).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &run, nil
}

// (zone, countType)のopenなランを1件取得。
// ゾーン行ロック下で呼ぶ限り最大1件しか存在しない。
func (r *runGormRepository) FindOpenByZoneAndType(ctx context.Context, zoneID int64, countType int) (*model.CountingRun, error) {
	var run model.CountingRun

	err := r.db.WithContext(ctx).
		Where("zone_id = ? AND count_type = ? AND completed_at IS NULL AND released_at IS NULL", zoneID, countType).
		Order("started_at ASC").
		First(&run).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &run, nil
}

func (r *runGormRepository) Create(ctx context.Context, run model.CountingRun) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, err
	}
	return run.ID, nil
}

// openなランだけを完了にする（条件付きUPDATE）。
// 0件更新なら「すでに完了/破棄済み or 存在しない」。
func (r *runGormRepository) MarkCompleted(ctx context.Context, runID int64, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CountingRun{}).
		Where("id = ? AND completed_at IS NULL AND released_at IS NULL", runID).
		Update("completed_at", &completedAt)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// openなランだけを破棄にする
func (r *runGormRepository) MarkReleased(ctx context.Context, runID int64, releasedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CountingRun{}).
		Where("id = ? AND completed_at IS NULL AND released_at IS NULL", runID).
		Update("released_at", &releasedAt)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// リスタート: (zone, countType)のopenなランをowner問わず全部閉じる
func (r *runGormRepository) CloseOpenByZoneAndType(ctx context.Context, zoneID int64, countType int, closedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CountingRun{}).
		Where("zone_id = ? AND count_type = ? AND completed_at IS NULL AND released_at IS NULL", zoneID, countType).
		Update("released_at", &closedAt)

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 完了済みランが1件でもあるか
func (r *runGormRepository) HasCompletedByZoneAndType(ctx context.Context, zoneID int64, countType int) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.CountingRun{}).
		Where("zone_id = ? AND count_type = ? AND completed_at IS NOT NULL", zoneID, countType).
		Count(&count).Error

	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// セッションの完了済みラン一覧（完了時刻の昇順）
func (r *runGormRepository) ListCompletedBySession(ctx context.Context, sessionID int64) ([]model.CountingRun, error) {
	var runs []model.CountingRun

	err := r.db.WithContext(ctx).
		Where("session_id = ? AND completed_at IS NOT NULL", sessionID).
		Order("completed_at ASC").
		Find(&runs).Error

	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *runGormRepository) ListCompletedByZoneIDs(ctx context.Context, zoneIDs []int64) ([]model.CountingRun, error) {
	if len(zoneIDs) == 0 {
		return nil, nil
	}

	var runs []model.CountingRun
	err := r.db.WithContext(ctx).
		Where("zone_id IN ? AND completed_at IS NOT NULL", zoneIDs).
		Order("completed_at ASC").
		Find(&runs).Error

	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *runGormRepository) ListIDsByZoneIDs(ctx context.Context, zoneIDs []int64) ([]int64, error) {
	if len(zoneIDs) == 0 {
		return nil, nil
	}

	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.CountingRun{}).
		Where("zone_id IN ?", zoneIDs).
		Pluck("id", &ids).Error

	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *runGormRepository) DeleteByZoneIDs(ctx context.Context, zoneIDs []int64) (int64, error) {
	if len(zoneIDs) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Where("zone_id IN ?", zoneIDs).
		Delete(&model.CountingRun{})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
