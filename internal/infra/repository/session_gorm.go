package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionGormRepository struct {
	db *gorm.DB
}

func NewSessionGormRepository(db *gorm.DB) repo.SessionRepository {
	return &sessionGormRepository{db: db}
}

func (r *sessionGormRepository) FindByID(ctx context.Context, sessionID int64) (*model.InventorySession, error) {
	var s model.InventorySession

	err := r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&s).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &s, nil
}

// 店舗の開いているセッション（completed_atがNULL）を1件取得
func (r *sessionGormRepository) FindOpenByShop(ctx context.Context, shopID int64) (*model.InventorySession, error) {
	var s model.InventorySession

	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND completed_at IS NULL", shopID).
		Order("started_at DESC").
		First(&s).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &s, nil
}

// 開いているセッションを作成。
// idx_session_shop_open（shop_idの部分ユニーク）に衝突したら0件挿入になるので
// ErrOpenSessionExistsを返し、callerに読み直させる。
// エラーではなくDO NOTHINGにするのは、同一トランザクションを中断させないため。
func (r *sessionGormRepository) Create(ctx context.Context, session model.InventorySession) (int64, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&session)

	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, repo.ErrOpenSessionExists
	}
	return session.ID, nil
}

// 店舗のセッションを全削除（リセット用）
func (r *sessionGormRepository) DeleteByShop(ctx context.Context, shopID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Delete(&model.InventorySession{})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
