package repository

import (
	"context"

	"app/internal/domain/model"
)

// 集約済みカウント明細。Complete時の一括作成以外に書き込みは無い。
type CountLineRepository interface {
	CreateBulk(ctx context.Context, lines []model.CountLine) error

	ListByRunIDs(ctx context.Context, runIDs []int64) ([]model.CountLine, error)

	//リセット用。削除件数を返す。
	DeleteByRunIDs(ctx context.Context, runIDs []int64) (int64, error)
}
