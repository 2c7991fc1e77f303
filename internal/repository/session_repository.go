package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

// 同じ店舗に開いているセッションが既にある（部分ユニークインデックス衝突）
var ErrOpenSessionExists = errors.New("open session exists")

type SessionRepository interface {
	FindByID(ctx context.Context, sessionID int64) (*model.InventorySession, error)

	// 店舗の開いているセッションを1件取得。無ければnil。
	FindOpenByShop(ctx context.Context, shopID int64) (*model.InventorySession, error)

	// 開いているセッションを作成。別のcallerが先に作っていた場合は
	// ErrOpenSessionExistsを返す。caller側で開いているセッションを読み直すこと。
	Create(ctx context.Context, session model.InventorySession) (int64, error)

	//店舗のセッションを全削除（リセット用）。削除件数を返す。
	DeleteByShop(ctx context.Context, shopID int64) (int64, error)
}
