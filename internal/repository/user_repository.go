package repository

import (
	"context"

	"app/internal/domain/model"
)

// オペレーターの保存・取得を約束
type UserRepository interface {
	//新規オペレーター作成
	Create(ctx context.Context, user *model.User) error
	// IDからオペレーターを1件取得する。無ければnil。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからオペレーターを1件取得する。無ければnil。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// 最終ログイン更新など
	Update(ctx context.Context, user *model.User) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error
}
