package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

// カウンティングランの保存・取得。
// 「openなランは(zone, countType)ごとに最大1件」の確認と作成は
// 必ず同一トランザクション内（ゾーン行ロック下）で行うこと。
type RunRepository interface {
	// IDで1件取得（状態は問わない）。無ければnil。
	FindByID(ctx context.Context, runID int64) (*model.CountingRun, error)

	// (zone, countType)のopenなランを1件取得。無ければnil。
	FindOpenByZoneAndType(ctx context.Context, zoneID int64, countType int) (*model.CountingRun, error)

	Create(ctx context.Context, run model.CountingRun) (int64, error)

	// openなランだけを完了にする。0件更新ならfalse。
	MarkCompleted(ctx context.Context, runID int64, completedAt time.Time) (bool, error)

	// openなランだけを破棄にする。0件更新ならfalse。
	MarkReleased(ctx context.Context, runID int64, releasedAt time.Time) (bool, error)

	// (zone, countType)のopenなランをowner問わず全部閉じる（リスタート）。
	// 閉じた件数を返す。
	CloseOpenByZoneAndType(ctx context.Context, zoneID int64, countType int, closedAt time.Time) (int64, error)

	// (zone, countType)に完了済みランが1件でもあるか（二次カウントの前提確認）
	HasCompletedByZoneAndType(ctx context.Context, zoneID int64, countType int) (bool, error)

	//セッションの完了済みラン一覧（完了時刻の昇順）
	ListCompletedBySession(ctx context.Context, sessionID int64) ([]model.CountingRun, error)

	//ゾーン群の完了済みラン一覧（リセット前の集計用）
	ListCompletedByZoneIDs(ctx context.Context, zoneIDs []int64) ([]model.CountingRun, error)

	//リセット用
	ListIDsByZoneIDs(ctx context.Context, zoneIDs []int64) ([]int64, error)
	DeleteByZoneIDs(ctx context.Context, zoneIDs []int64) (int64, error)
}
