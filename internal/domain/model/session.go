package model

import "time"

// 棚卸セッション（1店舗の棚卸キャンペーン）。
// 店舗に開いているセッションが無い状態で最初のランが開始されたときに暗黙に作られる。
// 完了時刻を記録する以外は更新しない。
// 不変条件: 開いているセッションは店舗ごとに最大1件。
// 部分ユニークインデックスで担保する（ゾーンロックは店舗をまたがないため）。
type InventorySession struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID int64 `gorm:"not null;index;uniqueIndex:idx_session_shop_open,where:completed_at IS NULL" json:"shop_id"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// まだ完了していないか
func (s InventorySession) IsOpen() bool {
	return s.CompletedAt == nil
}
