package model

import "time"

// カウント種別。1=一次 / 2=二次（独立再カウント） / 3=タイブレーク。
const (
	CountTypeFirst    = 1
	CountTypeSecond   = 2
	CountTypeTieBreak = 3
)

func IsValidCountType(t int) bool {
	return t == CountTypeFirst || t == CountTypeSecond || t == CountTypeTieBreak
}

// カウンティングラン＝1ゾーンを1種別で1人が数える1回のパス。
// 不変条件: 同じ(zone_id, count_type)で「open」なランは同時に最大1件。
// open = completed_atもreleased_atもNULL。
type CountingRun struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID int64 `gorm:"not null;index" json:"session_id"`
	ZoneID    int64 `gorm:"not null;index:idx_run_zone_type" json:"zone_id"`
	CountType int   `gorm:"not null;index:idx_run_zone_type" json:"count_type"`

	OwnerID int64 `gorm:"not null;index" json:"owner_id"`

	//旧スキーマ互換のための表示名スナップショット
	OwnerLabel string `gorm:"type:varchar(100);not null" json:"owner_label"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	//Release/Restartで破棄されたランはここに時刻が入る
	ReleasedAt *time.Time `json:"released_at"`
}

// まだ完了も破棄もされていないか
func (r CountingRun) IsOpen() bool {
	return r.CompletedAt == nil && r.ReleasedAt == nil
}

func (r CountingRun) IsCompleted() bool {
	return r.CompletedAt != nil
}
