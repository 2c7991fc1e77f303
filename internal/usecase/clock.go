package usecase

import "time"

// 現在時刻の約束。テストで固定時刻を注入する。
type Clock interface {
	Now() time.Time
}

// ID生成の約束（リフレッシュトークンなど）
type IDGenerator interface {
	NewID() string
}
