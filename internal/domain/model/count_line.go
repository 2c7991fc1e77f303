package model

import "time"

// 完了ランに紐づく商品ごとの集約済み数量。
// 生のスキャン明細は保存しない。Complete時の集約結果のみを書く。作成後は不変。
type CountLine struct {
	ID    int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID int64 `gorm:"not null;index" json:"run_id"`

	//カタログで解決できた場合のみ入る
	ProductID *int64 `gorm:"index" json:"product_id"`

	//正規化済みスキャンコード
	ProductCode string `gorm:"type:varchar(20);not null;index" json:"product_code"`
	ProductName string `gorm:"type:varchar(255)" json:"product_name"`
	EAN         string `gorm:"type:varchar(20)" json:"ean"`

	//非負。端数あり（量り売り対応）
	Quantity float64 `gorm:"not null" json:"quantity"`

	//スキャンできず手入力された行が1つでも混ざっていればtrue
	Manual bool `gorm:"not null;default:false" json:"manual"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
