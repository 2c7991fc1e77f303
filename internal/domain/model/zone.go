package model

import "time"

// 棚卸対象のゾーン（売場・バックヤードなどの物理区画）。
// disabledのゾーンでは新しいカウントを開始できない。
type Zone struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID int64 `gorm:"not null;index;uniqueIndex:idx_zone_shop_code" json:"shop_id"`

	//ゾーンコード（店舗内で一意）
	Code  string `gorm:"type:varchar(50);not null;uniqueIndex:idx_zone_shop_code" json:"code"`
	Label string `gorm:"type:varchar(255);not null" json:"label"`

	//trueなら新規カウント開始を拒否
	Disabled bool `gorm:"not null;default:false" json:"disabled"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
