package model

import "time"

// 商品カタログ。スキャンコードの解決にだけ使う読み取り専用データ。
// 取り込み（CSVインポート等）は別系統。
type Product struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID int64 `gorm:"not null;index;uniqueIndex:idx_product_shop_sku" json:"shop_id"`

	SKU  string `gorm:"type:varchar(50);not null;uniqueIndex:idx_product_shop_sku" json:"sku"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`
	EAN  string `gorm:"type:varchar(20);index" json:"ean"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
