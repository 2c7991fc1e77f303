package model

import "time"

type Role string

const (
	RoleOperator Role = "OPERATOR"
	RoleAdmin    Role = "ADMIN"
)

// オペレーター（棚卸の実施者）。ランのowner兼ログインユーザー。
type User struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID int64 `gorm:"not null;index" json:"shop_id"`

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`

	//画面・監査に出す表示名
	DisplayName string `gorm:"type:varchar(100);not null" json:"display_name"`

	Role         Role `gorm:"type:varchar(20);not null;default:'OPERATOR'" json:"role"`
	TokenVersion int  `gorm:"not null;default:0" json:"token_version"`
	IsActive     bool `gorm:"not null;default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
