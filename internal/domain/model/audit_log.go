package model

import "time"

// ラン開始、完了、リスタートなど。
type AuditAction string

const (
	//ランを開始した操作。
	AuditActionStartRun AuditAction = "START_RUN"
	//ランを完了した操作。
	AuditActionCompleteRun AuditAction = "COMPLETE_RUN"
	//ゾーンのランをリスタートした操作。
	AuditActionRestartRun AuditAction = "RESTART_RUN"
	//ランを破棄した操作。
	AuditActionReleaseRun AuditAction = "RELEASE_RUN"
	//店舗の棚卸状態を全消去した操作。
	AuditActionResetShop AuditAction = "RESET_SHOP"
)

// 何に対する操作か
type AuditResourceType string

const (
	//ランに対する操作。
	AuditResourceRun AuditResourceType = "run"

	//ゾーンに対する操作。
	AuditResourceZone AuditResourceType = "zone"

	//店舗に対する操作。
	AuditResourceShop AuditResourceType = "shop"
)

// 監査ログ（棚卸操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したオペレーターのID。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	//Actionは操作の種類（START_RUN / COMPLETE_RUN など）。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（run / zone / shop）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID。
	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
