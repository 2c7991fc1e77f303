package usecase

import (
	"context"
	"net/http"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/labstack/gommon/log"
)

// 店舗の棚卸状態の全消去。管理者専用の非常口で、取り消せない。
type ResetUsecase struct {
	tx        repo.TransactionManager
	audit     repo.AuditLogRepository
	clock     Clock
	tolerance float64
}

func NewResetUsecase(tx repo.TransactionManager, audit repo.AuditLogRepository, clock Clock, cfg config.Config) *ResetUsecase {
	return &ResetUsecase{
		tx:        tx,
		audit:     audit,
		clock:     clock,
		tolerance: cfg.CountTolerance,
	}
}

// 確認・監査のために、消した量を返す。
type ResetShopOutput struct {
	ShopID int64 `json:"shop_id"`

	//対象になったゾーン数
	Zones int `json:"zones"`

	Runs  int64 `json:"runs"`
	Lines int64 `json:"lines"`

	//削除時点で未解決だったコンフリクト数（導出値の記録）
	Conflicts int `json:"conflicts"`

	Sessions int64 `json:"sessions"`
}

// 店舗配下の全ゾーンのラン・明細・セッションを1トランザクションで消す。
// 途中で失敗したら何も消えない。
func (u *ResetUsecase) ResetShopInventory(ctx context.Context, adminUserID int64, shopID int64) (ResetShopOutput, error) {
	if adminUserID <= 0 {
		return ResetShopOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if shopID <= 0 {
		return ResetShopOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid shop id")
	}

	var out ResetShopOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		shop, err := r.Shops().FindByID(ctx, shopID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if shop == nil {
			return NewHTTPError(http.StatusNotFound, CodeShopNotFound, "shop not found")
		}

		zones, err := r.Zones().ListByShop(ctx, shopID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		zoneIDs := make([]int64, 0, len(zones))
		for _, z := range zones {
			zoneIDs = append(zoneIDs, z.ID)
		}

		runIDs, err := r.Runs().ListIDsByZoneIDs(ctx, zoneIDs)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//消す前に未解決コンフリクト数を数えて報告に残す
		completed, err := r.Runs().ListCompletedByZoneIDs(ctx, zoneIDs)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		completedIDs := make([]int64, 0, len(completed))
		for _, run := range completed {
			completedIDs = append(completedIDs, run.ID)
		}
		lines, err := r.CountLines().ListByRunIDs(ctx, completedIDs)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		conflicts, _ := resolveCompletedRuns(completed, lines, u.tolerance)

		deletedLines, err := r.CountLines().DeleteByRunIDs(ctx, runIDs)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		deletedRuns, err := r.Runs().DeleteByZoneIDs(ctx, zoneIDs)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		deletedSessions, err := r.Sessions().DeleteByShop(ctx, shopID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		out = ResetShopOutput{
			ShopID:    shopID,
			Zones:     len(zones),
			Runs:      deletedRuns,
			Lines:     deletedLines,
			Conflicts: len(conflicts),
			Sessions:  deletedSessions,
		}
		return nil
	})

	if err != nil {
		return ResetShopOutput{}, err
	}

	entry := model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionResetShop,
		ResourceType: model.AuditResourceShop,
		ResourceID:   shopID,
		AfterJSON:    toJSON(out),
		CreatedAt:    u.clock.Now(),
	}
	if err := u.audit.Create(ctx, entry); err != nil {
		log.Warnf("audit log write failed: action=%s shop=%d err=%v", entry.Action, shopID, err)
	}

	return out, nil
}
