package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// カウント対象ゾーンの参照。
type ZoneUsecase struct {
	zones repo.ZoneRepository
}

func NewZoneUsecase(zones repo.ZoneRepository) *ZoneUsecase {
	return &ZoneUsecase{zones: zones}
}

// 店舗のゾーン一覧
func (u *ZoneUsecase) ListShopZones(ctx context.Context, shopID int64) ([]model.Zone, error) {
	if shopID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid shop id")
	}

	zones, err := u.zones.ListByShop(ctx, shopID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if zones == nil {
		zones = []model.Zone{}
	}
	return zones, nil
}
