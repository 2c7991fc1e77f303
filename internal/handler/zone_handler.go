package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /zones のゾーン参照API（カウント画面用）
type ZoneHandler struct {
	uc *usecase.ZoneUsecase
}

func NewZoneHandler(uc *usecase.ZoneUsecase) *ZoneHandler {
	return &ZoneHandler{uc: uc}
}

func (h *ZoneHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/zones")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.list)
}

func (h *ZoneHandler) list(c echo.Context) error {
	shopID, ok := getShopIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	zones, err := h.uc.ListShopZones(c.Request().Context(), shopID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, zones)
}
