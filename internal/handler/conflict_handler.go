package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /sessions のコンフリクト参照API
type ConflictHandler struct {
	uc *usecase.ConflictUsecase
}

func NewConflictHandler(uc *usecase.ConflictUsecase) *ConflictHandler {
	return &ConflictHandler{uc: uc}
}

func (h *ConflictHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/sessions")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("/:id/conflicts", h.conflicts)
}

func (h *ConflictHandler) conflicts(c echo.Context) error {
	shopID, ok := getShopIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetSessionConflicts(c.Request().Context(), shopID, sessionID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
