package handler

import (
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{
			Error:   he.Message,
			Code:    he.Code,
			Details: he.Details,
		})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	raw := c.Get(middleware.CtxUserIDKey)
	id, ok := raw.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func getShopIDFromContext(c echo.Context) (int64, bool) {
	raw := c.Get(middleware.CtxShopIDKey)
	id, ok := raw.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// /runs のカウント操作API
type RunHandler struct {
	uc *usecase.RunUsecase
}

// DI
func NewRunHandler(uc *usecase.RunUsecase) *RunHandler {
	return &RunHandler{uc: uc}
}

func (h *RunHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/runs")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("/start", h.start)
	g.POST("/complete", h.complete)
	g.POST("/restart", h.restart)
	g.POST("/release", h.release)
}

type StartRunRequest struct {
	ZoneID    int64 `json:"zone_id"`
	CountType int   `json:"count_type"`
}

func (h *RunHandler) start(c echo.Context) error {
	ownerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	shopID, ok := getShopIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req StartRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Start(c.Request().Context(), ownerID, usecase.StartRunInput{
		ZoneID:    req.ZoneID,
		ShopID:    shopID,
		CountType: req.CountType,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type CompleteRunRequest struct {
	ZoneID      int64                `json:"zone_id"`
	CountType   int                  `json:"count_type"`
	RunID       *int64               `json:"run_id"`
	CompletedAt *time.Time           `json:"completed_at"`
	Lines       []validator.ScanLine `json:"lines"`
}

func (h *RunHandler) complete(c echo.Context) error {
	ownerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CompleteRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Complete(c.Request().Context(), ownerID, usecase.CompleteRunInput{
		ZoneID:      req.ZoneID,
		CountType:   req.CountType,
		RunID:       req.RunID,
		CompletedAt: req.CompletedAt,
		Lines:       req.Lines,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type RestartRunRequest struct {
	ZoneID      int64      `json:"zone_id"`
	CountType   int        `json:"count_type"`
	RestartedAt *time.Time `json:"restarted_at"`
}

func (h *RunHandler) restart(c echo.Context) error {
	ownerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req RestartRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Restart(c.Request().Context(), ownerID, usecase.RestartRunInput{
		ZoneID:      req.ZoneID,
		CountType:   req.CountType,
		RestartedAt: req.RestartedAt,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type ReleaseRunRequest struct {
	ZoneID int64 `json:"zone_id"`
	RunID  int64 `json:"run_id"`
}

func (h *RunHandler) release(c echo.Context) error {
	ownerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ReleaseRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	err := h.uc.Release(c.Request().Context(), ownerID, usecase.ReleaseRunInput{
		ZoneID: req.ZoneID,
		RunID:  req.RunID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
