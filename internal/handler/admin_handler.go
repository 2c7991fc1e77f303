package handler

import (
	"net/http"
	"strconv"
	"time"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin の管理者API
type AdminHandler struct {
	resetUC *usecase.ResetUsecase
	auditUC *usecase.AuditUsecase
	authUC  *usecase.AuthUsecase
}

func NewAdminHandler(resetUC *usecase.ResetUsecase, auditUC *usecase.AuditUsecase, authUC *usecase.AuthUsecase) *AdminHandler {
	return &AdminHandler{
		resetUC: resetUC,
		auditUC: auditUC,
		authUC:  authUC,
	}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/admin")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))
	g.Use(middleware.AdminRoleGuard())

	g.POST("/shops/:id/inventory/reset", h.resetShopInventory)
	g.GET("/audit-logs", h.listAuditLogs)
	g.POST("/users/:id/force-logout", h.forceLogout)
}

func (h *AdminHandler) resetShopInventory(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.resetUC.ResetShopInventory(c.Request().Context(), adminID, shopID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) listAuditLogs(c echo.Context) error {
	var in usecase.AuditLogListInput

	if v := c.QueryParam("actor_user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid actor_user_id"})
		}
		in.ActorUserID = &id
	}
	in.Action = c.QueryParam("action")
	in.ResourceType = c.QueryParam("resource_type")
	if v := c.QueryParam("resource_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid resource_id"})
		}
		in.ResourceID = &id
	}
	if v := c.QueryParam("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid created_from"})
		}
		in.CreatedFrom = &t
	}
	if v := c.QueryParam("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid created_to"})
		}
		in.CreatedTo = &t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		in.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		in.Offset = n
	}

	logs, err := h.auditUC.List(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, logs)
}

func (h *AdminHandler) forceLogout(c echo.Context) error {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.authUC.ForceLogout(c.Request().Context(), targetID); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
