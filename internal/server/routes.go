package server

import (
	"net/http"

	"app/internal/config"
	"app/internal/handler"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Run      *handler.RunHandler
	Conflict *handler.ConflictHandler
	Zone     *handler.ZoneHandler
	Admin    *handler.AdminHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	//死活監視用
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Run.RegisterRoutes(e, cfg, userRepo)
	h.Conflict.RegisterRoutes(e, cfg, userRepo)
	h.Zone.RegisterRoutes(e, cfg, userRepo)
	h.Admin.RegisterRoutes(e, cfg, userRepo)
}
