package server

import (
	"app/internal/config"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
)

func Start(addr string, cfg config.Config, userRepo repository.UserRepository, h Handlers) error {
	e := echo.New()
	e.HideBanner = true

	RegisterRoutes(e, cfg, userRepo, h)

	return e.Start(addr)
}
