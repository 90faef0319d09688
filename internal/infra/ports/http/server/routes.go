package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/RoomChat/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomChat/internal/infra/ports/http/middleware"
)

func New(
	roomHandler *handlers.RoomHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.PrometheusMiddleware())
	e.Use(middleware.SlogLogger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/ws", wsHandler.Handle)

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/rooms/:id/availability", roomHandler.Availability)
			v1.GET("/rooms/:id/capacity", roomHandler.Capacity)
			v1.GET("/rooms/:id/audit", roomHandler.Audit)
		}
	}

	return e
}
