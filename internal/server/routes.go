package server

import (
	"net/http"

	"flowstack/internal/config"
	"flowstack/internal/handler"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(
	e *echo.Echo,
	cfg config.Config,
	whatsappH *handler.WhatsAppHandler,
	mpesaH *handler.MpesaHandler,
	merchantH *handler.MerchantHandler,
) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "FlowStack backend running"})
	})

	whatsappH.RegisterRoutes(e)
	mpesaH.RegisterRoutes(e)
	merchantH.RegisterRoutes(e, cfg)
}
