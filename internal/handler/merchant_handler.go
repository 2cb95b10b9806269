package handler

import (
	"net/http"
	"strconv"

	"flowstack/internal/config"
	"flowstack/internal/middleware"
	repo "flowstack/internal/repository"
	"flowstack/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// /merchant の加盟店向けAPI
type MerchantHandler struct {
	uc *usecase.MerchantUsecase
}

func NewMerchantHandler(uc *usecase.MerchantUsecase) *MerchantHandler {
	return &MerchantHandler{uc: uc}
}

type MerchantLoginRequest struct {
	Code   string `json:"code"`
	Secret string `json:"secret"`
}

func (h *MerchantHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/merchant/login", h.login)

	g := e.Group("/merchant")
	g.Use(middleware.MerchantJWT(cfg))
	g.GET("/orders", h.listOrders)
}

func (h *MerchantHandler) login(c echo.Context) error {
	var req MerchantLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Login(c.Request().Context(), usecase.MerchantLoginInput{
		Code:   req.Code,
		Secret: req.Secret,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MerchantHandler) listOrders(c echo.Context) error {
	merchantID, ok := c.Get(middleware.CtxMerchantIDKey).(int64)
	if !ok || merchantID <= 0 {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	f := repo.MerchantOrderListFilter{
		Status: c.QueryParam("status"),
	}
	if v := c.QueryParam("page"); v != "" {
		f.Page, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}

	out, err := h.uc.ListOrders(c.Request().Context(), merchantID, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
