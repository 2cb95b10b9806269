package handler

import (
	"fmt"
	"log"
	"net/http"

	"flowstack/internal/usecase"

	"github.com/labstack/echo/v4"
)

// MpesaHandler はDarajaのSTK pushコールバック受け口。
// チャット側とは独立の流入経路で、何度同じものが来ても安全に応答する。
type MpesaHandler struct {
	payments *usecase.PaymentUsecase
}

func NewMpesaHandler(payments *usecase.PaymentUsecase) *MpesaHandler {
	return &MpesaHandler{payments: payments}
}

func (h *MpesaHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook/mpesa", h.callback)
}

type callbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

type mpesaCallbackRequest struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []callbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type mpesaCallbackResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func (h *MpesaHandler) callback(c echo.Context) error {
	var req mpesaCallbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, mpesaCallbackResponse{ResultCode: 1, ResultDesc: "invalid body"})
	}

	cb := toPaymentCallback(req)
	if cb.AccountReference == "" {
		return c.JSON(http.StatusOK, mpesaCallbackResponse{ResultCode: 1, ResultDesc: "missing account reference"})
	}

	res, err := h.payments.HandleCallback(c.Request().Context(), cb)
	if err != nil {
		log.Printf("payment callback failed (ref=%s): %v", cb.AccountReference, err)
	}

	code := 0
	if !res.Accepted {
		code = 1
	}
	return c.JSON(http.StatusOK, mpesaCallbackResponse{ResultCode: code, ResultDesc: res.Description})
}

func toPaymentCallback(req mpesaCallbackRequest) usecase.PaymentCallback {
	cb := usecase.PaymentCallback{
		Success: req.Body.StkCallback.ResultCode == 0,
	}

	items := req.Body.StkCallback.CallbackMetadata.Item
	for _, it := range items {
		switch it.Name {
		case "AccountReference":
			cb.AccountReference = asString(it.Value)
		case "Amount":
			cb.Amount = asInt64(it.Value)
		case "MpesaReceiptNumber":
			cb.Receipt = asString(it.Value)
		case "PhoneNumber":
			cb.PayerPhone = asString(it.Value)
		}
	}

	// 名前つきで来ない配送形式もある。その場合は先頭の値を参照として扱う。
	if cb.AccountReference == "" && len(items) > 0 {
		cb.AccountReference = asString(items[0].Value)
	}

	return cb
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}

func asInt64(v interface{}) int64 {
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return 0
}
