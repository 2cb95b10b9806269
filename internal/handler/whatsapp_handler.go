package handler

import (
	"encoding/xml"
	"log"
	"net/http"

	"flowstack/internal/usecase"

	"github.com/labstack/echo/v4"
)

// WhatsAppHandler はTwilioからの受信Webhook。
// 返信は同じリクエストのTwiMLで1通だけ返す。
type WhatsAppHandler struct {
	conv *usecase.ConversationUsecase
}

func NewWhatsAppHandler(conv *usecase.ConversationUsecase) *WhatsAppHandler {
	return &WhatsAppHandler{conv: conv}
}

func (h *WhatsAppHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook/whatsapp", h.receive)
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func (h *WhatsAppHandler) receive(c echo.Context) error {
	in := usecase.InboundMessage{
		From: c.FormValue("From"),
		To:   c.FormValue("To"),
		Body: c.FormValue("Body"),
	}

	reply, err := h.conv.HandleMessage(c.Request().Context(), in)
	if err != nil {
		// 顧客にはreplyの文面（お詫び）を返し、中身はログへ
		log.Printf("message handling failed (from=%s): %v", in.From, err)
	}

	return c.XML(http.StatusOK, twimlResponse{Message: reply})
}
