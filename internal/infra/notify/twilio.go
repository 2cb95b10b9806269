package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flowstack/internal/config"
)

// TwilioSender はWhatsAppテキストを1通送る。
// Webhookへの同期返信（TwiML）とは別で、決済完了通知などの非同期送信に使う。
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string

	http *http.Client
}

func NewTwilioSender(cfg config.Config) *TwilioSender {
	return &TwilioSender{
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		from:       cfg.TwilioWhatsAppFrom,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TwilioSender) SendText(ctx context.Context, toPhone string, body string) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", "whatsapp:+"+toPhone)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("twilio send: status %d", res.StatusCode)
	}
	return nil
}
