package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier は加盟店の設定URLへイベントをPOSTする。
// 失敗してもリトライしない（呼び出し側がログを残すだけ）。
type WebhookNotifier struct {
	http *http.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, url string, event string, payload map[string]interface{}) error {
	if url == "" {
		return nil
	}

	body := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("merchant notify: status %d", res.StatusCode)
	}
	return nil
}
