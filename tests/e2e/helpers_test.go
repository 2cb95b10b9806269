package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

// E2Eは起動済みのサーバーとシード済みのDB（加盟店mama-njeri、Burger/Chips/Soda入りのメニュー）を前提にする。
// E2E_BASE_URLが無ければスキップ。

type TestClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()

	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("E2E_BASE_URL not set")
	}

	return &TestClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *TestClient) doForm(
	ctx context.Context,
	t *testing.T,
	path string,
	form url.Values,
) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("http.NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do failed: %v", err)
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	return resp, data
}

func (c *TestClient) doJSON(
	ctx context.Context,
	t *testing.T,
	method string,
	path string,
	bearer string,
	bodyBytes []byte,
) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if bodyBytes != nil {
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("http.NewRequest failed: %v", err)
	}

	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do failed: %v", err)
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	return resp, data
}

func requireStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status=%d want=%d body=%s", resp.StatusCode, want, string(body))
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// sendWhatsApp はTwilioの受信webhookを模してフォームを投げ、TwiMLの返信本文を返す。
func sendWhatsApp(t *testing.T, c *TestClient, ctx context.Context, from string, body string) string {
	t.Helper()

	form := url.Values{}
	form.Set("From", from)
	form.Set("To", merchantChannel())
	form.Set("Body", body)

	resp, data := c.doForm(ctx, t, "/webhook/whatsapp", form)
	requireStatus(t, resp, http.StatusOK, data)

	var tw twimlResponse
	if err := xml.Unmarshal(data, &tw); err != nil {
		t.Fatalf("xml.Unmarshal(twiml) failed: %v body=%s", err, string(data))
	}
	if strings.TrimSpace(tw.Message) == "" {
		t.Fatalf("empty twiml message: body=%s", string(data))
	}
	return tw.Message
}

func merchantChannel() string {
	if v := os.Getenv("E2E_MERCHANT_NUMBER"); v != "" {
		return v
	}
	return "whatsapp:+254700000001"
}

type MerchantLoginRequest struct {
	Code   string `json:"code"`
	Secret string `json:"secret"`
}

type MerchantLoginResponse struct {
	MerchantID  int64  `json:"merchant_id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func mustDecodeLogin(t *testing.T, body []byte) MerchantLoginResponse {
	t.Helper()
	var v MerchantLoginResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(MerchantLoginResponse) failed: %v body=%s", err, string(body))
	}
	return v
}

func merchantLogin(t *testing.T, c *TestClient, ctx context.Context) string {
	t.Helper()

	code := os.Getenv("E2E_MERCHANT_CODE")
	if code == "" {
		code = "mama-njeri"
	}
	secret := os.Getenv("E2E_MERCHANT_SECRET")
	if secret == "" {
		secret = "s3cret"
	}

	b, err := json.Marshal(MerchantLoginRequest{Code: code, Secret: secret})
	if err != nil {
		t.Fatalf("json.Marshal(MerchantLoginRequest) failed: %v", err)
	}

	resp, body := c.doJSON(ctx, t, http.MethodPost, "/merchant/login", "", b)
	requireStatus(t, resp, http.StatusOK, body)

	login := mustDecodeLogin(t, body)
	if strings.TrimSpace(login.AccessToken) == "" {
		t.Fatalf("access token is empty: body=%s", string(body))
	}
	return login.AccessToken
}
