package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flowstack/internal/config"
)

// Client はDaraja（M-Pesa）APIの薄いクライアント。
// STK pushはAccountReferenceに注文IDをそのまま入れる。
type Client struct {
	baseURL        string
	shortcode      string
	passkey        string
	consumerKey    string
	consumerSecret string
	callbackURL    string

	http *http.Client
	now  func() time.Time
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:        cfg.MpesaBaseURL,
		shortcode:      cfg.MpesaShortcode,
		passkey:        cfg.MpesaPasskey,
		consumerKey:    cfg.MpesaConsumerKey,
		consumerSecret: cfg.MpesaConsumerSecret,
		callbackURL:    cfg.MpesaCallbackURL,

		// 決済開始は会話の応答を塞がないよう必ずタイムアウトで切る
		http: &http.Client{Timeout: 10 * time.Second},
		now:  time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("mpesa token: status %d", res.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("mpesa token: empty access_token")
	}
	return tr.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

// RequestPayment は顧客の端末にSTK pushを送る。
// 受理されなかった場合はerrorを返すが、注文のロールバックは呼び出し側もしない。
func (c *Client) RequestPayment(ctx context.Context, payerPhone string, amount int64, orderID string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	ts := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortcode + c.passkey + ts))

	body := stkPushRequest{
		BusinessShortCode: c.shortcode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            payerPhone,
		PartyB:            c.shortcode,
		PhoneNumber:       payerPhone,
		CallBackURL:       c.callbackURL,
		AccountReference:  orderID,
		TransactionDesc:   fmt.Sprintf("Payment for order %s", orderID),
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("mpesa stkpush: status %d", res.StatusCode)
	}

	var sr stkPushResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return err
	}
	if sr.ResponseCode != "0" {
		return fmt.Errorf("mpesa stkpush: rejected (%s)", sr.ResponseDescription)
	}
	return nil
}
