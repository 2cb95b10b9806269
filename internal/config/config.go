package config

import (
	"fmt"
	"os"
	"strconv"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート

	JWTSecret string // 加盟店APIトークンの署名シークレット

	MpesaBaseURL        string // Daraja APIベースURL（sandbox/production）
	MpesaShortcode      string // Paybill/Till番号
	MpesaPasskey        string // STK pushパスキー
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaCallbackURL    string // コールバック受け口（/webhook/mpesa）

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string // 「whatsapp:+14155238886」形式

	// AWAITING_PAYMENTのまま放置されたセッションを次のメッセージで
	// NEW扱いにするまでの分数。0なら期限なし（注文側は触らない）。
	SessionPaymentTTLMin int

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	ttl := 0
	if v := os.Getenv("SESSION_PAYMENT_TTL_MIN"); v != "" {
		ttl, err = strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_PAYMENT_TTL_MIN must be number: %w", err)
		}
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		MpesaBaseURL:        os.Getenv("MPESA_BASE_URL"),
		MpesaShortcode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),

		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom: os.Getenv("TWILIO_WHATSAPP_FROM"),

		SessionPaymentTTLMin: ttl,

		GoEnv: os.Getenv("GO_ENV"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MpesaBaseURL == "" {
		return Config{}, fmt.Errorf("MPESA_BASE_URL is required")
	}
	if cfg.MpesaShortcode == "" {
		return Config{}, fmt.Errorf("MPESA_SHORTCODE is required")
	}
	if cfg.MpesaPasskey == "" {
		return Config{}, fmt.Errorf("MPESA_PASSKEY is required")
	}
	if cfg.MpesaConsumerKey == "" {
		return Config{}, fmt.Errorf("MPESA_CONSUMER_KEY is required")
	}
	if cfg.MpesaConsumerSecret == "" {
		return Config{}, fmt.Errorf("MPESA_CONSUMER_SECRET is required")
	}
	if cfg.MpesaCallbackURL == "" {
		return Config{}, fmt.Errorf("MPESA_CALLBACK_URL is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	return cfg, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
