package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"flowstack/internal/config"
	"flowstack/internal/domain/model"
	"flowstack/internal/handler"
	"flowstack/internal/infra/db"
	"flowstack/internal/infra/mpesa"
	"flowstack/internal/infra/notify"
	infraRepo "flowstack/internal/infra/repository"
	"flowstack/internal/server"
	"flowstack/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// 注文参照はORD+6桁。顧客が口頭やPaybill入力で使える短さにする。
type orderRefGenerator struct{}

func (g *orderRefGenerator) NewRef() string {
	return fmt.Sprintf("ORD%06d", rand.Intn(900000)+100000)
}

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(merchantID int64, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", merchantID),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.Merchant{},
		&model.MenuItem{},
		&model.Session{},
		&model.Order{},
		&model.OrderItem{},
		&model.CallbackEvent{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	merchantRepo := infraRepo.NewMerchantGormRepository(gormDB)
	menuItemRepo := infraRepo.NewMenuItemGormRepository(gormDB)
	sessionRepo := infraRepo.NewSessionGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	eventRepo := infraRepo.NewCallbackEventGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	refGen := &orderRefGenerator{}
	clock := &realClock{}

	//外部コラボレータ
	gateway := mpesa.NewClient(cfg)
	sender := notify.NewTwilioSender(cfg)
	notifier := notify.NewWebhookNotifier()

	//JWT issuer
	issuer := &jwtIssuer{
		secret:    []byte(cfg.JWTSecret),
		accessTTL: 15 * time.Minute,
	}

	//Usecase生成
	catalogUC := usecase.NewCatalogUsecase(merchantRepo, menuItemRepo)
	convUC := usecase.NewConversationUsecase(
		catalogUC,
		sessionRepo,
		txManager,
		orderRepo,
		orderItemRepo,
		gateway,
		idGen,
		refGen,
		clock,
		time.Duration(cfg.SessionPaymentTTLMin)*time.Minute,
	)
	paymentUC := usecase.NewPaymentUsecase(
		orderRepo,
		sessionRepo,
		merchantRepo,
		eventRepo,
		sender,
		notifier,
		clock,
	)
	merchantUC := usecase.NewMerchantUsecase(merchantRepo, orderRepo, orderItemRepo, issuer, clock)

	//Handler生成
	whatsappH := handler.NewWhatsAppHandler(convUC)
	mpesaH := handler.NewMpesaHandler(paymentUC)
	merchantH := handler.NewMerchantHandler(merchantUC)

	//Server起動
	e := server.New()
	server.RegisterRoutes(e, cfg, whatsappH, mpesaH, merchantH)

	addr := ":" + cfg.Port
	if err := server.Start(e, addr); err != nil {
		panic(err)
	}
}
