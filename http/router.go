package http

import (
	"context"
	"net/http"

	"boxoffice/clients"
	"boxoffice/db"
	"boxoffice/entity"
	"boxoffice/token"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrServerClosed = http.ErrServerClosed

type PurchaseRepo interface {
	Create(ctx context.Context, in db.CreatePurchaseInput) (entity.Purchase, error)
	Get(ctx context.Context, purchaseID, tenantID string) (entity.Purchase, error)
	CountUserAllocations(ctx context.Context, userID, eventID string) (int, error)
	MaxQuota() int
}

type PaymentRepo interface {
	Add(ctx context.Context, purchase entity.Purchase, sessionID, method string) (entity.Payment, error)
	ResetSession(ctx context.Context, paymentID, sessionID string) error
	FindByPurchase(ctx context.Context, purchaseID string) (*entity.Payment, error)
	CompleteBySessionID(ctx context.Context, sessionID, intentID string) (entity.Payment, bool, error)
	CompleteByIntentID(ctx context.Context, intentID string) (entity.Payment, bool, error)
	FailBySessionID(ctx context.Context, sessionID string) (entity.Payment, bool, error)
	Refund(ctx context.Context, purchaseID, tenantID string) error
}

type AllocationRepo interface {
	GetForIssue(ctx context.Context, allocationID, userID string) (entity.TicketAllocation, string, error)
	Redeem(ctx context.Context, in db.RedeemInput) (entity.RedemptionReceipt, error)
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req clients.CheckoutSessionRequest) (clients.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (clients.CheckoutSessionStatus, error)
}

type RouterDeps struct {
	PurchaseRepo   PurchaseRepo
	PaymentRepo    PaymentRepo
	AllocationRepo AllocationRepo
	Gateway        Gateway
	Tokens         token.Issuer
	WebhookSecret  string
}

func NewRouter(deps RouterDeps) *echo.Echo {
	server := commonHTTP.NewEcho()

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := handler{
		purchases:     deps.PurchaseRepo,
		payments:      deps.PaymentRepo,
		allocations:   deps.AllocationRepo,
		gateway:       deps.Gateway,
		tokens:        deps.Tokens,
		webhookSecret: deps.WebhookSecret,
	}

	server.POST("/purchases", h.CreatePurchase)
	server.GET("/purchases/:purchaseId", h.GetPurchase)
	server.POST("/purchases/:purchaseId/refund", h.RefundPurchase)
	server.GET("/quota", h.GetQuota)

	server.POST("/payments/purchase/:purchaseId", h.CreatePaymentLink)
	server.POST("/payments/purchase/:purchaseId/verify", h.VerifyPayment)
	server.POST("/webhooks/payment", h.PaymentWebhook)

	server.POST("/tickets/:allocationId/token", h.IssueRedemptionToken)
	server.POST("/tickets/redeem", h.RedeemTicket)

	return server
}
