package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/clients"
	"boxoffice/config"
	"boxoffice/db"
	"boxoffice/fee"
	"boxoffice/http"
	"boxoffice/message"
	"boxoffice/token"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	cfg        config.Config
	purchases  db.PurchaseRepo
	msgRouter  *message.Router
	forwarder  *message.Forwarder
	httpRouter *echo.Echo
}

func New(
	cfg config.Config,
	logger watermill.LoggerAdapter,
	redisClient *redis.Client,
	dbConn *sqlx.DB,
) (*Service, error) {
	fees := fee.NewCalculator(decimal.NewFromFloat(cfg.FeeRate))

	purchaseRepo := db.NewPurchaseRepo(dbConn, fees, cfg.PurchaseQuota, logger)
	paymentRepo := db.NewPaymentRepo(dbConn, logger)
	allocationRepo := db.NewAllocationRepo(dbConn, logger)

	gateway := clients.NewGatewayClient(cfg.GatewayAddr, cfg.GatewayTimeout)
	auditClient := clients.NewAuditClient(cfg.AuditAddr, nil)
	mailerClient := clients.NewMailerClient(cfg.MailerAddr, nil)
	notaryClient := clients.NewNotaryClient(cfg.NotaryAddr, nil)

	msgRouter, err := message.NewRouter(message.RouterDeps{
		AuditAppender:      auditClient,
		ConfirmationSender: mailerClient,
		Logger:             logger,
		RedemptionNotary:   notaryClient,
		RedisClient:        redisClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	fwd, err := message.NewForwarder(dbConn, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	httpRouter := http.NewRouter(http.RouterDeps{
		PurchaseRepo:   purchaseRepo,
		PaymentRepo:    paymentRepo,
		AllocationRepo: allocationRepo,
		Gateway:        gateway,
		Tokens:         token.NewIssuer(cfg.RedemptionTokenSecret),
		WebhookSecret:  cfg.GatewayWebhookSecret,
	})

	return &Service{
		cfg:        cfg,
		purchases:  purchaseRepo,
		msgRouter:  msgRouter,
		forwarder:  fwd,
		httpRouter: httpRouter,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running outbox forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		// Wait for message router
		<-s.msgRouter.Running()

		logrus.Info("Starting HTTP server...")
		err := s.httpRouter.Start(":" + s.cfg.Port)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		return s.runExpirySweep(runCtx)
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}

// runExpirySweep periodically cancels pending purchases older than the TTL,
// returning their tickets to the pool.
func (s *Service) runExpirySweep(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.cfg.PendingPurchaseTTL)
			released, err := s.purchases.ReleaseExpired(ctx, cutoff)
			if err != nil {
				logrus.WithError(err).Error("expiry sweep failed")
				continue
			}
			if released > 0 {
				logrus.WithField("released", released).Info("expiry sweep released purchases")
			}
		}
	}
}
