package message

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	AuditAppender      AuditAppender
	ConfirmationSender ConfirmationSender
	Logger             watermill.LoggerAdapter
	RedemptionNotary   RedemptionNotary
	RedisClient        *redis.Client
}

type Router struct {
	*message.Router
}

func NewRouter(deps RouterDeps) (*Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	router.AddMiddleware(correlationIDMiddleware)
	router.AddMiddleware(loggerMiddleware)
	router.AddMiddleware(handlerLogMiddleware)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      10,
		InitialInterval: time.Millisecond * 100,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          deps.Logger,
	}.Middleware)

	config := cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        deps.RedisClient,
				ConsumerGroup: "boxoffice." + params.HandlerName,
			}, deps.Logger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: deps.Logger,
	}

	ep, err := cqrs.NewEventProcessorWithConfig(router, config)
	if err != nil {
		return nil, fmt.Errorf("creating event processor: %w", err)
	}

	handlers := []cqrs.EventHandler{
		cqrs.NewEventHandler("audit-purchase-created", handleAuditPurchaseCreated(deps.AuditAppender)),
		cqrs.NewEventHandler("audit-payment-completed", handleAuditPaymentCompleted(deps.AuditAppender)),
		cqrs.NewEventHandler("audit-payment-failed", handleAuditPaymentFailed(deps.AuditAppender)),
		cqrs.NewEventHandler("audit-ticket-redeemed", handleAuditTicketRedeemed(deps.AuditAppender)),
		cqrs.NewEventHandler("audit-purchase-expired", handleAuditPurchaseExpired(deps.AuditAppender)),
		cqrs.NewEventHandler("audit-purchase-refunded", handleAuditPurchaseRefunded(deps.AuditAppender)),
		cqrs.NewEventHandler("send-payment-confirmation", handleSendPaymentConfirmation(deps.ConfirmationSender)),
		cqrs.NewEventHandler("notarize-redemption", handleNotarizeRedemption(deps.RedemptionNotary)),
	}

	if err := ep.AddHandlers(handlers...); err != nil {
		return nil, fmt.Errorf("adding handlers: %w", err)
	}

	return &Router{router}, nil
}
