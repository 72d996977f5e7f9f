// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// Retry backoff shape. The retry count and initial interval come from
// configuration; the envelope is fixed.
const (
	retryMaxInterval = time.Minute
	retryMultiplier  = 2.0
)

// Router runs consumer handlers with panic recovery, bounded exponential
// retry, and poison-queue routing for messages that exhaust their retries.
type Router struct {
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewRouter creates a router with the standard middleware stack.
// poisonPublisher receives undeliverable messages; pass nil to disable the
// poison queue regardless of configuration.
func NewRouter(cfg config.NATSConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.RouterCloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// First-added middleware is outermost. The poison queue swallows the
	// error it captures, so it must sit outside Retry or the first failure
	// would be poisoned with zero retries. Recoverer sits innermost so a
	// panicking handler is retried and poisoned like any other failure.
	if cfg.RouterPoisonQueueEnabled && poisonPublisher != nil {
		poison, err := middleware.PoisonQueue(
			&poisonRecorder{pub: poisonPublisher},
			cfg.RouterPoisonQueueTopic,
		)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RouterRetryCount,
		InitialInterval: cfg.RouterRetryInitialInterval,
		MaxInterval:     retryMaxInterval,
		Multiplier:      retryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	wmRouter.AddMiddleware(middleware.Recoverer)

	return &Router{router: wmRouter, logger: logger}, nil
}

// AddConsumerHandler registers a no-output handler for a topic. Successful
// executions are acked and counted; errors flow into the retry middleware.
func (r *Router) AddConsumerHandler(name, topic string, sub message.Subscriber, handler message.NoPublishHandlerFunc) {
	wrapped := func(msg *message.Message) error {
		start := time.Now()
		if err := handler(msg); err != nil {
			return err
		}
		metrics.RecordEventHandled(name, time.Since(start))
		return nil
	}
	r.router.AddConsumerHandler(name, topic, sub, wrapped)
}

// Run starts the router and blocks until the context is canceled. Handler
// subscribers are closed on the way out.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once all handlers are consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to the configured close timeout for
// in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

// Serve implements suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	return r.router.Run(ctx)
}

func (r *Router) String() string { return "event-router" }

// poisonRecorder wraps the poison-queue publisher to rewrite the dedupe
// header and record the drop. The original Nats-Msg-Id must not be reused:
// the poison copy lands on the same stream, and JetStream would swallow it
// as a duplicate of the message that just failed.
type poisonRecorder struct {
	pub message.Publisher
}

func (p *poisonRecorder) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		msg.Metadata.Set(natsgo.MsgIdHdr, "poison:"+msg.UUID)
	}

	if err := p.pub.Publish(topic, msgs...); err != nil {
		return err
	}

	for _, msg := range msgs {
		origin := msg.Metadata.Get(middleware.PoisonedTopicKey)
		if origin == "" {
			origin = topic
		}
		metrics.EventsPoisoned.WithLabelValues(origin).Inc()
		logging.Warn().
			Str("message_uuid", msg.UUID).
			Str("origin_topic", origin).
			Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
			Msg("Message routed to poison queue")
	}
	return nil
}

func (p *poisonRecorder) Close() error {
	// The wrapped publisher is shared with regular publishing; its owner
	// closes it.
	return nil
}
