// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/excubitor/internal/config"
)

// JetStream consumer behavior. Redelivery is bounded so a poisoned message
// eventually stops cycling; ack waits are generous because feedback handlers
// hit the store and may trigger an immediate rescore.
const (
	subAckWait       = 30 * time.Second
	subMaxDeliver    = 5
	subMaxAckPending = 1000
	subCloseTimeout  = 30 * time.Second
)

// NewNATSSubscriber creates a durable JetStream subscriber bound to the
// video intel stream. The durable name pins consumer progress across
// restarts; the queue group load-balances analyzer replicas.
func NewNATSSubscriber(url string, cfg config.NATSConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(maxReconnects),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(subMaxDeliver),
		natsgo.MaxAckPending(subMaxAckPending),
		natsgo.AckWait(subAckWait),
		natsgo.DeliverNew(),
		// Topics live on the pre-provisioned stream; AutoProvision would
		// try to create one stream per topic.
		natsgo.BindStream(StreamName),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscriberCount,
		AckWaitTimeout:   subAckWait,
		CloseTimeout:     subCloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return sub, nil
}
