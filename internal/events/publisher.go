// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/excubitor/internal/metrics"
)

// ErrPublishFailed wraps every transport-level publish failure. Producers
// treat it as non-fatal: the durable row is already written, only the
// announcement is lost.
var ErrPublishFailed = errors.New("event publish failed")

// ErrPublisherClosed is returned for publishes after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Connection behavior shared by publisher and subscriber.
const (
	maxReconnects   = -1 // unlimited
	reconnectWait   = 2 * time.Second
	reconnectBuffer = 8 * 1024 * 1024
)

// Publisher wraps a Watermill publisher with payload encoding, message ID
// stamping for JetStream deduplication, and publish metrics.
type Publisher struct {
	pub    message.Publisher
	mu     sync.RWMutex
	closed bool
}

// NewNATSPublisher creates a JetStream publisher connected to url.
// The stream must already exist; provisioning belongs to StreamInitializer.
func NewNATSPublisher(url string, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(maxReconnects),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.ReconnectBufSize(reconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return WrapPublisher(pub), nil
}

// WrapPublisher adapts any Watermill publisher (the in-process bus, test
// fakes) to the typed publishing API.
func WrapPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// PublishEvent encodes and publishes a payload on its topic. The message
// UUID is the payload's deterministic MessageID, so resends of the same
// logical event collapse inside the JetStream duplicate window.
func (p *Publisher) PublishEvent(ctx context.Context, payload Payload) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(payload.MessageID(), data)
	msg.SetContext(ctx)
	return p.Publish(payload.Topic(), msg)
}

// Publish sends a prepared message to the given topic.
// The Nats-Msg-Id header is set from the message UUID if absent.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publish %s: %w", topic, ErrPublisherClosed)
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	err := p.pub.Publish(topic, msg)
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w: %w", topic, ErrPublishFailed, err)
	}
	return nil
}

// Watermill exposes the underlying publisher for router middleware that
// requires the native interface (the poison queue).
func (p *Publisher) Watermill() message.Publisher {
	return p.pub
}

// Close shuts the publisher down. Further publishes fail fast.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.pub.Close()
}
