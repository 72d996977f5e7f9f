// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
)

// inProcessBuffer bounds the in-memory bus so a stalled consumer applies
// backpressure to producers instead of growing the heap.
const inProcessBuffer = 256

// Transport bundles the publisher and subscriber for the configured
// messaging mode: in-process bus, embedded JetStream, or external NATS.
type Transport struct {
	Publisher  *Publisher
	Subscriber message.Subscriber

	server *EmbeddedServer
	inproc *gochannel.GoChannel
	url    string
}

// Connect builds the transport for the given configuration.
//
// With InProcess set, events flow over an in-memory bus and nothing
// survives a restart. Otherwise the stream is provisioned on the target
// server (embedded or external) before any publisher or subscriber attaches.
func Connect(ctx context.Context, cfg config.NATSConfig) (*Transport, error) {
	logger := NewWatermillLogger()

	if cfg.InProcess {
		bus := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: inProcessBuffer,
		}, logger)
		logging.Info().Msg("Event transport running in-process")
		return &Transport{
			Publisher:  WrapPublisher(bus),
			Subscriber: bus,
			inproc:     bus,
		}, nil
	}

	url := cfg.URL
	var srv *EmbeddedServer
	if cfg.EmbeddedServer {
		var err error
		srv, err = NewEmbeddedServer(cfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		url = srv.ClientURL()
	}

	if err := provisionStream(ctx, url, cfg); err != nil {
		shutdownServer(srv)
		return nil, err
	}

	pub, err := NewNATSPublisher(url, logger)
	if err != nil {
		shutdownServer(srv)
		return nil, err
	}

	sub, err := NewNATSSubscriber(url, cfg, logger)
	if err != nil {
		_ = pub.Close()
		shutdownServer(srv)
		return nil, err
	}

	logging.Info().
		Str("url", url).
		Bool("embedded", srv != nil).
		Str("stream", StreamName).
		Msg("Event transport connected")

	return &Transport{
		Publisher:  pub,
		Subscriber: sub,
		server:     srv,
		url:        url,
	}, nil
}

// URL returns the effective NATS URL, or empty for the in-process bus.
func (t *Transport) URL() string { return t.url }

// Embedded reports whether this transport owns an embedded server.
func (t *Transport) Embedded() bool { return t.server != nil }

// Close releases the transport: publisher and subscriber first, then the
// embedded server if one is running. Close tolerates components already
// closed by the router.
func (t *Transport) Close(ctx context.Context) error {
	var errs []error

	if t.Publisher != nil {
		if err := t.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	// The in-process bus is one object behind both halves; closing the
	// publisher wrapper already closed it.
	if t.Subscriber != nil && t.inproc == nil {
		if err := t.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown embedded NATS: %w", err))
		}
	}

	return errors.Join(errs...)
}

// provisionStream connects briefly to create or update the stream, then
// drops the connection; publisher and subscriber maintain their own.
func provisionStream(ctx context.Context, url string, cfg config.NATSConfig) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect for stream provisioning: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("open JetStream context: %w", err)
	}

	init, err := NewStreamInitializer(js, cfg)
	if err != nil {
		return err
	}
	if _, err := init.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}

func shutdownServer(srv *EmbeddedServer) {
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverReadyTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS shutdown after failed transport start")
	}
}
