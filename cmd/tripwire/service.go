package main

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/tripwire-iot/tripwire"
	"github.com/tripwire-iot/tripwire/internal/config"
	"github.com/tripwire-iot/tripwire/pkg/file"
	"github.com/tripwire-iot/tripwire/pkg/nats"
	"github.com/tripwire-iot/tripwire/pkg/prometheus"
	redistransport "github.com/tripwire-iot/tripwire/pkg/redis"
	"github.com/tripwire-iot/tripwire/pkg/websocket"
)

// errorHistory is how many dropped frames the service keeps for /snapshot.
const errorHistory = 16

type service struct {
	engine   *tripwire.Engine
	gatherer prom.Gatherer
	closers  []func() error
}

func newService(cfg *config.Config) (*service, error) {
	svc := &service{}

	transport, err := svc.transport(cfg.Transport)
	if err != nil {
		return nil, err
	}

	reg := prom.NewRegistry()
	svc.gatherer = reg

	svc.engine = tripwire.New(transport,
		tripwire.WithLiveExpiry(cfg.Expiry.Live),
		tripwire.WithDiagnosticExpiry(cfg.Expiry.Diagnostic),
		tripwire.WithMetrics(prometheus.New(reg)),
		tripwire.WithErrorHistory(errorHistory),
	)
	return svc, nil
}

func (s *service) transport(cfg config.TransportConfig) (tripwire.Transport, error) {
	switch cfg.Kind {
	case config.KindWebSocket:
		return websocket.New(cfg.Endpoint,
			websocket.WithOrigin(cfg.Origin),
			websocket.WithMaxBackoff(cfg.MaxBackoff),
		), nil
	case config.KindRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Endpoint})
		s.closers = append(s.closers, client.Close)
		return redistransport.New(client, cfg.Inbound, cfg.Outbound), nil
	case config.KindNATS:
		return nats.New(cfg.Endpoint, cfg.Inbound, cfg.Outbound), nil
	case config.KindFile:
		var opts []file.Option
		if cfg.Outbound != "" {
			opts = append(opts, file.WithCapture(cfg.Outbound))
		}
		return file.New(cfg.Inbound, opts...), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// close stops the engine, then releases the clients it was using.
func (s *service) close() {
	_ = s.engine.Stop()
	for _, c := range s.closers {
		_ = c()
	}
}
