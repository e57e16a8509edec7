package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linnemanlabs/go-core/log"
)

// Subscriber is the part of *nats.Conn the source needs.
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NATSSource reads JSON events published on a subject.
type NATSSource struct {
	sub     Subscriber
	subject string
	logger  log.Logger
}

// DialNATS connects to the NATS server at url with reconnects enabled.
func DialNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// NewNATSSource creates a source reading subject from sub.
func NewNATSSource(sub Subscriber, subject string, logger log.Logger) *NATSSource {
	if logger == nil {
		logger = log.Nop()
	}
	return &NATSSource{sub: sub, subject: subject, logger: logger}
}

// Run subscribes and delivers events until ctx is done. Undecodable messages
// are logged and skipped.
func (s *NATSSource) Run(ctx context.Context, h Handler) error {
	msgs := make(chan []byte, 64)
	sub, err := s.sub.Subscribe(s.subject, func(m *nats.Msg) {
		select {
		case msgs <- m.Data:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	if sub != nil {
		defer func() { _ = sub.Unsubscribe() }()
	}

	s.logger.Info(ctx, "listening for capture events", "subject", s.subject)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-msgs:
			ev, err := DecodeEvent(data)
			if err != nil {
				s.logger.Warn(ctx, "dropping capture message", "subject", s.subject, "error", err)
				continue
			}
			h(ctx, ev)
		}
	}
}
