package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "WARDEN_ALERTS"

// NATSSink publishes alerts to a JetStream stream, one subject per kind:
// <subject>.<kind>.
type NATSSink struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
}

// ConnectNATS connects to url and ensures the alert stream exists.
func ConnectNATS(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("warden-alerts"))
	if err != nil {
		return nil, fmt.Errorf("alert: nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("alert: jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subject + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("alert: jetstream stream create: %w", err)
	}

	logger.Info("alert: nats connected", "url", url, "stream", streamName, "subject", subject)
	return &NATSSink{nc: nc, js: js, subject: subject}, nil
}

// Subject returns the subject an alert of kind k is published on.
func (s *NATSSink) Subject(k Kind) string { return s.subject + "." + string(k) }

func (s *NATSSink) Raise(ctx context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alert: encode: %w", err)
	}
	if _, err := s.js.Publish(ctx, s.Subject(a.Kind), data); err != nil {
		return fmt.Errorf("alert: nats publish %s: %w", s.Subject(a.Kind), err)
	}
	return nil
}

// Stream exposes the alert stream, for consumers and tests.
func (s *NATSSink) Stream(ctx context.Context) (jetstream.Stream, error) {
	return s.js.Stream(ctx, streamName)
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}
