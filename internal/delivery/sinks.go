package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/ayusman/handbooth/internal/plugin"
	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/store"
)

// StoreSink marks the session finished and records its photos.
type StoreSink struct {
	sessions *store.SessionRepository
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(s *store.Store) *StoreSink {
	return &StoreSink{sessions: s.Sessions()}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(_ context.Context, h session.Handoff) error {
	photos := make([]store.Photo, len(h.Photos))
	for i, p := range h.Photos {
		photos[i] = store.Photo{SessionID: h.SessionID, Seq: p.Seq, Path: p.Path, TakenAt: p.TakenAt}
	}
	if err := s.sessions.Finish(h.SessionID, photos, h.FinishedAt); err != nil {
		return fmt.Errorf("store session %s: %w", h.SessionID, err)
	}
	return nil
}

// PluginSink runs every plugin subscribed to session.finished.
type PluginSink struct {
	manager  *plugin.Manager
	executor *plugin.Executor
}

// NewPluginSink creates a PluginSink.
func NewPluginSink(manager *plugin.Manager, executor *plugin.Executor) *PluginSink {
	return &PluginSink{manager: manager, executor: executor}
}

func (s *PluginSink) Name() string { return "plugins" }

// Deliver runs the subscribers in name order. One failing plugin does not stop
// the rest; all failures are joined.
func (s *PluginSink) Deliver(ctx context.Context, h session.Handoff) error {
	photos := make([]plugin.PhotoRef, len(h.Photos))
	for i, p := range h.Photos {
		photos[i] = plugin.PhotoRef{Seq: p.Seq, Path: p.Path, TakenAt: p.TakenAt}
	}

	var errs []error
	for _, p := range s.manager.Subscribers(plugin.EventSessionFinished) {
		req := &plugin.Request{
			Event:      plugin.EventSessionFinished,
			SessionID:  h.SessionID,
			Photos:     photos,
			FinishedAt: h.FinishedAt,
		}
		resp, err := s.executor.Execute(ctx, p, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !resp.Success {
			errs = append(errs, fmt.Errorf("plugin %s: %s", p.Manifest.Name, resp.Error))
		}
	}
	return errors.Join(errs...)
}

// Publisher publishes one message. It is satisfied by NatsPublisher.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NatsSink publishes each finished session as JSON.
type NatsSink struct {
	publisher Publisher
	subject   string
}

// NewNatsSink creates a NatsSink on subject.
func NewNatsSink(publisher Publisher, subject string) *NatsSink {
	return &NatsSink{publisher: publisher, subject: subject}
}

func (s *NatsSink) Name() string { return "nats" }

func (s *NatsSink) Deliver(ctx context.Context, h session.Handoff) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff: %w", err)
	}
	if err := s.publisher.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.subject, err)
	}
	return nil
}

// NatsPublisher publishes through JetStream so finished sessions survive a
// consumer restart.
type NatsPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNatsPublisher connects to url and ensures stream captures subject.
func NewNatsPublisher(url, stream, subject string, logger *zap.Logger) (*NatsPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("handbooth"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
	}); err != nil {
		logger.Warn("failed to ensure stream", zap.String("stream", stream), zap.Error(err))
	}

	return &NatsPublisher{nc: nc, js: js}, nil
}

// Publish sends data to subject and waits for the stream ack.
func (p *NatsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.Publish(ctx, subject, data)
	return err
}

// Close closes the NATS connection.
func (p *NatsPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
