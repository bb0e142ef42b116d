package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

type Subjects struct {
	ChunkUploaded         string
	RegenerationRequested string
}

func (s Subjects) normalize() Subjects {
	out := s
	if strings.TrimSpace(out.ChunkUploaded) == "" {
		out.ChunkUploaded = "minutes.chunk.uploaded"
	}
	if strings.TrimSpace(out.RegenerationRequested) == "" {
		out.RegenerationRequested = "minutes.regeneration.requested"
	}
	return out
}

type Queue struct {
	conn     *nats.Conn
	subjects Subjects
	executor *resilience.Executor
}

func New(url string, subjects Subjects) (*Queue, error) {
	return NewWithOptions(url, subjects, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url string, subjects Subjects, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("meeting-minutes"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subjects: subjects.normalize(),
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Connected reports whether the underlying connection is usable.
func (q *Queue) Connected() bool {
	return q.conn != nil && q.conn.IsConnected()
}

func (q *Queue) PublishChunkUploaded(ctx context.Context, event domain.ChunkUploaded) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal chunk event: %w", err)
	}
	return q.publish(ctx, q.subjects.ChunkUploaded, payload)
}

func (q *Queue) PublishRegenerationRequested(ctx context.Context, meetingID string) error {
	return q.publish(ctx, q.subjects.RegenerationRequested, []byte(meetingID))
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return wrapPublishError(subject, err)
}

// classifyPublishError retries only while the client is reconnecting. A closed
// connection stays closed, and an oversized or malformed message never succeeds.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func wrapPublishError(subject string, err error) error {
	if err == nil {
		return nil
	}
	operation := "publish " + subject
	switch {
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	case errors.Is(err, nats.ErrConnectionClosed),
		resilience.IsCircuitOpen(err),
		classifyPublishError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func (q *Queue) SubscribeChunkUploaded(ctx context.Context, handler func(context.Context, domain.ChunkUploaded) error) error {
	return q.subscribe(ctx, q.subjects.ChunkUploaded, func(handlerCtx context.Context, data []byte) error {
		var event domain.ChunkUploaded
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("decode chunk event: %w", err)
		}
		if strings.TrimSpace(event.MeetingID) == "" {
			return fmt.Errorf("chunk event without meeting id")
		}
		return handler(handlerCtx, event)
	})
}

func (q *Queue) SubscribeRegenerationRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.subjects.RegenerationRequested, func(handlerCtx context.Context, data []byte) error {
		meetingID := strings.TrimSpace(string(data))
		if meetingID == "" {
			return fmt.Errorf("regeneration request without meeting id")
		}
		return handler(handlerCtx, meetingID)
	})
}

// subscribe blocks until ctx is done, then drains the subscription.
func (q *Queue) subscribe(ctx context.Context, subject string, handle func(context.Context, []byte) error) error {
	sub, err := q.conn.QueueSubscribe(subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handle(handlerCtx, msg.Data); err != nil {
			slog.Error("queue_handler_failed", "subject", subject, "payload", string(msg.Data), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
