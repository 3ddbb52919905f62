package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/resilience"
)

// HeaderDonationKey carries the donation key so consumers can route
// without decoding the body.
const HeaderDonationKey = "Donation-Key"

// HeaderSessionID carries the session a donation belongs to.
const HeaderSessionID = "Donation-Session"

const defaultQueueGroup = "donation-recorders"

// Queue publishes donation events to a subject and consumes them in a
// queue group.
type Queue struct {
	conn     *nats.Conn
	subject  string
	group    string
	guard    *resilience.Guard
	logger   *slog.Logger
	now      func() time.Time
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	// ReconnectBufferBytes caps publishes buffered while reconnecting;
	// beyond it Donate fails with nats.ErrReconnectBufExceeded.
	ReconnectBufferBytes int
	Guard                *resilience.Guard
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	group := options.QueueGroup
	if group == "" {
		group = defaultQueueGroup
	}
	reconnectBuf := options.ReconnectBufferBytes
	if reconnectBuf <= 0 {
		reconnectBuf = nats.DefaultReconnectBufSize
	}

	conn, err := nats.Connect(
		url,
		nats.Name("port-google-home"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.ReconnectBufSize(reconnectBuf),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				logger.Error("nats_async_error", "subject", sub.Subject, "error", err)
				return
			}
			logger.Error("nats_async_error", "error", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		group:    group,
		guard:    options.Guard,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Donate publishes one donation event. The event gets its id and receive
// time here so retries of the same publish are idempotent downstream.
func (q *Queue) Donate(ctx context.Context, sessionID, key, payload string) error {
	msg, err := encodeDonation(q.subject, domain.Donation{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Key:        key,
		Payload:    payload,
		ReceivedAt: q.now().UTC(),
	})
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.guard != nil {
		err = q.guard.Deliver(ctx, "nats.publish", call, classifyPublish)
	} else {
		err = call(ctx)
	}
	if err != nil && classifyPublish(err) == resilience.Retry {
		return domain.WrapError(domain.ErrTemporary, "publish donation", err)
	}
	return err
}

// classifyPublish sorts publish failures: a connection that is catching up
// (slow consumer, reconnect buffer full, reconnecting) is redelivered, an
// oversized or misaddressed donation is rejected, and a closed connection
// fails for good.
func classifyPublish(err error) resilience.Disposition {
	switch {
	case domain.IsKind(err, domain.ErrTemporary), resilience.BreakerOpen(err):
		return resilience.Retry
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Reject
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrInvalidMsg):
		return resilience.Reject
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrConnectionDraining):
		return resilience.Fail
	case errors.Is(err, nats.ErrSlowConsumer),
		errors.Is(err, nats.ErrReconnectBufExceeded),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout):
		return resilience.Retry
	default:
		return resilience.Fail
	}
}

func (q *Queue) SubscribeDonations(ctx context.Context, handler func(context.Context, domain.Donation) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		donation, err := decodeDonation(msg)
		if err != nil {
			q.logger.Error("donation_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, donation); err != nil {
			q.logger.Error("donation_handler_failed", "donation_id", donation.ID, "key", donation.Key, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
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

func encodeDonation(subject string, donation domain.Donation) (*nats.Msg, error) {
	body, err := json.Marshal(donation)
	if err != nil {
		return nil, fmt.Errorf("encode donation: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = body
	msg.Header.Set(HeaderDonationKey, donation.Key)
	msg.Header.Set(HeaderSessionID, donation.SessionID)
	return msg, nil
}

func decodeDonation(msg *nats.Msg) (domain.Donation, error) {
	var donation domain.Donation
	if err := json.Unmarshal(msg.Data, &donation); err != nil {
		return domain.Donation{}, domain.WrapError(domain.ErrInvalidInput, "decode donation", err)
	}
	if msg.Header != nil {
		if donation.Key == "" {
			donation.Key = msg.Header.Get(HeaderDonationKey)
		}
		if donation.SessionID == "" {
			donation.SessionID = msg.Header.Get(HeaderSessionID)
		}
	}
	return donation, nil
}
