package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/config"
)

// natsConn は NATS 接続の抽象インターフェース。
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	IsConnected() bool
	Drain() error
}

// NATSPublisher は監査イベントを NATS に配信する。
// subject は "<prefix>.<entity_type>.<action>" 形式。
type NATSPublisher struct {
	conn       natsConn
	subject    string
	maxRetries uint64
	retryWait  time.Duration
}

// NewNATSPublisher は NATS に接続して NATSPublisher を作成する。
func NewNATSPublisher(cfg config.NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("k1s0-configdeploy"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from nats", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to nats", slog.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect nats: %w", err)
	}
	return newNATSPublisher(nc, cfg.Subject), nil
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	return &NATSPublisher{
		conn:       conn,
		subject:    subject,
		maxRetries: 3,
		retryWait:  100 * time.Millisecond,
	}
}

// Publish は監査ログエントリを配信する。一時的な失敗は指数バックオフで再試行する。
func (p *NATSPublisher) Publish(ctx context.Context, entry *model.AuditLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize audit log entry: %w", err)
	}
	msg := &nats.Msg{
		Subject: p.subjectFor(entry),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", entry.ID)
	msg.Header.Set("Event-Key", eventKey(entry))

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.retryWait
	b := backoff.WithContext(backoff.WithMaxRetries(eb, p.maxRetries), ctx)

	op := func() error {
		err := p.conn.PublishMsg(msg)
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubject) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) subjectFor(entry *model.AuditLogEntry) string {
	return p.subject + "." + string(entry.EntityType) + "." + entry.Action
}

// Healthy は NATS 接続が確立しているかを返す。
func (p *NATSPublisher) Healthy(_ context.Context) error {
	if !p.conn.IsConnected() {
		return errors.New("nats is not connected")
	}
	return nil
}

// Close は未送信メッセージを送り切ってから接続を閉じる。
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
