package messaging

import (
	"context"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// NoopPublisher はイベントを配信しない。messaging.backend が none の場合に使う。
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ *model.AuditLogEntry) error { return nil }

func (NoopPublisher) Healthy(_ context.Context) error { return nil }

func (NoopPublisher) Close() error { return nil }
