package repository

import (
	"context"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// SnapshotRepository はスナップショットの永続化インターフェース。更新操作は持たない。
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.ConfigurationSnapshot) error
	GetByID(ctx context.Context, id string) (*model.ConfigurationSnapshot, error)
	List(ctx context.Context, scope model.Scope) ([]*model.ConfigurationSnapshot, error)
}
