package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// CreateSnapshotUseCase はスナップショット作成ユースケース。
type CreateSnapshotUseCase struct {
	snapshotRepo repository.SnapshotRepository
	configRepo   repository.ConfigRepository
	flagRepo     repository.FeatureFlagRepository
	audit        AuditRecorder
	logger       *slog.Logger
}

// NewCreateSnapshotUseCase は新しい CreateSnapshotUseCase を作成する。
func NewCreateSnapshotUseCase(
	snapshotRepo repository.SnapshotRepository,
	configRepo repository.ConfigRepository,
	flagRepo repository.FeatureFlagRepository,
	audit AuditRecorder,
	logger *slog.Logger,
) *CreateSnapshotUseCase {
	return &CreateSnapshotUseCase{
		snapshotRepo: snapshotRepo,
		configRepo:   configRepo,
		flagRepo:     flagRepo,
		audit:        audit,
		logger:       loggerOrDefault(logger),
	}
}

// CreateSnapshotInput はスナップショット作成の入力パラメータ。
type CreateSnapshotInput struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
	Application string `json:"application"`
	TenantID    string `json:"tenant_id"`
	CreatedBy   string `json:"-"`
}

// Execute はスコープ内の現在の設定値とフラグ状態をスナップショットとして保存する。
func (uc *CreateSnapshotUseCase) Execute(ctx context.Context, input CreateSnapshotInput) (*model.ConfigurationSnapshot, error) {
	if input.Environment == "" || input.Application == "" {
		return nil, newValidationError("environment and application are required")
	}
	scope := model.Scope{
		Environment: input.Environment,
		Application: input.Application,
		TenantID:    input.TenantID,
	}

	entries, _, err := uc.configRepo.List(ctx, repository.ConfigListParams{Scope: scope})
	if err != nil {
		return nil, fmt.Errorf("failed to list config entries: %w", err)
	}
	flags, err := uc.flagRepo.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature flags: %w", err)
	}

	now := time.Now().UTC()
	name := input.Name
	if name == "" {
		name = "snapshot-" + now.Format("20060102T150405Z")
	}
	snapshot := &model.ConfigurationSnapshot{
		ID:                uuid.New().String(),
		Name:              name,
		Environment:       scope.Environment,
		Application:       scope.Application,
		TenantID:          scope.TenantID,
		CreatedBy:         input.CreatedBy,
		CreatedAt:         now,
		ConfigurationData: make(map[string]string, len(entries)),
		FeatureFlagData:   make(map[string]bool, len(flags)),
		EncryptedKeys:     []string{},
	}
	for _, e := range entries {
		snapshot.ConfigurationData[e.Key] = e.Value
		if e.IsEncrypted {
			snapshot.EncryptedKeys = append(snapshot.EncryptedKeys, e.Key)
		}
	}
	for _, f := range flags {
		snapshot.FeatureFlagData[f.Name] = f.IsEnabled
	}

	if err := uc.snapshotRepo.Create(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeSnapshot,
		EntityID:   snapshot.ID,
		Action:     model.AuditActionCreate,
		UserID:     input.CreatedBy,
		Metadata: map[string]string{
			"scope":          scope.String(),
			"configurations": fmt.Sprint(len(snapshot.ConfigurationData)),
			"feature_flags":  fmt.Sprint(len(snapshot.FeatureFlagData)),
		},
	})

	return snapshot, nil
}
