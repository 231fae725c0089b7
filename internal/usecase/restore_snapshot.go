package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// RestoreSnapshotUseCase はスナップショット復元ユースケース。
// 現在も存在する key だけを上書きし、削除された key の再作成や新しい key の削除はしない。
type RestoreSnapshotUseCase struct {
	snapshotRepo repository.SnapshotRepository
	configRepo   repository.ConfigRepository
	flagRepo     repository.FeatureFlagRepository
	updateConfig *UpdateConfigUseCase
	updateFlag   *UpdateFeatureFlagUseCase
	cipher       ValueCipher
	audit        AuditRecorder
	logger       *slog.Logger
}

// NewRestoreSnapshotUseCase は新しい RestoreSnapshotUseCase を作成する。
func NewRestoreSnapshotUseCase(
	snapshotRepo repository.SnapshotRepository,
	configRepo repository.ConfigRepository,
	flagRepo repository.FeatureFlagRepository,
	updateConfig *UpdateConfigUseCase,
	updateFlag *UpdateFeatureFlagUseCase,
	cipher ValueCipher,
	audit AuditRecorder,
	logger *slog.Logger,
) *RestoreSnapshotUseCase {
	return &RestoreSnapshotUseCase{
		snapshotRepo: snapshotRepo,
		configRepo:   configRepo,
		flagRepo:     flagRepo,
		updateConfig: updateConfig,
		updateFlag:   updateFlag,
		cipher:       cipher,
		audit:        audit,
		logger:       loggerOrDefault(logger),
	}
}

// RestoreSnapshotOutput はスナップショット復元の結果。
type RestoreSnapshotOutput struct {
	SnapshotID    string            `json:"snapshot_id"`
	Restored      []string          `json:"restored"`
	Skipped       []string          `json:"skipped"`
	Failed        map[string]string `json:"failed"`
	FlagsRestored []string          `json:"flags_restored"`
	FlagsSkipped  []string          `json:"flags_skipped"`
}

// Execute はスナップショットの値を現在の設定に上書きする。key 単位の失敗は Failed に記録して処理を続ける。
func (uc *RestoreSnapshotUseCase) Execute(ctx context.Context, snapshotID, restoredBy string) (*RestoreSnapshotOutput, error) {
	snapshot, err := uc.snapshotRepo.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, notFoundOr(err, "snapshot", snapshotID, "get snapshot")
	}
	scope := snapshot.Scope()
	out := &RestoreSnapshotOutput{
		SnapshotID:    snapshot.ID,
		Restored:      []string{},
		Skipped:       []string{},
		Failed:        map[string]string{},
		FlagsRestored: []string{},
		FlagsSkipped:  []string{},
	}
	metadata := map[string]string{"snapshot_id": snapshot.ID}

	for _, key := range sortedKeys(snapshot.ConfigurationData) {
		stored, err := uc.configRepo.GetByKey(ctx, scope, key)
		if errors.Is(err, repository.ErrNotFound) {
			out.Skipped = append(out.Skipped, key)
			continue
		}
		if err != nil {
			out.Failed[key] = err.Error()
			continue
		}
		live, err := decryptEntry(uc.cipher, stored)
		if err != nil {
			out.Failed[key] = err.Error()
			continue
		}
		want, err := uc.snapshotValue(snapshot, key)
		if err != nil {
			out.Failed[key] = err.Error()
			continue
		}
		if live.Value == want {
			out.Skipped = append(out.Skipped, key)
			continue
		}

		if _, err := uc.updateConfig.Execute(ctx, UpdateConfigInput{
			ID:        live.ID,
			Value:     &want,
			UpdatedBy: restoredBy,
			Action:    model.AuditActionRestore,
			Metadata:  metadata,
		}); err != nil {
			out.Failed[key] = err.Error()
			continue
		}
		out.Restored = append(out.Restored, key)
	}

	flagNames := make([]string, 0, len(snapshot.FeatureFlagData))
	for name := range snapshot.FeatureFlagData {
		flagNames = append(flagNames, name)
	}
	sort.Strings(flagNames)
	for _, name := range flagNames {
		enabled := snapshot.FeatureFlagData[name]
		flag, err := uc.flagRepo.GetByName(ctx, scope, name)
		if err != nil || flag.IsEnabled == enabled {
			out.FlagsSkipped = append(out.FlagsSkipped, name)
			continue
		}
		if _, err := uc.updateFlag.Execute(ctx, UpdateFeatureFlagInput{
			ID:        flag.ID,
			IsEnabled: &enabled,
			UpdatedBy: restoredBy,
			Action:    model.AuditActionRestore,
		}); err != nil {
			out.Failed["flag:"+name] = err.Error()
			continue
		}
		out.FlagsRestored = append(out.FlagsRestored, name)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeSnapshot,
		EntityID:   snapshot.ID,
		Action:     model.AuditActionRestore,
		UserID:     restoredBy,
		Metadata: map[string]string{
			"restored":       fmt.Sprint(len(out.Restored)),
			"skipped":        fmt.Sprint(len(out.Skipped)),
			"failed":         fmt.Sprint(len(out.Failed)),
			"flags_restored": fmt.Sprint(len(out.FlagsRestored)),
		},
	})
	uc.logger.Info("snapshot restored",
		slog.String("snapshot_id", snapshot.ID),
		slog.Int("restored", len(out.Restored)),
		slog.Int("failed", len(out.Failed)),
	)

	return out, nil
}

func (uc *RestoreSnapshotUseCase) snapshotValue(snapshot *model.ConfigurationSnapshot, key string) (string, error) {
	value := snapshot.ConfigurationData[key]
	if !snapshot.IsEncrypted(key) {
		return value, nil
	}
	if uc.cipher == nil {
		return "", ErrEncryptionUnavailable
	}
	plain, err := uc.cipher.Decrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt snapshot value: %w", err)
	}
	return plain, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
