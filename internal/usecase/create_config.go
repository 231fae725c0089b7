package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

// CreateConfigUseCase は設定エントリ作成ユースケース。
type CreateConfigUseCase struct {
	configRepo repository.ConfigRepository
	validator  *service.ConfigValidator
	audit      AuditRecorder
	cipher     ValueCipher
	locker     KeyLocker
	logger     *slog.Logger
}

// NewCreateConfigUseCase は新しい CreateConfigUseCase を作成する。
func NewCreateConfigUseCase(
	configRepo repository.ConfigRepository,
	validator *service.ConfigValidator,
	audit AuditRecorder,
	cipher ValueCipher,
	locker KeyLocker,
	logger *slog.Logger,
) *CreateConfigUseCase {
	return &CreateConfigUseCase{
		configRepo: configRepo,
		validator:  validator,
		audit:      audit,
		cipher:     cipher,
		locker:     locker,
		logger:     loggerOrDefault(logger),
	}
}

// CreateConfigInput は設定エントリ作成の入力パラメータ。
type CreateConfigInput struct {
	// ID は再作成時に元の ID を引き継ぐ場合のみ指定する。
	ID             string                `json:"-"`
	// Version は再作成時の開始バージョン。1 未満の場合は 1。
	Version        int                   `json:"-"`
	Key            string                `json:"key"`
	Value          string                `json:"value"`
	Environment    string                `json:"environment"`
	Application    string                `json:"application"`
	TenantID       string                `json:"tenant_id"`
	IsEncrypted    bool                  `json:"is_encrypted"`
	ValidationRule *model.ValidationRule `json:"validation_rule"`
	Tags           []string              `json:"tags"`
	Description    string                `json:"description"`
	CreatedBy      string                `json:"created_by"`
	// Action は監査アクション。空の場合は CREATE。
	Action         string                `json:"-"`
	Metadata       map[string]string     `json:"-"`
}

// CreateConfigOutput は設定エントリ作成の出力。Entry の Value は平文。
type CreateConfigOutput struct {
	Entry    *model.ConfigEntry
	Warnings []string
}

// Execute は設定エントリを検証して作成する。検証に失敗した場合は何も書き込まない。
func (uc *CreateConfigUseCase) Execute(ctx context.Context, input CreateConfigInput) (*CreateConfigOutput, error) {
	now := time.Now().UTC()
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	version := input.Version
	if version < 1 {
		version = 1
	}
	entry := &model.ConfigEntry{
		ID:             id,
		Key:            input.Key,
		Value:          input.Value,
		Environment:    input.Environment,
		Application:    input.Application,
		TenantID:       input.TenantID,
		IsActive:       true,
		IsEncrypted:    input.IsEncrypted,
		Version:        version,
		ValidationRule: input.ValidationRule,
		Tags:           tags,
		Description:    input.Description,
		CreatedBy:      input.CreatedBy,
		UpdatedBy:      input.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result := uc.validator.Validate(entry)
	if !result.IsValid {
		return nil, &ValidationError{Errors: result.Errors, Warnings: result.Warnings}
	}

	unlock, err := lockKey(ctx, uc.locker, entry.UniqueKey())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := uc.configRepo.GetByKey(ctx, entry.Scope(), entry.Key); err == nil {
		return nil, ErrConfigAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get config entry: %w", err)
	}

	stored, err := encryptEntry(uc.cipher, entry)
	if err != nil {
		return nil, err
	}
	if err := uc.configRepo.Create(ctx, stored); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrConfigAlreadyExists
		}
		return nil, fmt.Errorf("failed to create config entry: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeConfiguration,
		EntityID:   entry.ID,
		Action:     orDefault(input.Action, model.AuditActionCreate),
		NewValue:   auditValue(entry, entry.Value),
		UserID:     input.CreatedBy,
		Metadata:   input.Metadata,
	})

	return &CreateConfigOutput{Entry: entry, Warnings: result.Warnings}, nil
}
