package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

// MaxFlagNameLength はフラグ名の最大文字数。
const MaxFlagNameLength = 200

// CreateFeatureFlagUseCase はフィーチャーフラグ作成ユースケース。
type CreateFeatureFlagUseCase struct {
	flagRepo repository.FeatureFlagRepository
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewCreateFeatureFlagUseCase は新しい CreateFeatureFlagUseCase を作成する。
func NewCreateFeatureFlagUseCase(
	flagRepo repository.FeatureFlagRepository,
	audit AuditRecorder,
	logger *slog.Logger,
) *CreateFeatureFlagUseCase {
	return &CreateFeatureFlagUseCase{
		flagRepo: flagRepo,
		audit:    audit,
		logger:   loggerOrDefault(logger),
	}
}

// CreateFeatureFlagInput はフィーチャーフラグ作成の入力パラメータ。
type CreateFeatureFlagInput struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Environment string                     `json:"environment"`
	Application string                     `json:"application"`
	TenantID    string                     `json:"tenant_id"`
	IsEnabled   bool                       `json:"is_enabled"`
	Rules       []model.FeatureFlagRule    `json:"rules"`
	Schedule    *model.FeatureFlagSchedule `json:"schedule"`
	Metadata    map[string]string          `json:"metadata"`
	CreatedBy   string                     `json:"-"`
}

// Execute はフィーチャーフラグを作成する。同じスコープに同じ名前のフラグがあれば ErrFlagAlreadyExists を返す。
func (uc *CreateFeatureFlagUseCase) Execute(ctx context.Context, input CreateFeatureFlagInput) (*model.FeatureFlag, error) {
	now := time.Now().UTC()
	flag := &model.FeatureFlag{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Environment: input.Environment,
		Application: input.Application,
		TenantID:    input.TenantID,
		IsEnabled:   input.IsEnabled,
		Rules:       normalizeRules(input.Rules),
		Schedule:    input.Schedule,
		Metadata:    input.Metadata,
		CreatedBy:   input.CreatedBy,
		UpdatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if flag.Metadata == nil {
		flag.Metadata = map[string]string{}
	}

	if errs := validateFlag(flag); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	if _, err := uc.flagRepo.GetByName(ctx, flag.Scope(), flag.Name); err == nil {
		return nil, ErrFlagAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get feature flag: %w", err)
	}

	if err := uc.flagRepo.Create(ctx, flag); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrFlagAlreadyExists
		}
		return nil, fmt.Errorf("failed to create feature flag: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, RecordAuditLogInput{
		EntityType: model.EntityTypeFeatureFlag,
		EntityID:   flag.ID,
		Action:     model.AuditActionCreate,
		NewValue:   flagAuditValue(flag),
		UserID:     input.CreatedBy,
	})

	return flag, nil
}

// normalizeRules はルール ID を採番したコピーを返す。
func normalizeRules(rules []model.FeatureFlagRule) []model.FeatureFlagRule {
	out := make([]model.FeatureFlagRule, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		out[i] = r
	}
	return out
}

// validateFlag はフラグ定義を検証し、違反内容を返す。
func validateFlag(flag *model.FeatureFlag) []string {
	var errs []string
	if strings.TrimSpace(flag.Name) == "" {
		errs = append(errs, "name is required")
	} else if len([]rune(flag.Name)) > MaxFlagNameLength {
		errs = append(errs, fmt.Sprintf("name must be at most %d characters", MaxFlagNameLength))
	}
	if strings.TrimSpace(flag.Environment) == "" {
		errs = append(errs, "environment is required")
	}
	if strings.TrimSpace(flag.Application) == "" {
		errs = append(errs, "application is required")
	}

	for i, r := range flag.Rules {
		if strings.TrimSpace(r.Attribute) == "" {
			errs = append(errs, fmt.Sprintf("rules[%d]: attribute is required", i))
		}
		if !r.Operator.IsKnown() {
			errs = append(errs, fmt.Sprintf("rules[%d]: unknown operator %q", i, r.Operator))
			continue
		}
		if r.Operator == model.OperatorPercentage {
			if err := service.ValidatePercentage(r.Value); err != nil {
				errs = append(errs, fmt.Sprintf("rules[%d]: %v", i, err))
			}
		}
	}

	if s := flag.Schedule; s != nil {
		if s.StartDate != nil && s.EndDate != nil && s.StartDate.After(*s.EndDate) {
			errs = append(errs, "schedule: start_date must not be after end_date")
		}
		if s.CronExpression != "" {
			if _, err := cron.ParseStandard(s.CronExpression); err != nil {
				errs = append(errs, fmt.Sprintf("schedule: invalid cron expression: %v", err))
			}
		}
	}
	return errs
}

// flagAuditValue は監査ログに記録するフラグ定義の JSON を返す。
func flagAuditValue(flag *model.FeatureFlag) *string {
	b, err := json.Marshal(flag)
	if err != nil {
		return nil
	}
	return strPtr(string(b))
}
