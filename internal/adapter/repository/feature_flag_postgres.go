package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/persistence"
)

const flagColumns = `id, name, description, environment, application, tenant_id, is_enabled,
	rules, schedule, metadata, created_by, updated_by, created_at, updated_at`

type flagRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Environment string    `db:"environment"`
	Application string    `db:"application"`
	TenantID    string    `db:"tenant_id"`
	IsEnabled   bool      `db:"is_enabled"`
	Rules       []byte    `db:"rules"`
	Schedule    []byte    `db:"schedule"`
	Metadata    []byte    `db:"metadata"`
	CreatedBy   string    `db:"created_by"`
	UpdatedBy   string    `db:"updated_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r flagRow) toModel() (*model.FeatureFlag, error) {
	flag := &model.FeatureFlag{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Environment: r.Environment,
		Application: r.Application,
		TenantID:    r.TenantID,
		IsEnabled:   r.IsEnabled,
		Rules:       []model.FeatureFlagRule{},
		Metadata:    map[string]string{},
		CreatedBy:   r.CreatedBy,
		UpdatedBy:   r.UpdatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := unmarshalJSON(r.Rules, &flag.Rules); err != nil {
		return nil, err
	}
	if len(r.Schedule) > 0 {
		var s model.FeatureFlagSchedule
		if err := unmarshalJSON(r.Schedule, &s); err != nil {
			return nil, err
		}
		flag.Schedule = &s
	}
	if err := unmarshalJSON(r.Metadata, &flag.Metadata); err != nil {
		return nil, err
	}
	return flag, nil
}

// flagJSONColumns はフラグの JSONB カラムをまとめて直列化する。
func flagJSONColumns(flag *model.FeatureFlag) (rules, schedule, metadata interface{}, err error) {
	if flag.Rules == nil {
		rules = []byte("[]")
	} else if rules, err = nullableJSON(flag.Rules, false); err != nil {
		return nil, nil, nil, err
	}
	if schedule, err = nullableJSON(flag.Schedule, flag.Schedule == nil); err != nil {
		return nil, nil, nil, err
	}
	if flag.Metadata == nil {
		metadata = []byte("{}")
	} else if metadata, err = nullableJSON(flag.Metadata, false); err != nil {
		return nil, nil, nil, err
	}
	return rules, schedule, metadata, nil
}

// FeatureFlagPostgresRepository は FeatureFlagRepository の PostgreSQL 実装。
type FeatureFlagPostgresRepository struct {
	db *persistence.DB
}

// NewFeatureFlagPostgresRepository は新しい FeatureFlagPostgresRepository を作成する。
func NewFeatureFlagPostgresRepository(db *persistence.DB) *FeatureFlagPostgresRepository {
	return &FeatureFlagPostgresRepository{db: db}
}

func (r *FeatureFlagPostgresRepository) GetByID(ctx context.Context, id string) (*model.FeatureFlag, error) {
	return r.get(ctx, `SELECT `+flagColumns+` FROM feature_flags WHERE id = $1`, id)
}

func (r *FeatureFlagPostgresRepository) GetByName(ctx context.Context, scope model.Scope, name string) (*model.FeatureFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM feature_flags
	           WHERE environment = $1 AND application = $2 AND tenant_id = $3 AND name = $4`
	return r.get(ctx, query, scope.Environment, scope.Application, scope.TenantID, name)
}

func (r *FeatureFlagPostgresRepository) get(ctx context.Context, query string, args ...interface{}) (*model.FeatureFlag, error) {
	var row flagRow
	if err := r.db.Conn().GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feature flag: %w", err)
	}
	return row.toModel()
}

func (r *FeatureFlagPostgresRepository) List(ctx context.Context, scope model.Scope) ([]*model.FeatureFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM feature_flags
	           WHERE environment = $1 AND application = $2 AND tenant_id = $3 ORDER BY name ASC`
	var rows []flagRow
	if err := r.db.Conn().SelectContext(ctx, &rows, query, scope.Environment, scope.Application, scope.TenantID); err != nil {
		return nil, fmt.Errorf("failed to query feature flags: %w", err)
	}
	flags := make([]*model.FeatureFlag, 0, len(rows))
	for _, row := range rows {
		flag, err := row.toModel()
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}
	return flags, nil
}

func (r *FeatureFlagPostgresRepository) Create(ctx context.Context, flag *model.FeatureFlag) error {
	rules, schedule, metadata, err := flagJSONColumns(flag)
	if err != nil {
		return err
	}
	query := `INSERT INTO feature_flags (` + flagColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = r.db.Conn().ExecContext(ctx, query,
		flag.ID, flag.Name, flag.Description, flag.Environment, flag.Application, flag.TenantID,
		flag.IsEnabled, rules, schedule, metadata, flag.CreatedBy, flag.UpdatedBy, flag.CreatedAt, flag.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert feature flag: %w", err)
	}
	return nil
}

func (r *FeatureFlagPostgresRepository) Update(ctx context.Context, flag *model.FeatureFlag) error {
	rules, schedule, metadata, err := flagJSONColumns(flag)
	if err != nil {
		return err
	}
	query := `UPDATE feature_flags
	           SET description = $1, is_enabled = $2, rules = $3, schedule = $4, metadata = $5,
	               updated_by = $6, updated_at = $7
	           WHERE id = $8`
	result, err := r.db.Conn().ExecContext(ctx, query,
		flag.Description, flag.IsEnabled, rules, schedule, metadata, flag.UpdatedBy, flag.UpdatedAt, flag.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update feature flag: %w", err)
	}
	return requireAffected(result)
}

func (r *FeatureFlagPostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx, `DELETE FROM feature_flags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feature flag: %w", err)
	}
	return requireAffected(result)
}

// requireAffected は 1 行も更新されなかった場合に ErrNotFound を返す。
func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
