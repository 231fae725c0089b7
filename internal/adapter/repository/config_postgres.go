package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/persistence"
)

const configColumns = `id, key, value, environment, application, tenant_id, is_active, is_encrypted, version,
	validation_rule, tags, description, created_by, updated_by, created_at, updated_at`

// configRow は config_entries の 1 行。
type configRow struct {
	ID             string         `db:"id"`
	Key            string         `db:"key"`
	Value          string         `db:"value"`
	Environment    string         `db:"environment"`
	Application    string         `db:"application"`
	TenantID       string         `db:"tenant_id"`
	IsActive       bool           `db:"is_active"`
	IsEncrypted    bool           `db:"is_encrypted"`
	Version        int            `db:"version"`
	ValidationRule []byte         `db:"validation_rule"`
	Tags           pq.StringArray `db:"tags"`
	Description    string         `db:"description"`
	CreatedBy      string         `db:"created_by"`
	UpdatedBy      string         `db:"updated_by"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r configRow) toModel() (*model.ConfigEntry, error) {
	entry := &model.ConfigEntry{
		ID:          r.ID,
		Key:         r.Key,
		Value:       r.Value,
		Environment: r.Environment,
		Application: r.Application,
		TenantID:    r.TenantID,
		IsActive:    r.IsActive,
		IsEncrypted: r.IsEncrypted,
		Version:     r.Version,
		Tags:        []string(r.Tags),
		Description: r.Description,
		CreatedBy:   r.CreatedBy,
		UpdatedBy:   r.UpdatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.ValidationRule) > 0 {
		var rule model.ValidationRule
		if err := unmarshalJSON(r.ValidationRule, &rule); err != nil {
			return nil, err
		}
		entry.ValidationRule = &rule
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	return entry, nil
}

// ConfigPostgresRepository は ConfigRepository の PostgreSQL 実装。
type ConfigPostgresRepository struct {
	db *persistence.DB
}

// NewConfigPostgresRepository は新しい ConfigPostgresRepository を作成する。
func NewConfigPostgresRepository(db *persistence.DB) *ConfigPostgresRepository {
	return &ConfigPostgresRepository{db: db}
}

// GetByID は ID で設定エントリを取得する。
func (r *ConfigPostgresRepository) GetByID(ctx context.Context, id string) (*model.ConfigEntry, error) {
	query := `SELECT ` + configColumns + ` FROM config_entries WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByKey はスコープと key で設定エントリを取得する。
func (r *ConfigPostgresRepository) GetByKey(ctx context.Context, scope model.Scope, key string) (*model.ConfigEntry, error) {
	query := `SELECT ` + configColumns + ` FROM config_entries
	           WHERE environment = $1 AND application = $2 AND tenant_id = $3 AND key = $4`
	return r.get(ctx, query, scope.Environment, scope.Application, scope.TenantID, key)
}

func (r *ConfigPostgresRepository) get(ctx context.Context, query string, args ...interface{}) (*model.ConfigEntry, error) {
	var row configRow
	if err := r.db.Conn().GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get config entry: %w", err)
	}
	return row.toModel()
}

// List はスコープ内の設定エントリを key の昇順で一覧取得する。
func (r *ConfigPostgresRepository) List(ctx context.Context, params repository.ConfigListParams) ([]*model.ConfigEntry, int, error) {
	w := &whereBuilder{}
	w.add("environment = $%d", params.Scope.Environment)
	w.add("application = $%d", params.Scope.Application)
	w.add("tenant_id = $%d", params.Scope.TenantID)
	if params.Search != "" {
		w.add("(key ILIKE $%[1]d OR description ILIKE $%[1]d)", "%"+params.Search+"%")
	}

	// count クエリ
	var totalCount int
	if err := r.db.Conn().GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM config_entries"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count config entries: %w", err)
	}

	// data クエリ
	limit, args := w.limit(params.Page, params.PageSize)
	query := "SELECT " + configColumns + " FROM config_entries" + w.clause() + " ORDER BY key ASC" + limit
	var rows []configRow
	if err := r.db.Conn().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query config entries: %w", err)
	}

	entries := make([]*model.ConfigEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, totalCount, nil
}

// Create は設定エントリを PostgreSQL に保存する。
func (r *ConfigPostgresRepository) Create(ctx context.Context, entry *model.ConfigEntry) error {
	rule, err := nullableJSON(entry.ValidationRule, entry.ValidationRule == nil)
	if err != nil {
		return err
	}

	query := `INSERT INTO config_entries (` + configColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = r.db.Conn().ExecContext(ctx, query,
		entry.ID, entry.Key, entry.Value, entry.Environment, entry.Application, entry.TenantID,
		entry.IsActive, entry.IsEncrypted, entry.Version, rule, pq.Array(entry.Tags), entry.Description,
		entry.CreatedBy, entry.UpdatedBy, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert config entry: %w", err)
	}
	return nil
}

// Update は設定エントリを更新する。バージョンが一致しない場合は ErrVersionConflict を返す。
func (r *ConfigPostgresRepository) Update(ctx context.Context, entry *model.ConfigEntry, expectedVersion int) error {
	rule, err := nullableJSON(entry.ValidationRule, entry.ValidationRule == nil)
	if err != nil {
		return err
	}

	query := `UPDATE config_entries
	           SET value = $1, is_active = $2, is_encrypted = $3, version = $4, validation_rule = $5,
	               tags = $6, description = $7, updated_by = $8, updated_at = $9
	           WHERE id = $10 AND version = $11`
	result, err := r.db.Conn().ExecContext(ctx, query,
		entry.Value, entry.IsActive, entry.IsEncrypted, entry.Version, rule,
		pq.Array(entry.Tags), entry.Description, entry.UpdatedBy, entry.UpdatedAt,
		entry.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update config entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.Conn().GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM config_entries WHERE id = $1)`, entry.ID); err != nil {
			return fmt.Errorf("failed to check config entry: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	return nil
}

// Delete は設定エントリを物理削除する。
func (r *ConfigPostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx, `DELETE FROM config_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete config entry: %w", err)
	}
	return requireAffected(result)
}
