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

const snapshotColumns = `id, name, environment, application, tenant_id, created_by, created_at,
	configuration_data, feature_flag_data, encrypted_keys`

type snapshotRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Environment       string         `db:"environment"`
	Application       string         `db:"application"`
	TenantID          string         `db:"tenant_id"`
	CreatedBy         string         `db:"created_by"`
	CreatedAt         time.Time      `db:"created_at"`
	ConfigurationData []byte         `db:"configuration_data"`
	FeatureFlagData   []byte         `db:"feature_flag_data"`
	EncryptedKeys     pq.StringArray `db:"encrypted_keys"`
}

func (r snapshotRow) toModel() (*model.ConfigurationSnapshot, error) {
	s := &model.ConfigurationSnapshot{
		ID:                r.ID,
		Name:              r.Name,
		Environment:       r.Environment,
		Application:       r.Application,
		TenantID:          r.TenantID,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		ConfigurationData: map[string]string{},
		FeatureFlagData:   map[string]bool{},
		EncryptedKeys:     []string(r.EncryptedKeys),
	}
	if err := unmarshalJSON(r.ConfigurationData, &s.ConfigurationData); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.FeatureFlagData, &s.FeatureFlagData); err != nil {
		return nil, err
	}
	return s, nil
}

// SnapshotPostgresRepository は SnapshotRepository の PostgreSQL 実装。
type SnapshotPostgresRepository struct {
	db *persistence.DB
}

// NewSnapshotPostgresRepository は新しい SnapshotPostgresRepository を作成する。
func NewSnapshotPostgresRepository(db *persistence.DB) *SnapshotPostgresRepository {
	return &SnapshotPostgresRepository{db: db}
}

func (r *SnapshotPostgresRepository) Create(ctx context.Context, s *model.ConfigurationSnapshot) error {
	configData, err := nullableJSON(nonNilStrings(s.ConfigurationData), false)
	if err != nil {
		return err
	}
	flagData, err := nullableJSON(nonNilBools(s.FeatureFlagData), false)
	if err != nil {
		return err
	}
	keys := s.EncryptedKeys
	if keys == nil {
		keys = []string{}
	}

	query := `INSERT INTO configuration_snapshots (` + snapshotColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.db.Conn().ExecContext(ctx, query,
		s.ID, s.Name, s.Environment, s.Application, s.TenantID, s.CreatedBy, s.CreatedAt,
		configData, flagData, pq.Array(keys),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotPostgresRepository) GetByID(ctx context.Context, id string) (*model.ConfigurationSnapshot, error) {
	var row snapshotRow
	query := `SELECT ` + snapshotColumns + ` FROM configuration_snapshots WHERE id = $1`
	if err := r.db.Conn().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return row.toModel()
}

// List はスコープ内のスナップショットを作成日時の降順で返す。
func (r *SnapshotPostgresRepository) List(ctx context.Context, scope model.Scope) ([]*model.ConfigurationSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM configuration_snapshots
	           WHERE environment = $1 AND application = $2 AND tenant_id = $3 ORDER BY created_at DESC`
	var rows []snapshotRow
	if err := r.db.Conn().SelectContext(ctx, &rows, query, scope.Environment, scope.Application, scope.TenantID); err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	snapshots := make([]*model.ConfigurationSnapshot, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

func nonNilStrings(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilBools(m map[string]bool) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	return m
}
