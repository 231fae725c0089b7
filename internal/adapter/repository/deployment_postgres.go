package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/persistence"
)

const deploymentColumns = `id, name, description, environment, application, tenant_id, status,
	created_by, deployed_by, created_at, deployed_at, completed_at, rollback_reason`

const deploymentItemColumns = `id, deployment_id, position, configuration_id, action, old_value, new_value,
	encrypted, status, error_message, processed_at, deleted_entry`

type deploymentRow struct {
	ID             string       `db:"id"`
	Name           string       `db:"name"`
	Description    string       `db:"description"`
	Environment    string       `db:"environment"`
	Application    string       `db:"application"`
	TenantID       string       `db:"tenant_id"`
	Status         string       `db:"status"`
	CreatedBy      string       `db:"created_by"`
	DeployedBy     string       `db:"deployed_by"`
	CreatedAt      time.Time    `db:"created_at"`
	DeployedAt     sql.NullTime `db:"deployed_at"`
	CompletedAt    sql.NullTime `db:"completed_at"`
	RollbackReason string       `db:"rollback_reason"`
}

func (r deploymentRow) toModel() *model.Deployment {
	return &model.Deployment{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Environment:    r.Environment,
		Application:    r.Application,
		TenantID:       r.TenantID,
		Status:         model.DeploymentStatus(r.Status),
		Items:          []model.DeploymentItem{},
		CreatedBy:      r.CreatedBy,
		DeployedBy:     r.DeployedBy,
		CreatedAt:      r.CreatedAt,
		DeployedAt:     nullTime(r.DeployedAt),
		CompletedAt:    nullTime(r.CompletedAt),
		RollbackReason: r.RollbackReason,
	}
}

type deploymentItemRow struct {
	ID              string         `db:"id"`
	DeploymentID    string         `db:"deployment_id"`
	Position        int            `db:"position"`
	ConfigurationID string         `db:"configuration_id"`
	Action          string         `db:"action"`
	OldValue        sql.NullString `db:"old_value"`
	NewValue        sql.NullString `db:"new_value"`
	Encrypted       bool           `db:"encrypted"`
	Status          string         `db:"status"`
	ErrorMessage    string         `db:"error_message"`
	ProcessedAt     sql.NullTime   `db:"processed_at"`
	DeletedEntry    []byte         `db:"deleted_entry"`
}

func (r deploymentItemRow) toModel() (model.DeploymentItem, error) {
	item := model.DeploymentItem{
		ID:              r.ID,
		ConfigurationID: r.ConfigurationID,
		Action:          model.DeploymentAction(r.Action),
		OldValue:        nullString(r.OldValue),
		NewValue:        nullString(r.NewValue),
		Encrypted:       r.Encrypted,
		Status:          model.ItemStatus(r.Status),
		ErrorMessage:    r.ErrorMessage,
		ProcessedAt:     nullTime(r.ProcessedAt),
	}
	if len(r.DeletedEntry) > 0 {
		var e model.ConfigEntry
		if err := unmarshalJSON(r.DeletedEntry, &e); err != nil {
			return item, err
		}
		item.DeletedEntry = &e
	}
	return item, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// DeploymentPostgresRepository は DeploymentRepository の PostgreSQL 実装。
// 項目は deployment_items に定義順 (position) で保存する。
type DeploymentPostgresRepository struct {
	db *persistence.DB
}

// NewDeploymentPostgresRepository は新しい DeploymentPostgresRepository を作成する。
func NewDeploymentPostgresRepository(db *persistence.DB) *DeploymentPostgresRepository {
	return &DeploymentPostgresRepository{db: db}
}

func (r *DeploymentPostgresRepository) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	var row deploymentRow
	if err := r.db.Conn().GetContext(ctx, &row, `SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	d := row.toModel()
	if err := r.loadItems(ctx, []*model.Deployment{d}); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DeploymentPostgresRepository) List(ctx context.Context, params repository.DeploymentListParams) ([]*model.Deployment, int, error) {
	w := &whereBuilder{}
	if params.Environment != "" {
		w.add("environment = $%d", params.Environment)
	}
	if params.Application != "" {
		w.add("application = $%d", params.Application)
	}
	if params.Status != "" {
		w.add("status = $%d", string(params.Status))
	}

	var totalCount int
	if err := r.db.Conn().GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM deployments"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count deployments: %w", err)
	}

	limit, args := w.limit(params.Page, params.PageSize)
	var rows []deploymentRow
	query := "SELECT " + deploymentColumns + " FROM deployments" + w.clause() + " ORDER BY created_at DESC" + limit
	if err := r.db.Conn().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query deployments: %w", err)
	}

	deployments := make([]*model.Deployment, 0, len(rows))
	for _, row := range rows {
		deployments = append(deployments, row.toModel())
	}
	if err := r.loadItems(ctx, deployments); err != nil {
		return nil, 0, err
	}
	return deployments, totalCount, nil
}

// loadItems は deployments の項目を 1 クエリで読み込む。
func (r *DeploymentPostgresRepository) loadItems(ctx context.Context, deployments []*model.Deployment) error {
	if len(deployments) == 0 {
		return nil
	}
	byID := make(map[string]*model.Deployment, len(deployments))
	ids := make([]string, 0, len(deployments))
	for _, d := range deployments {
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	var rows []deploymentItemRow
	query := `SELECT ` + deploymentItemColumns + ` FROM deployment_items
	           WHERE deployment_id = ANY($1) ORDER BY deployment_id, position`
	if err := r.db.Conn().SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to query deployment items: %w", err)
	}
	for _, row := range rows {
		item, err := row.toModel()
		if err != nil {
			return err
		}
		if d, ok := byID[row.DeploymentID]; ok {
			d.Items = append(d.Items, item)
		}
	}
	return nil
}

func (r *DeploymentPostgresRepository) Create(ctx context.Context, d *model.Deployment) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO deployments (` + deploymentColumns + `)
		           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
		if _, err := tx.ExecContext(ctx, query,
			d.ID, d.Name, d.Description, d.Environment, d.Application, d.TenantID, string(d.Status),
			d.CreatedBy, d.DeployedBy, d.CreatedAt, d.DeployedAt, d.CompletedAt, d.RollbackReason,
		); err != nil {
			if isUniqueViolation(err) {
				return repository.ErrAlreadyExists
			}
			return fmt.Errorf("failed to insert deployment: %w", err)
		}
		return insertItems(ctx, tx, d)
	})
}

// Update はステータスが expectedStatus の場合だけデプロイメントと項目を保存する。
func (r *DeploymentPostgresRepository) Update(ctx context.Context, d *model.Deployment, expectedStatus model.DeploymentStatus) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `UPDATE deployments
		           SET status = $1, deployed_by = $2, deployed_at = $3, completed_at = $4, rollback_reason = $5
		           WHERE id = $6 AND status = $7`
		result, err := tx.ExecContext(ctx, query,
			string(d.Status), d.DeployedBy, d.DeployedAt, d.CompletedAt, d.RollbackReason,
			d.ID, string(expectedStatus),
		)
		if err != nil {
			return fmt.Errorf("failed to update deployment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM deployments WHERE id = $1)`, d.ID); err != nil {
				return fmt.Errorf("failed to check deployment: %w", err)
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrStatusConflict
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM deployment_items WHERE deployment_id = $1`, d.ID); err != nil {
			return fmt.Errorf("failed to replace deployment items: %w", err)
		}
		return insertItems(ctx, tx, d)
	})
}

func insertItems(ctx context.Context, tx *sqlx.Tx, d *model.Deployment) error {
	query := `INSERT INTO deployment_items (` + deploymentItemColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for i, item := range d.Items {
		deleted, err := nullableJSON(item.DeletedEntry, item.DeletedEntry == nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			item.ID, d.ID, i, item.ConfigurationID, string(item.Action), item.OldValue, item.NewValue,
			item.Encrypted, string(item.Status), item.ErrorMessage, item.ProcessedAt, deleted,
		); err != nil {
			return fmt.Errorf("failed to insert deployment item: %w", err)
		}
	}
	return nil
}
