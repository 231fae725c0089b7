package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/persistence"
)

const auditColumns = `id, entity_type, entity_id, action, old_value, new_value, user_id, metadata, timestamp`

type auditRow struct {
	ID         string         `db:"id"`
	EntityType string         `db:"entity_type"`
	EntityID   string         `db:"entity_id"`
	Action     string         `db:"action"`
	OldValue   sql.NullString `db:"old_value"`
	NewValue   sql.NullString `db:"new_value"`
	UserID     string         `db:"user_id"`
	Metadata   []byte         `db:"metadata"`
	Timestamp  time.Time      `db:"timestamp"`
}

// AuditLogPostgresRepository は AuditLogRepository の PostgreSQL 実装。
type AuditLogPostgresRepository struct {
	db *persistence.DB
}

// NewAuditLogPostgresRepository は新しい AuditLogPostgresRepository を作成する。
func NewAuditLogPostgresRepository(db *persistence.DB) *AuditLogPostgresRepository {
	return &AuditLogPostgresRepository{db: db}
}

// Create は監査ログエントリを PostgreSQL に保存する。
func (r *AuditLogPostgresRepository) Create(ctx context.Context, entry *model.AuditLogEntry) error {
	metadataJSON, err := nullableJSON(nonNilStrings(entry.Metadata), false)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (` + auditColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.Conn().ExecContext(ctx, query,
		entry.ID, string(entry.EntityType), entry.EntityID, entry.Action,
		entry.OldValue, entry.NewValue, entry.UserID, metadataJSON, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search は監査ログを検索する。
func (r *AuditLogPostgresRepository) Search(ctx context.Context, params repository.AuditLogSearchParams) ([]*model.AuditLogEntry, int, error) {
	w := &whereBuilder{}
	if params.EntityType != "" {
		w.add("entity_type = $%d", string(params.EntityType))
	}
	if params.EntityID != "" {
		w.add("entity_id = $%d", params.EntityID)
	}
	if params.Action != "" {
		w.add("action = $%d", params.Action)
	}
	if params.UserID != "" {
		w.add("user_id = $%d", params.UserID)
	}
	if params.From != nil {
		w.add("timestamp >= $%d", *params.From)
	}
	if params.To != nil {
		w.add("timestamp <= $%d", *params.To)
	}

	// count クエリ
	var totalCount int
	if err := r.db.Conn().GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM audit_logs"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	// data クエリ
	limit, args := w.limit(params.Page, params.PageSize)
	query := "SELECT " + auditColumns + " FROM audit_logs" + w.clause() + " ORDER BY timestamp DESC" + limit
	var rows []auditRow
	if err := r.db.Conn().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}

	logs := make([]*model.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		entry := &model.AuditLogEntry{
			ID:         row.ID,
			EntityType: model.EntityType(row.EntityType),
			EntityID:   row.EntityID,
			Action:     row.Action,
			OldValue:   nullString(row.OldValue),
			NewValue:   nullString(row.NewValue),
			UserID:     row.UserID,
			Metadata:   map[string]string{},
			Timestamp:  row.Timestamp,
		}
		if err := unmarshalJSON(row.Metadata, &entry.Metadata); err != nil {
			entry.Metadata = map[string]string{}
		}
		logs = append(logs, entry)
	}
	return logs, totalCount, nil
}
