package persistence

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS _migrations (
    version    TEXT        PRIMARY KEY,
    name       TEXT        NOT NULL,
    checksum   TEXT        NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migration は 1 件の up マイグレーション。
type Migration struct {
	Version string
	Name    string
	Content string
}

// ParseFilename は NNN_name.up.sql 形式のファイル名を分解する。up 以外は ok=false。
func ParseFilename(filename string) (version, name string, ok bool) {
	stem, found := strings.CutSuffix(filename, ".up.sql")
	if !found {
		return "", "", false
	}
	idx := strings.Index(stem, "_")
	if idx <= 0 || idx >= len(stem)-1 {
		return "", "", false
	}
	return stem[:idx], stem[idx+1:], true
}

// Migrations は埋め込まれた up マイグレーションをバージョン順に返す。
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	var out []Migration
	for _, e := range entries {
		version, name, ok := ParseFilename(e.Name())
		if !ok {
			continue
		}
		content, err := fs.ReadFile(migrationFS, "migrations/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, Content: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Checksum はマイグレーション内容の SHA-256 を返す。
func Checksum(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

// Migrate は未適用のマイグレーションを順に適用し、適用件数を返す。
func (db *DB) Migrate(ctx context.Context) (int, error) {
	if _, err := db.conn.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var versions []string
	if err := db.conn.SelectContext(ctx, &versions, "SELECT version FROM _migrations"); err != nil {
		return 0, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	migrations, err := Migrations()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Content); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO _migrations (version, name, checksum) VALUES ($1, $2, $3)",
				m.Version, m.Name, Checksum(m.Content),
			); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
