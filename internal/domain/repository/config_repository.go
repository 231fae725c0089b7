package repository

import (
	"context"
	"errors"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

var (
	// ErrNotFound は対象が存在しない場合のエラー。
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists は一意制約に違反した場合のエラー。
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict は楽観的排他制御で競合した場合のエラー。
	ErrVersionConflict = errors.New("version conflict")
)

// ConfigRepository は設定エントリの永続化インターフェース。
// Value は保存形式（暗号化エントリは暗号文）のまま扱う。
type ConfigRepository interface {
	// GetByID は ID で設定エントリを取得する。存在しない場合は ErrNotFound を返す。
	GetByID(ctx context.Context, id string) (*model.ConfigEntry, error)

	// GetByKey はスコープと key で設定エントリを取得する。存在しない場合は ErrNotFound を返す。
	GetByKey(ctx context.Context, scope model.Scope, key string) (*model.ConfigEntry, error)

	// List はスコープ内の設定エントリを key の昇順で一覧取得する。
	List(ctx context.Context, params ConfigListParams) ([]*model.ConfigEntry, int, error)

	// Create は設定エントリを作成する。一意キーが重複する場合は ErrAlreadyExists を返す。
	Create(ctx context.Context, entry *model.ConfigEntry) error

	// Update は設定エントリを更新する。バージョンが一致しない場合は ErrVersionConflict を返す。
	Update(ctx context.Context, entry *model.ConfigEntry, expectedVersion int) error

	// Delete は設定エントリを物理削除する。
	Delete(ctx context.Context, id string) error
}

// ConfigListParams は設定エントリ一覧取得のパラメータ。
// PageSize が 0 の場合はスコープ内の全件を返す。
type ConfigListParams struct {
	Scope    model.Scope
	Search   string
	Page     int
	PageSize int
}
