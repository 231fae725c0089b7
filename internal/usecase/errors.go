package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

var (
	// ErrNotFound は参照先が存在しない場合のエラー。
	ErrNotFound = repository.ErrNotFound

	// ErrVersionConflict はバージョン競合エラー。
	ErrVersionConflict = repository.ErrVersionConflict

	// ErrValidationFailed は入力、または設定値の検証に失敗した場合のエラー。
	ErrValidationFailed = errors.New("validation failed")

	// ErrIllegalStateTransition はデプロイメントの状態遷移が許可されない場合のエラー。
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// ErrConfigAlreadyExists は同じスコープに同じ key の設定が存在する場合のエラー。
	ErrConfigAlreadyExists = errors.New("configuration already exists")

	// ErrFlagAlreadyExists は同じスコープに同じ名前のフラグが存在する場合のエラー。
	ErrFlagAlreadyExists = errors.New("feature flag already exists")

	// ErrEncryptionUnavailable は暗号化エントリを扱う暗号器が構成されていない場合のエラー。
	ErrEncryptionUnavailable = errors.New("encryption is not configured")
)

// NotFoundError はエンティティが見つからない場合のエラー。
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError は検証エラー。違反内容をすべて保持する。
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// newValidationError は単一メッセージの ValidationError を作成する。
func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Errors: []string{fmt.Sprintf(format, args...)}}
}

// IllegalStateTransitionError はデプロイメントの不正な状態遷移エラー。
type IllegalStateTransitionError struct {
	DeploymentID string
	From         model.DeploymentStatus
	To           model.DeploymentStatus
}

func (e *IllegalStateTransitionError) Error() string {
	return fmt.Sprintf("deployment %s cannot transition from %s to %s", e.DeploymentID, e.From, e.To)
}

func (e *IllegalStateTransitionError) Is(target error) bool {
	return target == ErrIllegalStateTransition
}

// notFoundOr は repository.ErrNotFound を NotFoundError に変換し、それ以外はラップして返す。
func notFoundOr(err error, entity, id, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
