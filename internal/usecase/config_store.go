package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// MaskedValue は暗号化エントリの監査ログに記録する値。
const MaskedValue = "********"

// ValueCipher は設定値の暗号化・復号インターフェース。
type ValueCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// KeyLocker は同じ設定キーへの書き込みを直列化するロック。
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// lockKey はロックを取得する。locker が nil の場合は何もしない。
func lockKey(ctx context.Context, locker KeyLocker, key string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to lock configuration %s: %w", key, err)
	}
	return unlock, nil
}

// decryptEntry は保存形式のエントリを平文のコピーにして返す。
func decryptEntry(cipher ValueCipher, stored *model.ConfigEntry) (*model.ConfigEntry, error) {
	entry := stored.Clone()
	if !entry.IsEncrypted {
		return entry, nil
	}
	if cipher == nil {
		return nil, ErrEncryptionUnavailable
	}
	plain, err := cipher.Decrypt(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt configuration %s: %w", entry.Key, err)
	}
	entry.Value = plain
	return entry, nil
}

// encryptEntry は平文のエントリを保存形式のコピーにして返す。
func encryptEntry(cipher ValueCipher, plain *model.ConfigEntry) (*model.ConfigEntry, error) {
	entry := plain.Clone()
	if !entry.IsEncrypted {
		return entry, nil
	}
	if cipher == nil {
		return nil, ErrEncryptionUnavailable
	}
	sealed, err := cipher.Encrypt(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt configuration %s: %w", entry.Key, err)
	}
	entry.Value = sealed
	return entry, nil
}

// sealValue は平文を暗号文にする。
func sealValue(cipher ValueCipher, plain string) (string, error) {
	if cipher == nil {
		return "", ErrEncryptionUnavailable
	}
	sealed, err := cipher.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return sealed, nil
}

// openValue は暗号文を平文にする。
func openValue(cipher ValueCipher, sealed string) (string, error) {
	if cipher == nil {
		return "", ErrEncryptionUnavailable
	}
	plain, err := cipher.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return plain, nil
}

// itemAuditValue はデプロイメント項目の値を監査ログ向けに返す。暗号化項目はマスクする。
func itemAuditValue(item *model.DeploymentItem, value *string) *string {
	if value == nil {
		return nil
	}
	if item.Encrypted {
		return strPtr(MaskedValue)
	}
	return strPtr(*value)
}

// auditValue は監査ログに記録する値を返す。暗号化エントリはマスクする。
func auditValue(entry *model.ConfigEntry, value string) *string {
	if entry.IsEncrypted {
		return strPtr(MaskedValue)
	}
	return strPtr(value)
}

func orDefault(action, fallback string) string {
	if action == "" {
		return fallback
	}
	return action
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
