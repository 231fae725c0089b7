package usecase

import (
	"context"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// GetConfigUseCase は設定エントリ取得ユースケース。
type GetConfigUseCase struct {
	configRepo repository.ConfigRepository
	cipher     ValueCipher
}

// NewGetConfigUseCase は新しい GetConfigUseCase を作成する。
func NewGetConfigUseCase(configRepo repository.ConfigRepository, cipher ValueCipher) *GetConfigUseCase {
	return &GetConfigUseCase{
		configRepo: configRepo,
		cipher:     cipher,
	}
}

// GetConfigInput は設定エントリ取得の入力パラメータ。
// ID を指定した場合は ID で、それ以外はスコープと Key で取得する。
type GetConfigInput struct {
	ID          string
	Key         string
	Environment string
	Application string
	TenantID    string
}

// Execute は設定エントリを平文で取得する。存在しない場合は NotFoundError を返す。
// テナントを指定した検索がグローバルスコープにフォールバックすることはない。
func (uc *GetConfigUseCase) Execute(ctx context.Context, input GetConfigInput) (*model.ConfigEntry, error) {
	var (
		entry *model.ConfigEntry
		err   error
	)
	if input.ID != "" {
		entry, err = uc.configRepo.GetByID(ctx, input.ID)
		if err != nil {
			return nil, notFoundOr(err, "configuration", input.ID, "get config entry")
		}
	} else {
		if input.Key == "" || input.Environment == "" || input.Application == "" {
			return nil, newValidationError("key, environment and application are required")
		}
		scope := model.Scope{Environment: input.Environment, Application: input.Application, TenantID: input.TenantID}
		entry, err = uc.configRepo.GetByKey(ctx, scope, input.Key)
		if err != nil {
			return nil, notFoundOr(err, "configuration", scope.String()+"/"+input.Key, "get config entry")
		}
	}
	return decryptEntry(uc.cipher, entry)
}
