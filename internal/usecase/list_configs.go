package usecase

import (
	"context"
	"fmt"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// ListConfigsUseCase は設定エントリ一覧取得ユースケース。
type ListConfigsUseCase struct {
	configRepo repository.ConfigRepository
	cipher     ValueCipher
}

// NewListConfigsUseCase は新しい ListConfigsUseCase を作成する。
func NewListConfigsUseCase(configRepo repository.ConfigRepository, cipher ValueCipher) *ListConfigsUseCase {
	return &ListConfigsUseCase{
		configRepo: configRepo,
		cipher:     cipher,
	}
}

// ListConfigsInput は設定エントリ一覧取得の入力パラメータ。PageSize が 0 の場合は全件を返す。
type ListConfigsInput struct {
	Environment string
	Application string
	TenantID    string
	Search      string
	Page        int
	PageSize    int
}

// ListConfigsOutput は設定エントリ一覧取得の出力。
type ListConfigsOutput struct {
	Entries    []*model.ConfigEntry
	TotalCount int
	Page       int
	PageSize   int
	HasNext    bool
}

// Execute はスコープ内の設定エントリを平文で一覧取得する。
func (uc *ListConfigsUseCase) Execute(ctx context.Context, input ListConfigsInput) (*ListConfigsOutput, error) {
	if input.Environment == "" || input.Application == "" {
		return nil, newValidationError("environment and application are required")
	}
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize < 0 {
		input.PageSize = 0
	}
	if input.PageSize > 100 {
		input.PageSize = 100
	}

	stored, totalCount, err := uc.configRepo.List(ctx, repository.ConfigListParams{
		Scope: model.Scope{
			Environment: input.Environment,
			Application: input.Application,
			TenantID:    input.TenantID,
		},
		Search:   input.Search,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list config entries: %w", err)
	}

	entries := make([]*model.ConfigEntry, 0, len(stored))
	for _, s := range stored {
		e, err := decryptEntry(uc.cipher, s)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return &ListConfigsOutput{
		Entries:    entries,
		TotalCount: totalCount,
		Page:       input.Page,
		PageSize:   input.PageSize,
		HasNext:    input.PageSize > 0 && input.Page*input.PageSize < totalCount,
	}, nil
}
