package presenter

import (
	"time"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// PaginationResponse はページネーション情報のレスポンス。
type PaginationResponse struct {
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	HasNext    bool `json:"has_next"`
}

// NewPagination は PaginationResponse を作成する。
func NewPagination(totalCount, page, pageSize int, hasNext bool) PaginationResponse {
	return PaginationResponse{
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    hasNext,
	}
}

// ConfigEntryResponse は作成・更新された設定エントリと検証警告のレスポンス。
type ConfigEntryResponse struct {
	Entry    *model.ConfigEntry `json:"entry"`
	Warnings []string           `json:"warnings"`
}

// ListConfigsResponse は設定エントリ一覧の API レスポンス。
type ListConfigsResponse struct {
	Entries    []*model.ConfigEntry `json:"entries"`
	Pagination PaginationResponse   `json:"pagination"`
}

// ListFeatureFlagsResponse はフィーチャーフラグ一覧の API レスポンス。
type ListFeatureFlagsResponse struct {
	FeatureFlags []*model.FeatureFlag `json:"feature_flags"`
}

// ListDeploymentsResponse はデプロイメント一覧の API レスポンス。
type ListDeploymentsResponse struct {
	Deployments []*model.Deployment `json:"deployments"`
	Pagination  PaginationResponse  `json:"pagination"`
}

// NewDeploymentResponse は暗号化項目の値をマスクしたデプロイメントのコピーを返す。
func NewDeploymentResponse(d *model.Deployment) *model.Deployment {
	if d == nil {
		return nil
	}
	masked := d.Clone()
	for i := range masked.Items {
		item := &masked.Items[i]
		if !item.Encrypted {
			continue
		}
		item.OldValue = maskValue(item.OldValue)
		item.NewValue = maskValue(item.NewValue)
		if item.DeletedEntry != nil {
			item.DeletedEntry.Value = usecase.MaskedValue
		}
	}
	return masked
}

// NewDeploymentResponses は NewDeploymentResponse を一覧に適用する。
func NewDeploymentResponses(list []*model.Deployment) []*model.Deployment {
	out := make([]*model.Deployment, 0, len(list))
	for _, d := range list {
		out = append(out, NewDeploymentResponse(d))
	}
	return out
}

func maskValue(v *string) *string {
	if v == nil {
		return nil
	}
	masked := usecase.MaskedValue
	return &masked
}

// DeploymentStatusResponse はデプロイメントステータスの API レスポンス。
type DeploymentStatusResponse struct {
	ID     string                 `json:"id"`
	Status model.DeploymentStatus `json:"status"`
}

// SnapshotSummaryResponse はスナップショット一覧の要素。値本体は含めない。
type SnapshotSummaryResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Environment        string    `json:"environment"`
	Application        string    `json:"application"`
	TenantID           string    `json:"tenant_id,omitempty"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	ConfigurationCount int       `json:"configuration_count"`
	FeatureFlagCount   int       `json:"feature_flag_count"`
}

// NewSnapshotSummary はスナップショットから一覧用の要約を作成する。
func NewSnapshotSummary(s *model.ConfigurationSnapshot) SnapshotSummaryResponse {
	return SnapshotSummaryResponse{
		ID:                 s.ID,
		Name:               s.Name,
		Environment:        s.Environment,
		Application:        s.Application,
		TenantID:           s.TenantID,
		CreatedBy:          s.CreatedBy,
		CreatedAt:          s.CreatedAt,
		ConfigurationCount: len(s.ConfigurationData),
		FeatureFlagCount:   len(s.FeatureFlagData),
	}
}

// ListSnapshotsResponse はスナップショット一覧の API レスポンス。
type ListSnapshotsResponse struct {
	Snapshots []SnapshotSummaryResponse `json:"snapshots"`
}

// SearchAuditLogsResponse は監査ログ検索の API レスポンス。
type SearchAuditLogsResponse struct {
	Logs       []*model.AuditLogEntry `json:"logs"`
	Pagination PaginationResponse     `json:"pagination"`
}
