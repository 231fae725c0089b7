package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/presenter"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// AuditHandler は監査ログ検索の REST ハンドラー。
type AuditHandler struct {
	searchUC *usecase.SearchAuditLogsUseCase
}

// NewAuditHandler は新しい AuditHandler を作成する。
func NewAuditHandler(searchUC *usecase.SearchAuditLogsUseCase) *AuditHandler {
	return &AuditHandler{searchUC: searchUC}
}

// RegisterRoutes は監査ログのルートを登録する。
func (h *AuditHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.GET("/audit-logs", h.SearchAuditLogs)
}

// SearchAuditLogs は GET /api/v1/audit-logs のハンドラー。from / to は RFC3339。
func (h *AuditHandler) SearchAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	input := usecase.SearchAuditLogsInput{
		Page:       page,
		PageSize:   pageSize,
		EntityType: model.EntityType(c.Query("entity_type")),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		UserID:     c.Query("user_id"),
	}

	var err error
	if input.From, err = parseTimeQuery(c, "from"); err != nil {
		WriteError(c, http.StatusBadRequest, CodeValidationFailed, "from must be RFC3339")
		return
	}
	if input.To, err = parseTimeQuery(c, "to"); err != nil {
		WriteError(c, http.StatusBadRequest, CodeValidationFailed, "to must be RFC3339")
		return
	}

	output, err := h.searchUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, presenter.SearchAuditLogsResponse{
		Logs:       output.Logs,
		Pagination: presenter.NewPagination(output.TotalCount, output.Page, output.PageSize, output.HasNext),
	})
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
