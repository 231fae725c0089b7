package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/presenter"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// SnapshotHandler はスナップショット関連の REST ハンドラー。
type SnapshotHandler struct {
	createUC  *usecase.CreateSnapshotUseCase
	getUC     *usecase.GetSnapshotUseCase
	restoreUC *usecase.RestoreSnapshotUseCase
}

// NewSnapshotHandler は新しい SnapshotHandler を作成する。
func NewSnapshotHandler(
	createUC *usecase.CreateSnapshotUseCase,
	getUC *usecase.GetSnapshotUseCase,
	restoreUC *usecase.RestoreSnapshotUseCase,
) *SnapshotHandler {
	return &SnapshotHandler{createUC: createUC, getUC: getUC, restoreUC: restoreUC}
}

// RegisterRoutes はスナップショットのルートを登録する。
func (h *SnapshotHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/snapshots", h.CreateSnapshot)
	v1.GET("/snapshots", h.ListSnapshots)
	v1.GET("/snapshots/:id", h.GetSnapshot)
	v1.POST("/snapshots/:id/restore", h.RestoreSnapshot)
}

// CreateSnapshot は POST /api/v1/snapshots のハンドラー。
func (h *SnapshotHandler) CreateSnapshot(c *gin.Context) {
	var input usecase.CreateSnapshotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		WriteBindError(c, err)
		return
	}
	input.CreatedBy = actor(c)

	s, err := h.createUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// ListSnapshots は GET /api/v1/snapshots のハンドラー。
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	snapshots, err := h.getUC.List(c.Request.Context(), model.Scope{
		Environment: c.Query("environment"),
		Application: c.Query("application"),
		TenantID:    c.Query("tenant_id"),
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}

	resp := presenter.ListSnapshotsResponse{Snapshots: make([]presenter.SnapshotSummaryResponse, 0, len(snapshots))}
	for _, s := range snapshots {
		resp.Snapshots = append(resp.Snapshots, presenter.NewSnapshotSummary(s))
	}
	c.JSON(http.StatusOK, resp)
}

// GetSnapshot は GET /api/v1/snapshots/:id のハンドラー。
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	s, err := h.getUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// RestoreSnapshot は POST /api/v1/snapshots/:id/restore のハンドラー。
func (h *SnapshotHandler) RestoreSnapshot(c *gin.Context) {
	output, err := h.restoreUC.Execute(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}
