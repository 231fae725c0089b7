package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/presenter"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// DeploymentHandler はデプロイメント関連の REST ハンドラー。
type DeploymentHandler struct {
	createUC   *usecase.CreateDeploymentUseCase
	executeUC  *usecase.ExecuteDeploymentUseCase
	rollbackUC *usecase.RollbackDeploymentUseCase
	cancelUC   *usecase.CancelDeploymentUseCase
	getUC      *usecase.GetDeploymentUseCase
	listUC     *usecase.ListDeploymentsUseCase
}

// NewDeploymentHandler は新しい DeploymentHandler を作成する。
func NewDeploymentHandler(
	createUC *usecase.CreateDeploymentUseCase,
	executeUC *usecase.ExecuteDeploymentUseCase,
	rollbackUC *usecase.RollbackDeploymentUseCase,
	cancelUC *usecase.CancelDeploymentUseCase,
	getUC *usecase.GetDeploymentUseCase,
	listUC *usecase.ListDeploymentsUseCase,
) *DeploymentHandler {
	return &DeploymentHandler{
		createUC:   createUC,
		executeUC:  executeUC,
		rollbackUC: rollbackUC,
		cancelUC:   cancelUC,
		getUC:      getUC,
		listUC:     listUC,
	}
}

// RegisterRoutes はデプロイメントのルートを登録する。
func (h *DeploymentHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/deployments", h.CreateDeployment)
	v1.GET("/deployments", h.ListDeployments)
	v1.GET("/deployments/:id", h.GetDeployment)
	v1.GET("/deployments/:id/status", h.GetDeploymentStatus)
	v1.POST("/deployments/:id/execute", h.ExecuteDeployment)
	v1.POST("/deployments/:id/rollback", h.RollbackDeployment)
	v1.POST("/deployments/:id/cancel", h.CancelDeployment)
}

// CreateDeployment は POST /api/v1/deployments のハンドラー。
func (h *DeploymentHandler) CreateDeployment(c *gin.Context) {
	var input usecase.CreateDeploymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		WriteBindError(c, err)
		return
	}
	input.CreatedBy = actor(c)

	d, err := h.createUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presenter.NewDeploymentResponse(d))
}

// ListDeployments は GET /api/v1/deployments のハンドラー。
func (h *DeploymentHandler) ListDeployments(c *gin.Context) {
	status := model.DeploymentStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		WriteError(c, http.StatusBadRequest, CodeValidationFailed, "unknown deployment status: "+string(status))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	output, err := h.listUC.Execute(c.Request.Context(), usecase.ListDeploymentsInput{
		Environment: c.Query("environment"),
		Application: c.Query("application"),
		Status:      status,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, presenter.ListDeploymentsResponse{
		Deployments: presenter.NewDeploymentResponses(output.Deployments),
		Pagination:  presenter.NewPagination(output.TotalCount, output.Page, output.PageSize, output.HasNext),
	})
}

// GetDeployment は GET /api/v1/deployments/:id のハンドラー。
func (h *DeploymentHandler) GetDeployment(c *gin.Context) {
	d, err := h.getUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.NewDeploymentResponse(d))
}

// GetDeploymentStatus は GET /api/v1/deployments/:id/status のハンドラー。
// 存在しない ID は PENDING を返す。
func (h *DeploymentHandler) GetDeploymentStatus(c *gin.Context) {
	id := c.Param("id")
	status, err := h.getUC.Status(c.Request.Context(), id)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.DeploymentStatusResponse{ID: id, Status: status})
}

// ExecuteDeployment は POST /api/v1/deployments/:id/execute のハンドラー。
// 項目の一部が失敗した場合も 200 で FAILED のデプロイメントを返す。
func (h *DeploymentHandler) ExecuteDeployment(c *gin.Context) {
	d, err := h.executeUC.Execute(c.Request.Context(), usecase.ExecuteDeploymentInput{
		ID:         c.Param("id"),
		DeployedBy: actor(c),
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.NewDeploymentResponse(d))
}

// RollbackDeployment は POST /api/v1/deployments/:id/rollback のハンドラー。
func (h *DeploymentHandler) RollbackDeployment(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteBindError(c, err)
		return
	}

	d, err := h.rollbackUC.Execute(c.Request.Context(), usecase.RollbackDeploymentInput{
		ID:           c.Param("id"),
		Reason:       req.Reason,
		RolledBackBy: actor(c),
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.NewDeploymentResponse(d))
}

// CancelDeployment は POST /api/v1/deployments/:id/cancel のハンドラー。
func (h *DeploymentHandler) CancelDeployment(c *gin.Context) {
	d, err := h.cancelUC.Execute(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.NewDeploymentResponse(d))
}
