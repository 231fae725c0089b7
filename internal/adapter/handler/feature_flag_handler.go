package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/presenter"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// FeatureFlagHandler はフィーチャーフラグ関連の REST ハンドラー。
type FeatureFlagHandler struct {
	createFlagUC   *usecase.CreateFeatureFlagUseCase
	getFlagUC      *usecase.GetFeatureFlagUseCase
	listFlagsUC    *usecase.ListFeatureFlagsUseCase
	updateFlagUC   *usecase.UpdateFeatureFlagUseCase
	deleteFlagUC   *usecase.DeleteFeatureFlagUseCase
	evaluateFlagUC *usecase.EvaluateFeatureFlagUseCase
}

// NewFeatureFlagHandler は新しい FeatureFlagHandler を作成する。
func NewFeatureFlagHandler(
	createFlagUC *usecase.CreateFeatureFlagUseCase,
	getFlagUC *usecase.GetFeatureFlagUseCase,
	listFlagsUC *usecase.ListFeatureFlagsUseCase,
	updateFlagUC *usecase.UpdateFeatureFlagUseCase,
	deleteFlagUC *usecase.DeleteFeatureFlagUseCase,
	evaluateFlagUC *usecase.EvaluateFeatureFlagUseCase,
) *FeatureFlagHandler {
	return &FeatureFlagHandler{
		createFlagUC:   createFlagUC,
		getFlagUC:      getFlagUC,
		listFlagsUC:    listFlagsUC,
		updateFlagUC:   updateFlagUC,
		deleteFlagUC:   deleteFlagUC,
		evaluateFlagUC: evaluateFlagUC,
	}
}

// RegisterRoutes はフィーチャーフラグのルートを登録する。
func (h *FeatureFlagHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/feature-flags", h.CreateFeatureFlag)
	v1.GET("/feature-flags/:id", h.GetFeatureFlag)
	v1.PATCH("/feature-flags/:id", h.UpdateFeatureFlag)
	v1.DELETE("/feature-flags/:id", h.DeleteFeatureFlag)
	v1.GET("/environments/:environment/applications/:application/feature-flags", h.ListFeatureFlags)
	v1.POST("/environments/:environment/applications/:application/feature-flags/:name/evaluate", h.EvaluateFeatureFlag)
}

// CreateFeatureFlag は POST /api/v1/feature-flags のハンドラー。
func (h *FeatureFlagHandler) CreateFeatureFlag(c *gin.Context) {
	var input usecase.CreateFeatureFlagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		WriteBindError(c, err)
		return
	}
	input.CreatedBy = actor(c)

	flag, err := h.createFlagUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flag)
}

// GetFeatureFlag は GET /api/v1/feature-flags/:id のハンドラー。
func (h *FeatureFlagHandler) GetFeatureFlag(c *gin.Context) {
	flag, err := h.getFlagUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, flag)
}

// ListFeatureFlags は GET /api/v1/environments/:environment/applications/:application/feature-flags のハンドラー。
func (h *FeatureFlagHandler) ListFeatureFlags(c *gin.Context) {
	flags, err := h.listFlagsUC.Execute(c.Request.Context(), scopeFromPath(c))
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.ListFeatureFlagsResponse{FeatureFlags: flags})
}

// UpdateFeatureFlag は PATCH /api/v1/feature-flags/:id のハンドラー。
func (h *FeatureFlagHandler) UpdateFeatureFlag(c *gin.Context) {
	var input usecase.UpdateFeatureFlagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		WriteBindError(c, err)
		return
	}
	input.ID = c.Param("id")
	input.UpdatedBy = actor(c)

	flag, err := h.updateFlagUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, flag)
}

// DeleteFeatureFlag は DELETE /api/v1/feature-flags/:id のハンドラー。
func (h *FeatureFlagHandler) DeleteFeatureFlag(c *gin.Context) {
	if err := h.deleteFlagUC.Execute(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EvaluateFeatureFlag は POST .../feature-flags/:name/evaluate のハンドラー。
// 評価は常に 200 で結果を返す。フラグが無い場合も Enabled=false の結果になる。
func (h *FeatureFlagHandler) EvaluateFeatureFlag(c *gin.Context) {
	var req struct {
		Context map[string]string `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteBindError(c, err)
		return
	}

	scope := scopeFromPath(c)
	result := h.evaluateFlagUC.Execute(c.Request.Context(), usecase.EvaluateFeatureFlagInput{
		FlagName:    c.Param("name"),
		Environment: scope.Environment,
		Application: scope.Application,
		TenantID:    scope.TenantID,
		Context:     req.Context,
	})
	c.JSON(http.StatusOK, result)
}
