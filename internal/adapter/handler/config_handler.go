package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/presenter"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// ConfigHandler は設定エントリ関連の REST ハンドラー。
type ConfigHandler struct {
	createConfigUC    *usecase.CreateConfigUseCase
	getConfigUC       *usecase.GetConfigUseCase
	listConfigsUC     *usecase.ListConfigsUseCase
	updateConfigUC    *usecase.UpdateConfigUseCase
	deleteConfigUC    *usecase.DeleteConfigUseCase
	validateConfigsUC *usecase.ValidateConfigsUseCase
}

// NewConfigHandler は新しい ConfigHandler を作成する。
func NewConfigHandler(
	createConfigUC *usecase.CreateConfigUseCase,
	getConfigUC *usecase.GetConfigUseCase,
	listConfigsUC *usecase.ListConfigsUseCase,
	updateConfigUC *usecase.UpdateConfigUseCase,
	deleteConfigUC *usecase.DeleteConfigUseCase,
	validateConfigsUC *usecase.ValidateConfigsUseCase,
) *ConfigHandler {
	return &ConfigHandler{
		createConfigUC:    createConfigUC,
		getConfigUC:       getConfigUC,
		listConfigsUC:     listConfigsUC,
		updateConfigUC:    updateConfigUC,
		deleteConfigUC:    deleteConfigUC,
		validateConfigsUC: validateConfigsUC,
	}
}

// RegisterRoutes は設定エントリのルートを登録する。
func (h *ConfigHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/configurations", h.CreateConfig)
	v1.POST("/configurations/validate", h.ValidateConfigs)
	v1.GET("/configurations/:id", h.GetConfig)
	v1.PATCH("/configurations/:id", h.UpdateConfig)
	v1.DELETE("/configurations/:id", h.DeleteConfig)
	v1.GET("/environments/:environment/applications/:application/configurations", h.ListConfigs)
	v1.GET("/environments/:environment/applications/:application/configurations/:key", h.GetConfigByKey)
}

// CreateConfig は POST /api/v1/configurations のハンドラー。
func (h *ConfigHandler) CreateConfig(c *gin.Context) {
	var input usecase.CreateConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		WriteBindError(c, err)
		return
	}
	input.CreatedBy = actor(c)

	output, err := h.createConfigUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, presenter.ConfigEntryResponse{
		Entry:    output.Entry,
		Warnings: nonNil(output.Warnings),
	})
}

// GetConfig は GET /api/v1/configurations/:id のハンドラー。
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	entry, err := h.getConfigUC.Execute(c.Request.Context(), usecase.GetConfigInput{ID: c.Param("id")})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetConfigByKey は GET /api/v1/environments/:environment/applications/:application/configurations/:key のハンドラー。
func (h *ConfigHandler) GetConfigByKey(c *gin.Context) {
	scope := scopeFromPath(c)
	entry, err := h.getConfigUC.Execute(c.Request.Context(), usecase.GetConfigInput{
		Key:         c.Param("key"),
		Environment: scope.Environment,
		Application: scope.Application,
		TenantID:    scope.TenantID,
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ListConfigs は GET /api/v1/environments/:environment/applications/:application/configurations のハンドラー。
func (h *ConfigHandler) ListConfigs(c *gin.Context) {
	scope := scopeFromPath(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	output, err := h.listConfigsUC.Execute(c.Request.Context(), usecase.ListConfigsInput{
		Environment: scope.Environment,
		Application: scope.Application,
		TenantID:    scope.TenantID,
		Search:      c.Query("search"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, presenter.ListConfigsResponse{
		Entries:    output.Entries,
		Pagination: presenter.NewPagination(output.TotalCount, output.Page, output.PageSize, output.HasNext),
	})
}

// UpdateConfig は PATCH /api/v1/configurations/:id のハンドラー。
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	var input usecase.UpdateConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		WriteBindError(c, err)
		return
	}
	input.ID = c.Param("id")
	input.UpdatedBy = actor(c)

	output, err := h.updateConfigUC.Execute(c.Request.Context(), input)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, presenter.ConfigEntryResponse{
		Entry:    output.Entry,
		Warnings: nonNil(output.Warnings),
	})
}

// DeleteConfig は DELETE /api/v1/configurations/:id のハンドラー。
func (h *ConfigHandler) DeleteConfig(c *gin.Context) {
	_, err := h.deleteConfigUC.Execute(c.Request.Context(), usecase.DeleteConfigInput{
		ID:        c.Param("id"),
		DeletedBy: actor(c),
	})
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ValidateConfigs は POST /api/v1/configurations/validate のハンドラー。何も保存しない。
func (h *ConfigHandler) ValidateConfigs(c *gin.Context) {
	var req struct {
		Configurations []usecase.ValidateConfigItem `json:"configurations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteBindError(c, err)
		return
	}

	output, err := h.validateConfigsUC.Execute(c.Request.Context(), req.Configurations)
	if err != nil {
		WriteUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
