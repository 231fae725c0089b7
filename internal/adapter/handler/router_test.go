package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/middleware"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	domainrepo "github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/crypto"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// testServer はインメモリリポジトリで組み立てた API。
type testServer struct {
	router     *gin.Engine
	configRepo *repository.InMemoryConfigRepository
	flagRepo   *repository.InMemoryFeatureFlagRepository
	auditRepo  *repository.InMemoryAuditLogRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	configRepo := repository.NewInMemoryConfigRepository()
	flagRepo := repository.NewInMemoryFeatureFlagRepository()
	deployRepo := repository.NewInMemoryDeploymentRepository()
	snapshotRepo := repository.NewInMemorySnapshotRepository()
	auditRepo := repository.NewInMemoryAuditLogRepository()

	validator := service.NewConfigValidator(nil)
	audit := usecase.NewRecordAuditLogUseCase(auditRepo, nil, nil)
	cipher, err := crypto.NewAESCipher("handler-test-master-key-0123456789", "configdeploy")
	require.NoError(t, err)

	createConfig := usecase.NewCreateConfigUseCase(configRepo, validator, audit, cipher, nil, nil)
	getConfig := usecase.NewGetConfigUseCase(configRepo, cipher)
	updateConfig := usecase.NewUpdateConfigUseCase(configRepo, validator, audit, cipher, nil, nil)
	deleteConfig := usecase.NewDeleteConfigUseCase(configRepo, audit, cipher, nil, nil)
	updateFlag := usecase.NewUpdateFeatureFlagUseCase(flagRepo, audit, nil)

	r := gin.New()
	r.Use(middleware.RequestID())
	v1 := r.Group("/api/v1")

	NewConfigHandler(
		createConfig,
		getConfig,
		usecase.NewListConfigsUseCase(configRepo, cipher),
		updateConfig,
		deleteConfig,
		usecase.NewValidateConfigsUseCase(validator),
	).RegisterRoutes(v1)

	NewFeatureFlagHandler(
		usecase.NewCreateFeatureFlagUseCase(flagRepo, audit, nil),
		usecase.NewGetFeatureFlagUseCase(flagRepo),
		usecase.NewListFeatureFlagsUseCase(flagRepo),
		updateFlag,
		usecase.NewDeleteFeatureFlagUseCase(flagRepo, audit, nil),
		usecase.NewEvaluateFeatureFlagUseCase(flagRepo, service.NewFlagEvaluator(nil), nil, nil),
	).RegisterRoutes(v1)

	NewDeploymentHandler(
		usecase.NewCreateDeploymentUseCase(deployRepo, configRepo, cipher, audit, nil),
		usecase.NewExecuteDeploymentUseCase(deployRepo, getConfig, updateConfig, deleteConfig, cipher, audit, nil, nil),
		usecase.NewRollbackDeploymentUseCase(deployRepo, createConfig, updateConfig, cipher, audit, nil, nil),
		usecase.NewCancelDeploymentUseCase(deployRepo, audit, nil, nil),
		usecase.NewGetDeploymentUseCase(deployRepo),
		usecase.NewListDeploymentsUseCase(deployRepo),
	).RegisterRoutes(v1)

	NewSnapshotHandler(
		usecase.NewCreateSnapshotUseCase(snapshotRepo, configRepo, flagRepo, audit, nil),
		usecase.NewGetSnapshotUseCase(snapshotRepo),
		usecase.NewRestoreSnapshotUseCase(snapshotRepo, configRepo, flagRepo, updateConfig, updateFlag, cipher, audit, nil),
	).RegisterRoutes(v1)

	NewAuditHandler(usecase.NewSearchAuditLogsUseCase(auditRepo)).RegisterRoutes(v1)

	return &testServer{router: r, configRepo: configRepo, flagRepo: flagRepo, auditRepo: auditRepo}
}

// do はリクエストを実行する。body が nil 以外の場合は JSON として送る。
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Email", "alice@example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createConfig は設定エントリを作成して ID を返す。
func (s *testServer) createConfig(t *testing.T, key, value string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/configurations", map[string]interface{}{
		"key":         key,
		"value":       value,
		"environment": "prod",
		"application": "billing",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[struct {
		Entry struct {
			ID string `json:"id"`
		} `json:"entry"`
	}](t, w)
	return resp.Entry.ID
}

// listAll は prod/billing スコープの全件取得パラメータ。
func listAll() domainrepo.ConfigListParams {
	return domainrepo.ConfigListParams{Scope: model.Scope{Environment: "prod", Application: "billing"}}
}
