package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	memrepo "github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

// MockAuditLogRepository は AuditLogRepository のモック実装。
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *model.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) Search(ctx context.Context, params repository.AuditLogSearchParams) ([]*model.AuditLogEntry, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*model.AuditLogEntry), args.Int(1), args.Error(2)
}

// MockAuditEventPublisher は AuditEventPublisher のモック実装。
type MockAuditEventPublisher struct {
	mock.Mock
}

func (m *MockAuditEventPublisher) Publish(ctx context.Context, entry *model.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockConfigRepository は ConfigRepository のモック実装。
type MockConfigRepository struct {
	mock.Mock
}

func (m *MockConfigRepository) GetByID(ctx context.Context, id string) (*model.ConfigEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConfigEntry), args.Error(1)
}

func (m *MockConfigRepository) GetByKey(ctx context.Context, scope model.Scope, key string) (*model.ConfigEntry, error) {
	args := m.Called(ctx, scope, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConfigEntry), args.Error(1)
}

func (m *MockConfigRepository) List(ctx context.Context, params repository.ConfigListParams) ([]*model.ConfigEntry, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*model.ConfigEntry), args.Int(1), args.Error(2)
}

func (m *MockConfigRepository) Create(ctx context.Context, entry *model.ConfigEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockConfigRepository) Update(ctx context.Context, entry *model.ConfigEntry, expectedVersion int) error {
	args := m.Called(ctx, entry, expectedVersion)
	return args.Error(0)
}

func (m *MockConfigRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockFlagEvaluationMetrics は FlagEvaluationMetrics のモック実装。
type MockFlagEvaluationMetrics struct {
	mock.Mock
}

func (m *MockFlagEvaluationMetrics) RecordFlagEvaluation(enabled bool, reason string) {
	m.Called(enabled, reason)
}

// reverseCipher はテスト用の可逆な ValueCipher。
type reverseCipher struct{}

func (reverseCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

func (reverseCipher) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", errors.New("not encrypted")
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, "enc:"))
	return string(b), err
}

// testEnv はメモリ上のリポジトリで組み立てたユースケース一式。
type testEnv struct {
	configRepo   *memrepo.InMemoryConfigRepository
	flagRepo     *memrepo.InMemoryFeatureFlagRepository
	deployRepo   *memrepo.InMemoryDeploymentRepository
	snapshotRepo *memrepo.InMemorySnapshotRepository
	auditRepo    *memrepo.InMemoryAuditLogRepository

	createConfig *CreateConfigUseCase
	getConfig    *GetConfigUseCase
	listConfigs  *ListConfigsUseCase
	updateConfig *UpdateConfigUseCase
	deleteConfig *DeleteConfigUseCase

	createFlag   *CreateFeatureFlagUseCase
	updateFlag   *UpdateFeatureFlagUseCase
	deleteFlag   *DeleteFeatureFlagUseCase
	evaluateFlag *EvaluateFeatureFlagUseCase

	createDeployment   *CreateDeploymentUseCase
	executeDeployment  *ExecuteDeploymentUseCase
	rollbackDeployment *RollbackDeploymentUseCase
	cancelDeployment   *CancelDeploymentUseCase
	getDeployment      *GetDeploymentUseCase

	createSnapshot  *CreateSnapshotUseCase
	restoreSnapshot *RestoreSnapshotUseCase
}

func newTestEnv(t *testing.T, rollbackOpts ...RollbackOption) *testEnv {
	t.Helper()
	env := &testEnv{
		configRepo:   memrepo.NewInMemoryConfigRepository(),
		flagRepo:     memrepo.NewInMemoryFeatureFlagRepository(),
		deployRepo:   memrepo.NewInMemoryDeploymentRepository(),
		snapshotRepo: memrepo.NewInMemorySnapshotRepository(),
		auditRepo:    memrepo.NewInMemoryAuditLogRepository(),
	}
	validator := service.NewConfigValidator(nil)
	audit := NewRecordAuditLogUseCase(env.auditRepo, nil, nil)
	cipher := reverseCipher{}

	env.createConfig = NewCreateConfigUseCase(env.configRepo, validator, audit, cipher, nil, nil)
	env.getConfig = NewGetConfigUseCase(env.configRepo, cipher)
	env.listConfigs = NewListConfigsUseCase(env.configRepo, cipher)
	env.updateConfig = NewUpdateConfigUseCase(env.configRepo, validator, audit, cipher, nil, nil)
	env.deleteConfig = NewDeleteConfigUseCase(env.configRepo, audit, cipher, nil, nil)

	env.createFlag = NewCreateFeatureFlagUseCase(env.flagRepo, audit, nil)
	env.updateFlag = NewUpdateFeatureFlagUseCase(env.flagRepo, audit, nil)
	env.deleteFlag = NewDeleteFeatureFlagUseCase(env.flagRepo, audit, nil)
	env.evaluateFlag = NewEvaluateFeatureFlagUseCase(env.flagRepo, service.NewFlagEvaluator(nil), nil, nil)

	env.createDeployment = NewCreateDeploymentUseCase(env.deployRepo, env.configRepo, cipher, audit, nil)
	env.executeDeployment = NewExecuteDeploymentUseCase(env.deployRepo, env.getConfig, env.updateConfig, env.deleteConfig, cipher, audit, nil, nil)
	env.rollbackDeployment = NewRollbackDeploymentUseCase(env.deployRepo, env.createConfig, env.updateConfig, cipher, audit, nil, nil, rollbackOpts...)
	env.cancelDeployment = NewCancelDeploymentUseCase(env.deployRepo, audit, nil, nil)
	env.getDeployment = NewGetDeploymentUseCase(env.deployRepo)

	env.createSnapshot = NewCreateSnapshotUseCase(env.snapshotRepo, env.configRepo, env.flagRepo, audit, nil)
	env.restoreSnapshot = NewRestoreSnapshotUseCase(env.snapshotRepo, env.configRepo, env.flagRepo, env.updateConfig, env.updateFlag, cipher, audit, nil)
	return env
}

// mustCreateConfig は prod/api スコープに設定を作成する。
func (e *testEnv) mustCreateConfig(t *testing.T, key, value string, rule *model.ValidationRule) *model.ConfigEntry {
	t.Helper()
	out, err := e.createConfig.Execute(context.Background(), CreateConfigInput{
		Key:            key,
		Value:          value,
		Environment:    "prod",
		Application:    "api",
		ValidationRule: rule,
		CreatedBy:      "admin@example.com",
	})
	require.NoError(t, err)
	return out.Entry
}

// auditActions は entityID の監査アクションを記録順に返す。
func (e *testEnv) auditActions(entityID string) []string {
	var actions []string
	for _, entry := range e.auditRepo.Entries() {
		if entry.EntityID == entityID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

func ptr[T any](v T) *T {
	return &v
}
