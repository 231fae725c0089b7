package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	memrepo "github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
)

func TestCreateConfig_ScenarioA(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rule := &model.ValidationRule{RuleType: model.RuleTypeNumber, MinValue: "1", MaxValue: "100"}

	entry := env.mustCreateConfig(t, "max_upload_mb", "10", rule)
	assert.Equal(t, 1, entry.Version)

	_, err := env.updateConfig.Execute(ctx, UpdateConfigInput{ID: entry.ID, Value: ptr("500"), UpdatedBy: "ops@example.com"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.NotEmpty(t, verr.Errors)

	stored, err := env.getConfig.Execute(ctx, GetConfigInput{ID: entry.ID})
	require.NoError(t, err)
	assert.Equal(t, "10", stored.Value)
	assert.Equal(t, 1, stored.Version)
}

func TestCreateConfig_ValidationFailureDoesNotWrite(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.createConfig.Execute(context.Background(), CreateConfigInput{
		Key:         "timeout",
		Value:       "abc",
		Environment: "prod",
		Application: "api",
		ValidationRule: &model.ValidationRule{
			RuleType: model.RuleTypeNumber,
		},
	})

	assert.ErrorIs(t, err, ErrValidationFailed)
	out, err := env.listConfigs.Execute(context.Background(), ListConfigsInput{Environment: "prod", Application: "api"})
	require.NoError(t, err)
	assert.Empty(t, out.Entries)
	assert.Empty(t, env.auditRepo.Entries())
}

func TestCreateConfig_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateConfig(t, "rate_limit", "100", nil)

	_, err := env.createConfig.Execute(context.Background(), CreateConfigInput{
		Key: "rate_limit", Value: "200", Environment: "prod", Application: "api",
	})

	assert.ErrorIs(t, err, ErrConfigAlreadyExists)
}

func TestCreateConfig_SameKeyOtherTenant(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateConfig(t, "rate_limit", "100", nil)

	out, err := env.createConfig.Execute(context.Background(), CreateConfigInput{
		Key: "rate_limit", Value: "5", Environment: "prod", Application: "api", TenantID: "tenant-a",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", out.Entry.TenantID)
}

func TestGetConfig_TenantDoesNotFallBackToGlobal(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateConfig(t, "rate_limit", "100", nil)

	_, err := env.getConfig.Execute(context.Background(), GetConfigInput{
		Key: "rate_limit", Environment: "prod", Application: "api", TenantID: "tenant-a",
	})

	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConfig_MissingID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.getConfig.Execute(context.Background(), GetConfigInput{ID: "missing"})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateConfig_PartialPatchAndVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.mustCreateConfig(t, "log_level", "info", nil)

	out, err := env.updateConfig.Execute(ctx, UpdateConfigInput{
		ID:          entry.ID,
		Description: ptr("ログレベル"),
		UpdatedBy:   "ops@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "info", out.Entry.Value)
	assert.Equal(t, "ログレベル", out.Entry.Description)
	assert.Equal(t, 2, out.Entry.Version)
	assert.Equal(t, "ops@example.com", out.Entry.UpdatedBy)

	versions := []int{out.Entry.Version}
	for _, v := range []string{"debug", "warn", "error"} {
		out, err = env.updateConfig.Execute(ctx, UpdateConfigInput{ID: entry.ID, Value: ptr(v), UpdatedBy: "ops@example.com"})
		require.NoError(t, err)
		assert.Greater(t, out.Entry.Version, versions[len(versions)-1])
		versions = append(versions, out.Entry.Version)
	}
	assert.Equal(t, "warn", out.OldValue)
}

func TestUpdateConfig_ExpectedVersionMismatch(t *testing.T) {
	env := newTestEnv(t)
	entry := env.mustCreateConfig(t, "log_level", "info", nil)

	_, err := env.updateConfig.Execute(context.Background(), UpdateConfigInput{
		ID:              entry.ID,
		Value:           ptr("debug"),
		ExpectedVersion: ptr(7),
	})

	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestUpdateConfig_RepositoryConflict(t *testing.T) {
	mockRepo := new(MockConfigRepository)
	uc := NewUpdateConfigUseCase(mockRepo, service.NewConfigValidator(nil), nil, nil, nil, nil)

	existing := &model.ConfigEntry{ID: "cfg-1", Key: "k", Value: "v", Environment: "prod", Application: "api", Version: 3}
	mockRepo.On("GetByID", mock.Anything, "cfg-1").Return(existing, nil)
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.ConfigEntry"), 3).Return(ErrVersionConflict)

	_, err := uc.Execute(context.Background(), UpdateConfigInput{ID: "cfg-1", Value: ptr("w")})

	assert.ErrorIs(t, err, ErrVersionConflict)
	mockRepo.AssertExpectations(t)
}

func TestUpdateConfig_DBError(t *testing.T) {
	mockRepo := new(MockConfigRepository)
	uc := NewUpdateConfigUseCase(mockRepo, service.NewConfigValidator(nil), nil, nil, nil, nil)

	mockRepo.On("GetByID", mock.Anything, "cfg-1").Return(nil, errors.New("connection refused"))

	_, err := uc.Execute(context.Background(), UpdateConfigInput{ID: "cfg-1", Value: ptr("w")})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDeleteConfig_HardDeleteAudited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.mustCreateConfig(t, "obsolete", "1", nil)

	out, err := env.deleteConfig.Execute(ctx, DeleteConfigInput{ID: entry.ID, DeletedBy: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "1", out.Deleted.Value)

	_, err = env.getConfig.Execute(ctx, GetConfigInput{ID: entry.ID})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{model.AuditActionCreate, model.AuditActionDelete}, env.auditActions(entry.ID))

	_, err = env.deleteConfig.Execute(ctx, DeleteConfigInput{ID: entry.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfigStore_EncryptedValues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.createConfig.Execute(ctx, CreateConfigInput{
		Key: "db_password", Value: "s3cret", Environment: "prod", Application: "api", IsEncrypted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", out.Entry.Value)

	stored, err := env.configRepo.GetByID(ctx, out.Entry.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", stored.Value)

	got, err := env.getConfig.Execute(ctx, GetConfigInput{ID: out.Entry.ID})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got.Value)

	_, err = env.updateConfig.Execute(ctx, UpdateConfigInput{ID: out.Entry.ID, Value: ptr("n3w")})
	require.NoError(t, err)

	for _, a := range env.auditRepo.Entries() {
		if a.OldValue != nil {
			assert.Equal(t, MaskedValue, *a.OldValue)
		}
		if a.NewValue != nil {
			assert.Equal(t, MaskedValue, *a.NewValue)
		}
	}
}

func TestConfigStore_EncryptedWithoutCipher(t *testing.T) {
	uc := NewCreateConfigUseCase(memrepo.NewInMemoryConfigRepository(), service.NewConfigValidator(nil), nil, nil, nil, nil)

	_, err := uc.Execute(context.Background(), CreateConfigInput{
		Key: "db_password", Value: "s3cret", Environment: "prod", Application: "api", IsEncrypted: true,
	})

	assert.ErrorIs(t, err, ErrEncryptionUnavailable)
}

func TestListConfigs_SearchAndPaging(t *testing.T) {
	env := newTestEnv(t)
	for _, k := range []string{"db.host", "db.port", "cache.ttl", "db.user"} {
		env.mustCreateConfig(t, k, "x", nil)
	}

	out, err := env.listConfigs.Execute(context.Background(), ListConfigsInput{
		Environment: "prod", Application: "api", Search: "db.", Page: 1, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalCount)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "db.host", out.Entries[0].Key)
	assert.True(t, out.HasNext)
}

type lockRecorder struct {
	keys []string
}

func (l *lockRecorder) Lock(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() {}, nil
}

func TestUpdateConfig_LocksUniqueKey(t *testing.T) {
	env := newTestEnv(t)
	entry := env.mustCreateConfig(t, "rate_limit", "100", nil)
	locker := &lockRecorder{}
	uc := NewUpdateConfigUseCase(env.configRepo, service.NewConfigValidator(nil), nil, reverseCipher{}, locker, nil)

	_, err := uc.Execute(context.Background(), UpdateConfigInput{ID: entry.ID, Value: ptr("200")})

	require.NoError(t, err)
	assert.Equal(t, []string{"prod/api#rate_limit"}, locker.keys)
}
