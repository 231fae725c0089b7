package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

func (e *testEnv) mustSnapshot(t *testing.T) *model.ConfigurationSnapshot {
	t.Helper()
	s, err := e.createSnapshot.Execute(context.Background(), CreateSnapshotInput{
		Name:        "before-release",
		Environment: "prod",
		Application: "api",
		CreatedBy:   "sre@example.com",
	})
	require.NoError(t, err)
	return s
}

func TestCreateSnapshot_CapturesScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreateConfig(t, "rate_limit", "100", nil)
	_, err := env.createConfig.Execute(ctx, CreateConfigInput{
		Key: "rate_limit", Value: "999", Environment: "staging", Application: "api",
	})
	require.NoError(t, err)
	_, err = env.createFlag.Execute(ctx, CreateFeatureFlagInput{Name: "beta_ui", Environment: "prod", Application: "api", IsEnabled: true})
	require.NoError(t, err)

	s := env.mustSnapshot(t)

	assert.Equal(t, map[string]string{"rate_limit": "100"}, s.ConfigurationData)
	assert.Equal(t, map[string]bool{"beta_ui": true}, s.FeatureFlagData)
	assert.Equal(t, []string{model.AuditActionCreate}, env.auditActions(s.ID))
}

func TestCreateSnapshot_DefaultName(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.createSnapshot.Execute(context.Background(), CreateSnapshotInput{Environment: "prod", Application: "api"})

	require.NoError(t, err)
	assert.Contains(t, s.Name, "snapshot-")
}

func TestCreateSnapshot_ImmutableCopy(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.mustCreateConfig(t, "rate_limit", "100", nil)
	s := env.mustSnapshot(t)

	_, err := env.updateConfig.Execute(context.Background(), UpdateConfigInput{ID: cfg.ID, Value: ptr("200")})
	require.NoError(t, err)

	stored, err := env.snapshotRepo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", stored.ConfigurationData["rate_limit"])
}

func TestRestoreSnapshot_Selective(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rate := env.mustCreateConfig(t, "rate_limit", "100", nil)
	legacy := env.mustCreateConfig(t, "legacy", "on", nil)
	same := env.mustCreateConfig(t, "timeout", "30", nil)
	s := env.mustSnapshot(t)

	_, err := env.updateConfig.Execute(ctx, UpdateConfigInput{ID: rate.ID, Value: ptr("500")})
	require.NoError(t, err)
	_, err = env.deleteConfig.Execute(ctx, DeleteConfigInput{ID: legacy.ID})
	require.NoError(t, err)
	added := env.mustCreateConfig(t, "new_key", "x", nil)

	out, err := env.restoreSnapshot.Execute(ctx, s.ID, "sre@example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"rate_limit"}, out.Restored)
	assert.ElementsMatch(t, []string{"legacy", "timeout"}, out.Skipped)
	assert.Empty(t, out.Failed)

	assert.Equal(t, "100", env.configValue(t, rate.ID))
	assert.Equal(t, "30", env.configValue(t, same.ID))
	assert.Equal(t, "x", env.configValue(t, added.ID))
	_, err = env.getConfig.Execute(ctx, GetConfigInput{ID: legacy.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{model.AuditActionCreate, model.AuditActionUpdate, model.AuditActionRestore}, env.auditActions(rate.ID))
	assert.Equal(t, []string{model.AuditActionCreate, model.AuditActionRestore}, env.auditActions(s.ID))
}

func TestRestoreSnapshot_ValidationFailureRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cfg := env.mustCreateConfig(t, "mode", "blue", nil)
	s := env.mustSnapshot(t)

	rule := &model.ValidationRule{RuleType: model.RuleTypeAllowedValues, AllowedValues: []string{"green", "red"}}
	_, err := env.updateConfig.Execute(ctx, UpdateConfigInput{ID: cfg.ID, Value: ptr("green"), ValidationRule: rule})
	require.NoError(t, err)

	out, err := env.restoreSnapshot.Execute(ctx, s.ID, "sre@example.com")

	require.NoError(t, err)
	assert.Contains(t, out.Failed, "mode")
	assert.Equal(t, "green", env.configValue(t, cfg.ID))
}

func TestRestoreSnapshot_EncryptedValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.createConfig.Execute(ctx, CreateConfigInput{
		Key: "db_password", Value: "first", Environment: "prod", Application: "api", IsEncrypted: true,
	})
	require.NoError(t, err)
	s := env.mustSnapshot(t)
	assert.Equal(t, []string{"db_password"}, s.EncryptedKeys)
	assert.NotEqual(t, "first", s.ConfigurationData["db_password"])

	_, err = env.updateConfig.Execute(ctx, UpdateConfigInput{ID: created.Entry.ID, Value: ptr("second")})
	require.NoError(t, err)

	out, err := env.restoreSnapshot.Execute(ctx, s.ID, "sre@example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"db_password"}, out.Restored)
	assert.Equal(t, "first", env.configValue(t, created.Entry.ID))
}

func TestRestoreSnapshot_FeatureFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	flag, err := env.createFlag.Execute(ctx, CreateFeatureFlagInput{Name: "beta_ui", Environment: "prod", Application: "api", IsEnabled: true})
	require.NoError(t, err)
	s := env.mustSnapshot(t)

	_, err = env.updateFlag.Execute(ctx, UpdateFeatureFlagInput{ID: flag.ID, IsEnabled: ptr(false)})
	require.NoError(t, err)

	out, err := env.restoreSnapshot.Execute(ctx, s.ID, "sre@example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"beta_ui"}, out.FlagsRestored)
	assert.True(t, env.evaluateFlag.IsEnabled(ctx, "beta_ui", "prod", "api", nil, ""))
	assert.Equal(t, []string{model.AuditActionCreate, model.AuditActionUpdate, model.AuditActionRestore}, env.auditActions(flag.ID))
}

func TestRestoreSnapshot_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.restoreSnapshot.Execute(context.Background(), "missing", "sre@example.com")

	assert.ErrorIs(t, err, ErrNotFound)
}
