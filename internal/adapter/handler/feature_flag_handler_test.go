package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/presenter"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

func (s *testServer) createFlag(t *testing.T, body map[string]interface{}) model.FeatureFlag {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/feature-flags", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.FeatureFlag](t, w)
}

func TestFeatureFlagHandler_CRUD(t *testing.T) {
	s := newTestServer(t)
	flag := s.createFlag(t, map[string]interface{}{
		"name":        "new_checkout",
		"environment": "prod",
		"application": "billing",
		"is_enabled":  false,
	})

	w := s.do(t, http.MethodGet, "/api/v1/feature-flags/"+flag.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new_checkout", decode[model.FeatureFlag](t, w).Name)

	w = s.do(t, http.MethodPatch, "/api/v1/feature-flags/"+flag.ID, map[string]interface{}{"is_enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.FeatureFlag](t, w).IsEnabled)

	w = s.do(t, http.MethodGet, "/api/v1/environments/prod/applications/billing/feature-flags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[presenter.ListFeatureFlagsResponse](t, w).FeatureFlags, 1)

	w = s.do(t, http.MethodDelete, "/api/v1/feature-flags/"+flag.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/feature-flags/"+flag.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeatureFlagHandler_CreateDuplicate(t *testing.T) {
	s := newTestServer(t)
	body := map[string]interface{}{"name": "dark_mode", "environment": "prod", "application": "billing"}
	s.createFlag(t, body)

	w := s.do(t, http.MethodPost, "/api/v1/feature-flags", body)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFeatureFlagHandler_CreateUnknownOperator(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/feature-flags", map[string]interface{}{
		"name":        "dark_mode",
		"environment": "prod",
		"application": "billing",
		"rules": []map[string]interface{}{
			{"id": "r1", "attribute": "country", "operator": "regex", "value": "JP", "is_active": true},
		},
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error.Details[0], "unknown operator")
}

func TestFeatureFlagHandler_Evaluate(t *testing.T) {
	s := newTestServer(t)
	s.createFlag(t, map[string]interface{}{
		"name":        "jp_only",
		"environment": "prod",
		"application": "billing",
		"is_enabled":  true,
		"rules": []map[string]interface{}{
			{"id": "country-jp", "attribute": "country", "operator": "equals", "value": "JP", "priority": 1, "is_active": true},
		},
	})
	path := "/api/v1/environments/prod/applications/billing/feature-flags/jp_only/evaluate"

	w := s.do(t, http.MethodPost, path, map[string]interface{}{"context": map[string]string{"country": "JP"}})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[model.EvaluationResult](t, w)
	assert.True(t, result.Enabled)
	assert.Equal(t, model.ReasonRuleMatch, result.Reason)
	assert.Equal(t, "country-jp", result.MatchedRuleID)

	w = s.do(t, http.MethodPost, path, map[string]interface{}{"context": map[string]string{"country": "US"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[model.EvaluationResult](t, w).Enabled)
}

func TestFeatureFlagHandler_EvaluateMissingFlag(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/environments/prod/applications/billing/feature-flags/ghost/evaluate", nil)

	require.Equal(t, http.StatusOK, w.Code)
	result := decode[model.EvaluationResult](t, w)
	assert.False(t, result.Enabled)
	assert.Equal(t, model.ReasonFlagNotFound, result.Reason)
}
