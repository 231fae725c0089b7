package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_Key(t *testing.T) {
	assert.Equal(t, "prod/api", Scope{Environment: "prod", Application: "api"}.Key())
	assert.Equal(t, "prod/api/t1", Scope{Environment: "prod", Application: "api", TenantID: "t1"}.Key())

	slashApp := Scope{Environment: "prod", Application: "web/t1"}
	tenant := Scope{Environment: "prod", Application: "web", TenantID: "t1"}
	assert.NotEqual(t, slashApp.Key(), tenant.Key())
}

func TestConfigEntry_UniqueKey_SeparatorsDoNotCollide(t *testing.T) {
	a := &ConfigEntry{Key: "b#c", Environment: "prod", Application: "api"}
	b := &ConfigEntry{Key: "c", Environment: "prod", Application: "api#b"}

	assert.NotEqual(t, a.UniqueKey(), b.UniqueKey())
	assert.Equal(t, "prod/api#rate_limit", (&ConfigEntry{Key: "rate_limit", Environment: "prod", Application: "api"}).UniqueKey())
}
