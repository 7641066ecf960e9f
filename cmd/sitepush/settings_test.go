package main

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/sitepush/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSettings_Defaults(t *testing.T) {
	var settings Settings
	require.NoError(t, env.Unmarshal(env.EnvSet{}, &settings))

	assert.Equal(t, 8000, settings.Port)
	assert.Equal(t, "/", settings.BasePath)
	assert.Equal(t, 30*time.Second, settings.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, settings.WriteTimeout)
	assert.Equal(t, "replace", settings.DuplicatePolicy)
	assert.Equal(t, []string{"*"}, settings.AllowedOriginList())
	assert.Empty(t, settings.APIKeyList())
}

func TestSettings_Lists(t *testing.T) {
	var settings Settings
	require.NoError(t, env.Unmarshal(env.EnvSet{
		"API_KEYS":           " key-a, ,key-b ",
		"ALLOWED_ORIGINS":    "https://qc.example.com,https://admin.example.com",
		"HEARTBEAT_INTERVAL": "5s",
	}, &settings))

	assert.Equal(t, []string{"key-a", "key-b"}, settings.APIKeyList())
	assert.Equal(t, []string{"https://qc.example.com", "https://admin.example.com"}, settings.AllowedOriginList())
	assert.Equal(t, 5*time.Second, settings.HeartbeatInterval)
}

func TestNewApp_InvalidDuplicatePolicy(t *testing.T) {
	var settings Settings
	require.NoError(t, env.Unmarshal(env.EnvSet{"DUPLICATE_POLICY": "queue"}, &settings))

	_, err := NewApp(zap.NewNop(), settings, persistence.NewNopEngine())

	assert.Error(t, err)
}

func TestBuildZapLogger(t *testing.T) {
	_, err := buildZapLogger("json", "debug")
	assert.NoError(t, err)

	_, err = buildZapLogger("console", "loud")
	assert.Error(t, err)
}
