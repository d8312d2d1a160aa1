package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_MemoryDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
workflow:
  compensate_on_conflict: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, TransportLog, cfg.Notifications.Transport)
	assert.True(t, cfg.Workflow.CompensateOnConflict)
	assert.Equal(t, 300, cfg.Cache.UserTTL)
	assert.Equal(t, "fleet:notifications:", cfg.Notifications.RedisChannelPrefix)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("FLEET_TEST_DB_HOST", "db.internal")
	path := writeConfig(t, `
database:
  postgres:
    host: ${FLEET_TEST_DB_HOST}
    database: fleet
    user: fleet
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "host=db.internal port=5432 user=fleet password= dbname=fleet sslmode=disable", cfg.Database.Postgres.GetDSN())
}

func TestLoadFromFile_UnsetPlaceholderIsEmpty(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
bootstrap:
  admin_login: ${FLEET_TEST_UNSET_LOGIN}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Bootstrap.AdminLogin)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{
			name: "postgres host required",
			body: "storage:\n  driver: postgres\n",
			msg:  "database.postgres.host",
		},
		{
			name: "unknown driver",
			body: "storage:\n  driver: sqlite\n",
			msg:  "storage.driver",
		},
		{
			name: "sns needs topics",
			body: "storage:\n  driver: memory\nnotifications:\n  transport: sns\n  region: eu-west-1\n",
			msg:  "notifications.topics",
		},
		{
			name: "bootstrap login needs password",
			body: "storage:\n  driver: memory\nbootstrap:\n  admin_login: root\n",
			msg:  "bootstrap.admin_password",
		},
		{
			name: "redis transport needs address",
			body: "storage:\n  driver: memory\nnotifications:\n  transport: redis\n",
			msg:  "database.redis.address",
		},
		{
			name: "enabled camunda needs broker",
			body: "storage:\n  driver: memory\ncamunda:\n  enabled: true\n",
			msg:  "camunda.broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"order-command": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "order-command").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "order-command"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "unknown").MaxJobsActive)
}
