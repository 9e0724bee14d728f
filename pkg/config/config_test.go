package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/exception-subscriptions/pkg/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name               string
		configContent      string
		path               string
		expectedListenAddr string
		expectedStoreType  string
		expectedPrefix     string
		expectError        bool
	}{
		{
			name: "full config",
			configContent: `
server:
  listenAddress: ":9090"
frontend:
  baseURL: "https://errors.example.com"
mail:
  host: "smtp.example.com"
  port: 587
  subjectPrefix: "[Errors]"
  failSilently: true
store:
  type: sqlite
  path: /tmp/subs.db
kafka:
  enabled: true
  brokers: ["kafka:9092"]
  topic: processed-events
`,
			expectedListenAddr: ":9090",
			expectedStoreType:  config.StoreSQLite,
			expectedPrefix:     "[Errors]",
		},
		{
			name: "minimal config",
			configContent: `
mail:
  host: "localhost"
`,
			expectedListenAddr: config.DefaultListenAddress,
			expectedStoreType:  config.StoreMemory,
			expectedPrefix:     config.DefaultSubjectPrefix,
		},
		{
			name:          "invalid YAML",
			configContent: `invalid: yaml: content [`,
			expectError:   true,
		},
		{
			name:        "file not found",
			path:        "/nonexistent/path/config.yaml",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.configContent), 0o600))
			}

			cfg, err := config.Load(path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedListenAddr, cfg.Server.ListenAddress)
			assert.Equal(t, tt.expectedStoreType, cfg.Store.Type)
			assert.Equal(t, tt.expectedPrefix, cfg.Mail.SubjectPrefix)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoad_FailSilentlyAndKafka(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mail:
  host: smtp
  failSilently: true
  async: true
  retryCount: 4
kafka:
  enabled: true
  brokers: ["a:9092", "b:9092"]
  topic: events
  groupID: notifier
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Mail.FailSilently)
	assert.True(t, cfg.Mail.Async)
	assert.Equal(t, 4, cfg.Mail.RetryCount)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "notifier", cfg.Kafka.GroupID)
}
