package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sempressimo2/power-pickleball/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp 切換到空目錄，避免讀到工作目錄中的 .env
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "LOG_LEVEL", "LOG_FORMAT", "NATS_URL"} {
		t.Setenv(key, "")
	}
}

// TestLoadConfig_Defaults 測試沒有配置檔時使用預設值
func TestLoadConfig_Defaults(t *testing.T) {
	dir := chdirTemp(t)
	clearConfigEnv(t)

	cfg, err := internal.LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, internal.DefaultSendBuffer, cfg.Server.SendBuffer)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "pickleball.match", cfg.NATS.SubjectPrefix)
}

// TestLoadConfig_File 測試 YAML 配置檔
func TestLoadConfig_File(t *testing.T) {
	dir := chdirTemp(t)
	clearConfigEnv(t)

	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 4000
  read_timeout: 5s
  send_buffer: 32
log:
  level: debug
  format: json
nats:
  url: nats://localhost:4222
  subject_prefix: pb.events
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := internal.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 32, cfg.Server.SendBuffer)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "pb.events", cfg.NATS.SubjectPrefix)
}

// TestLoadConfig_Env 測試環境變數覆蓋
func TestLoadConfig_Env(t *testing.T) {
	dir := chdirTemp(t)
	clearConfigEnv(t)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4000\n"), 0o600))

	t.Setenv("PORT", "5000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("NATS_URL", "nats://nats:4222")

	cfg, err := internal.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}

// TestLoadConfig_Invalid 測試無效配置
func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  string
	}{
		{"非數字端口", "", "abc"},
		{"端口超出範圍", "server:\n  port: 70000\n", ""},
		{"負數緩衝", "server:\n  send_buffer: -1\n", ""},
		{"YAML 格式錯誤", "server: [", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdirTemp(t)
			clearConfigEnv(t)
			if tt.env != "" {
				t.Setenv("PORT", tt.env)
			}

			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := internal.LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
