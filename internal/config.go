package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		SendBuffer   int           `yaml:"send_buffer"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

// DefaultConfig 預設配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 3001
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.SendBuffer = DefaultSendBuffer
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.NATS.SubjectPrefix = "pickleball.match"
	return cfg
}

// LoadConfig 依序套用：預設值 → YAML 檔（可選）→ .env（可選）→ 環境變數
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置檔失敗: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// 配置檔可省略
		default:
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
	}

	// .env 不覆蓋已存在的環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("載入 .env 失敗: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 環境變數覆蓋
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("無效的 PORT: %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	return nil
}

// Validate 檢查配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("端口必須在 1-65535 之間: %d", c.Server.Port)
	}
	if c.Server.SendBuffer < 0 {
		return fmt.Errorf("發送緩衝不能為負數: %d", c.Server.SendBuffer)
	}
	return nil
}

// Addr 監聽位址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
