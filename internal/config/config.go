package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Browser struct {
		DevToolsURL string `yaml:"devToolsURL"`
		Headless    bool   `yaml:"headless"`
	} `yaml:"browser"`

	Message struct {
		IMURL                 string `yaml:"imURL"`
		VerificationTimeoutS  int    `yaml:"verificationTimeoutS"`
		MessagePollCount      int    `yaml:"messagePollCount"`
		MessagePollIntervalMS int    `yaml:"messagePollIntervalMS"`
		PayloadMaxAgeS        int    `yaml:"payloadMaxAgeS"` // 0 表示不过期
	} `yaml:"message"`

	Sqlite struct {
		Enabled bool   `yaml:"enabled"`
		Dsn     string `yaml:"dsn"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Browser.DevToolsURL = "http://127.0.0.1:9222"
	cfg.Browser.Headless = false
	cfg.Message.IMURL = "https://www.goofish.com/im"
	cfg.Message.VerificationTimeoutS = 60
	cfg.Message.MessagePollCount = 5
	cfg.Message.MessagePollIntervalMS = 1000
	cfg.Message.PayloadMaxAgeS = 0
	cfg.Sqlite.Enabled = false
	cfg.Sqlite.Dsn = "captures.sqlite3"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"console"}
	cfg.Log.File = "logs/idlemsg.log"
	return cfg
}

// Load 从 yaml 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
