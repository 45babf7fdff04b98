package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	DevTools struct {
		URL string `yaml:"url"`
	} `yaml:"devtools"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Events struct {
		SubscriberBuffer int `yaml:"subscriberBuffer"`
	} `yaml:"events"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.DevTools.URL = "http://127.0.0.1:9222"
	c.Sqlite.Dsn = "netmon.sqlite3"
	c.Sqlite.Prefix = "netmon_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = "netmon.log"
	c.Events.SubscriberBuffer = 256
	return c
}

// Load 读取配置文件并合并默认值，path 为空时直接返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}
