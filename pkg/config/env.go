package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// GetEnv 读取环境变量，为空时返回默认值
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvAsInt 读取整型环境变量
func GetEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetEnvAsBool 读取布尔型环境变量
func GetEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Manager 本地配置管理器
type Manager struct {
	viper *viper.Viper
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	return &Manager{viper: viper.New()}
}

// LoadConfig 从本地文件加载配置；文件不存在不视为致命错误，
// 由环境变量与默认值兜底
func (m *Manager) LoadConfig(configPath string) error {
	m.viper.SetConfigFile(configPath)
	if err := m.viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return nil
		}
		return fmt.Errorf("read local config failed: %w", err)
	}
	return nil
}

// Viper 获取底层 viper 实例
func (m *Manager) Viper() *viper.Viper {
	return m.viper
}

// GetString 获取字符串配置
func (m *Manager) GetString(key string) string {
	return m.viper.GetString(key)
}

// GetInt 获取整数配置
func (m *Manager) GetInt(key string) int {
	return m.viper.GetInt(key)
}
