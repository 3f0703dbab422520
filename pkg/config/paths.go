package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// BaseSettingsDir returns the directory holding settings, logs and the token file
func BaseSettingsDir() string {
	// Check if config.path is explicitly set (for testing)
	if configPath := viper.GetString("config.path"); configPath != "" {
		return configPath
	}

	currentConfig := viper.ConfigFileUsed()
	if currentConfig == "" {
		return "./.promptcanvas"
	}
	return filepath.Dir(currentConfig)
}

// BuildSettingsPath joins target onto the settings directory
func BuildSettingsPath(target string) string {
	return filepath.Join(BaseSettingsDir(), target)
}
