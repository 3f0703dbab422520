package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings holds all configuration values
type Settings struct {
	// Server configuration
	Server struct {
		BaseURL        string
		ChatPath       string
		FeedbackPath   string
		AuthPath       string
		EnvironmentID  string
		RequestTimeout time.Duration
	}

	// Display settings
	ShowThinking bool

	// Logging configuration
	Logging struct {
		LogFile string
		Persist bool
		Level   string
	}

	// ConfigFile stores the path to the config file used
	ConfigFile string
}

// Global settings instance
var Global *Settings

// Init initializes the configuration system
func Init(cfgFile string) error {
	Global = &Settings{}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		Global.ConfigFile = cfgFile
	} else {
		viper.AddConfigPath("./.promptcanvas")
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
		Global.ConfigFile = ".promptcanvas/settings.yaml"
	}

	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.BindEnv("server.base_url", "PROMPTCANVAS_SERVER_URL")
	viper.BindEnv("server.environment_id", "PROMPTCANVAS_ENV_ID")
	viper.BindEnv("logging.level", "PROMPTCANVAS_LOG_LEVEL")

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		Global.ConfigFile = viper.ConfigFileUsed()
	}

	return Load()
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("server.base_url", "http://127.0.0.1:8001/api/v1")
	viper.SetDefault("server.chat_path", "/chat")
	viper.SetDefault("server.feedback_path", "/feedback")
	viper.SetDefault("server.auth_path", "/auth/token")
	viper.SetDefault("server.environment_id", "")
	viper.SetDefault("server.request_timeout", "30s")

	viper.SetDefault("show_thinking", true)

	viper.SetDefault("logging.log_file", "system.log")
	viper.SetDefault("logging.persist", false)
	viper.SetDefault("logging.level", "info")
}

// Load loads configuration from viper into the Settings struct
func Load() error {
	Global.Server.BaseURL = viper.GetString("server.base_url")
	Global.Server.ChatPath = viper.GetString("server.chat_path")
	Global.Server.FeedbackPath = viper.GetString("server.feedback_path")
	Global.Server.AuthPath = viper.GetString("server.auth_path")
	Global.Server.EnvironmentID = viper.GetString("server.environment_id")

	timeoutStr := viper.GetString("server.request_timeout")
	d, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return fmt.Errorf("invalid server.request_timeout: %w", err)
	}
	Global.Server.RequestTimeout = d

	Global.ShowThinking = viper.GetBool("show_thinking")

	Global.Logging.LogFile = viper.GetString("logging.log_file")
	Global.Logging.Persist = viper.GetBool("logging.persist")
	Global.Logging.Level = viper.GetString("logging.level")

	return nil
}

// Get returns the global settings instance
func Get() *Settings {
	if Global == nil {
		panic("config not initialized - call Init() first")
	}
	return Global
}

// ChatURL returns the fully qualified chat endpoint
func (s *Settings) ChatURL() string {
	return s.Server.BaseURL + s.Server.ChatPath
}

// FeedbackURL returns the fully qualified feedback endpoint
func (s *Settings) FeedbackURL() string {
	return s.Server.BaseURL + s.Server.FeedbackPath
}

// AuthURL returns the fully qualified token endpoint
func (s *Settings) AuthURL() string {
	return s.Server.BaseURL + s.Server.AuthPath
}
