package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is the application version, overridden at build time via ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	YTDLP     YTDLPConfig     `mapstructure:"ytdlp"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadsConfig holds completed-downloads directory configuration.
type DownloadsConfig struct {
	Dir       string `mapstructure:"dir"`
	MaxListed int    `mapstructure:"max_listed"`
}

// AuthConfig holds the HTTP Basic-Auth gate configuration.
type AuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RateLimitConfig holds per-client admission limits.
type RateLimitConfig struct {
	DownloadLimit  int           `mapstructure:"download_limit"`
	DownloadWindow time.Duration `mapstructure:"download_window"`
	UpdateLimit    int           `mapstructure:"update_limit"`
	UpdateWindow   time.Duration `mapstructure:"update_window"`
}

// YTDLPConfig holds extraction tool configuration.
type YTDLPConfig struct {
	Binary         string `mapstructure:"binary"`
	FFmpegLocation string `mapstructure:"ffmpeg_location"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.streamgrab")
	}

	v.SetEnvPrefix("STREAMGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; defaults + env vars are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5051)

	v.SetDefault("downloads.dir", "./downloads")
	v.SetDefault("downloads.max_listed", 100)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.compress", true)

	v.SetDefault("ratelimit.download_limit", 10)
	v.SetDefault("ratelimit.download_window", 10*time.Minute)
	v.SetDefault("ratelimit.update_limit", 2)
	v.SetDefault("ratelimit.update_window", 5*time.Minute)

	v.SetDefault("ytdlp.binary", "yt-dlp")
	v.SetDefault("ytdlp.ffmpeg_location", "")
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
