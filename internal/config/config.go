package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "COMPANION"

	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "companion.db"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultCookieName        = "app_session"
	defaultSessionIssuer     = "tauth"
	defaultLibraryRoot       = "library"
	defaultMaxUploadBytes    = 10 * 1024 * 1024
	defaultTextCacheEntries  = 32
	defaultURLTTLSeconds     = 3600
	defaultWordsPerPage      = 500
	defaultSplitCacheEntries = 64
	defaultRatePerSecond     = 10.0
	defaultRateBurst         = 20
	defaultAllowedOrigin     = "*"
)

// AppConfig captures runtime configuration for the companion API.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string
	RatePerSecond  float64
	RateBurst      int

	DatabasePath string
	LogLevel     string
	LogFormat    string

	TAuthSigningKey string
	TAuthCookieName string
	TAuthIssuer     string

	LibraryRoot      string
	LibraryWatch     bool
	MaxUploadBytes   int64
	TextCacheEntries int
	DownloadURLTTL   time.Duration

	WordsPerPage      int
	SplitCacheEntries int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{defaultAllowedOrigin})
	configViper.SetDefault("http.rate_per_second", defaultRatePerSecond)
	configViper.SetDefault("http.rate_burst", defaultRateBurst)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultSessionIssuer)
	configViper.SetDefault("library.root", defaultLibraryRoot)
	configViper.SetDefault("library.watch", true)
	configViper.SetDefault("library.max_upload_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("library.text_cache_entries", defaultTextCacheEntries)
	configViper.SetDefault("storage.url_ttl_seconds", defaultURLTTLSeconds)
	configViper.SetDefault("reading.words_per_page", defaultWordsPerPage)
	configViper.SetDefault("reading.split_cache_entries", defaultSplitCacheEntries)
}

// ReadFile merges the config file at path (TOML, YAML, or JSON by extension) when path is set.
func ReadFile(configViper *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	configViper.SetConfigFile(path)
	if err := configViper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := read(configViper)
	if strings.TrimSpace(cfg.TAuthSigningKey) == "" {
		return AppConfig{}, fmt.Errorf("tauth.signing_secret is required")
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadOffline parses configuration for commands that never validate sessions, such as import.
func LoadOffline(configViper *viper.Viper) (AppConfig, error) {
	cfg := read(configViper)
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func read(configViper *viper.Viper) AppConfig {
	return AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		AllowedOrigins:    configViper.GetStringSlice("http.allowed_origins"),
		RatePerSecond:     configViper.GetFloat64("http.rate_per_second"),
		RateBurst:         configViper.GetInt("http.rate_burst"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         configViper.GetString("log.format"),
		TAuthSigningKey:   configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:   configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:       configViper.GetString("tauth.issuer"),
		LibraryRoot:       configViper.GetString("library.root"),
		LibraryWatch:      configViper.GetBool("library.watch"),
		MaxUploadBytes:    configViper.GetInt64("library.max_upload_bytes"),
		TextCacheEntries:  configViper.GetInt("library.text_cache_entries"),
		DownloadURLTTL:    time.Duration(configViper.GetInt("storage.url_ttl_seconds")) * time.Second,
		WordsPerPage:      configViper.GetInt("reading.words_per_page"),
		SplitCacheEntries: configViper.GetInt("reading.split_cache_entries"),
	}
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if strings.TrimSpace(c.LibraryRoot) == "" {
		return fmt.Errorf("library.root is required")
	}
	if c.WordsPerPage <= 0 {
		return fmt.Errorf("reading.words_per_page must be positive")
	}
	if c.SplitCacheEntries < 0 {
		return fmt.Errorf("reading.split_cache_entries must not be negative")
	}
	if c.TextCacheEntries < 0 {
		return fmt.Errorf("library.text_cache_entries must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("library.max_upload_bytes must be positive")
	}
	if c.DownloadURLTTL <= 0 {
		return fmt.Errorf("storage.url_ttl_seconds must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "console", "":
	default:
		return fmt.Errorf("log.format must be json or console")
	}
	return nil
}
