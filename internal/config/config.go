package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seuros/folio/internal/logging"
)

// Defaults for the presence relay and the view counter.
const (
	DefaultPresenceSocketURL = "wss://api.lanyard.rest/socket"
	DefaultPresenceAPIURL    = "https://api.lanyard.rest"
	DefaultCounterBaseURL    = "https://api.countapi.xyz"
	DefaultCounterNamespace  = "huyphan68080-profile"
	DefaultCounterKey        = "portfolio-visits"

	DefaultPollInterval     = 1800 * time.Millisecond
	DefaultRequestTimeout   = 2600 * time.Millisecond
	DefaultSocketRetryDelay = 1200 * time.Millisecond
)

// Config holds application configuration
type Config struct {
	Port    string
	DataDir string

	// StoreDriver selects the local persistence backend: "sqlite" or "memory".
	StoreDriver string

	SubjectID         string
	PresenceSocketURL string
	PresenceAPIURL    string
	PollInterval      time.Duration
	RequestTimeout    time.Duration
	SocketRetryDelay  time.Duration

	CounterBaseURL   string
	CounterNamespace string
	CounterKey       string

	GeoIPDownload bool
}

// Load loads configuration from multiple sources with priority:
// 1. Command flags (via LoadWithOverrides)
// 2. Config file (./folio.toml or $XDG_CONFIG_HOME/folio/folio.toml)
// 3. Environment variables (a local .env file is loaded first)
func Load() (*Config, error) {
	return LoadWithOverrides("", "", "")
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(port, dataDir, subjectID string) (*Config, error) {
	loadDotEnv()
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, port, dataDir, subjectID), nil
}

func loadDotEnv() {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.L().Debug("skipping .env file", "error", err)
	}
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("folio")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "folio"))
	}

	return v
}

func buildConfig(v *viper.Viper, overridePort, overrideDataDir, overrideSubjectID string) *Config {
	cfg := &Config{
		Port:              "3000",
		DataDir:           "./data",
		StoreDriver:       "sqlite",
		PresenceSocketURL: DefaultPresenceSocketURL,
		PresenceAPIURL:    DefaultPresenceAPIURL,
		PollInterval:      DefaultPollInterval,
		RequestTimeout:    DefaultRequestTimeout,
		SocketRetryDelay:  DefaultSocketRetryDelay,
		CounterBaseURL:    DefaultCounterBaseURL,
		CounterNamespace:  DefaultCounterNamespace,
		CounterKey:        DefaultCounterKey,
	}

	// Apply config file values
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}
	if v.IsSet("store.driver") {
		cfg.StoreDriver = strings.ToLower(v.GetString("store.driver"))
	}
	if v.IsSet("presence.subject_id") {
		cfg.SubjectID = strings.TrimSpace(v.GetString("presence.subject_id"))
	}
	if v.IsSet("presence.socket_url") {
		if u, err := SanitizeEndpoint(v.GetString("presence.socket_url"), "ws", "wss"); err == nil {
			cfg.PresenceSocketURL = u
		} else {
			logging.L().Warn("ignoring presence.socket_url", "error", err)
		}
	}
	if v.IsSet("presence.api_url") {
		if u, err := SanitizeEndpoint(v.GetString("presence.api_url"), "http", "https"); err == nil {
			cfg.PresenceAPIURL = u
		} else {
			logging.L().Warn("ignoring presence.api_url", "error", err)
		}
	}
	if d := v.GetDuration("presence.poll_interval"); d > 0 {
		cfg.PollInterval = d
	}
	if d := v.GetDuration("presence.request_timeout"); d > 0 {
		cfg.RequestTimeout = d
	}
	if d := v.GetDuration("presence.retry_delay"); d > 0 {
		cfg.SocketRetryDelay = d
	}
	if v.IsSet("counter.base_url") {
		if u, err := SanitizeEndpoint(v.GetString("counter.base_url"), "http", "https"); err == nil {
			cfg.CounterBaseURL = u
		} else {
			logging.L().Warn("ignoring counter.base_url", "error", err)
		}
	}
	if v.IsSet("counter.namespace") {
		cfg.CounterNamespace = v.GetString("counter.namespace")
	}
	if v.IsSet("counter.key") {
		cfg.CounterKey = v.GetString("counter.key")
	}
	if v.IsSet("geoip.download") {
		cfg.GeoIPDownload = v.GetBool("geoip.download")
	}

	// Environment fallback (only if not configured)
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if !v.IsSet("data_dir") {
		if envDataDir := os.Getenv("DATA_DIR"); envDataDir != "" {
			cfg.DataDir = envDataDir
		}
	}
	if !v.IsSet("store.driver") {
		if envDriver := os.Getenv("FOLIO_STORE"); envDriver != "" {
			cfg.StoreDriver = strings.ToLower(envDriver)
		}
	}
	if cfg.SubjectID == "" {
		cfg.SubjectID = strings.TrimSpace(firstEnv("FOLIO_SUBJECT_ID", "DISCORD_USER_ID"))
	}
	if !v.IsSet("geoip.download") {
		cfg.GeoIPDownload = os.Getenv("GEOIP_DOWNLOAD") == "true"
	}

	// Apply overrides (flags) last
	if overridePort != "" {
		cfg.Port = overridePort
	}
	if overrideDataDir != "" {
		cfg.DataDir = overrideDataDir
	}
	if overrideSubjectID != "" {
		cfg.SubjectID = strings.TrimSpace(overrideSubjectID)
	}

	return cfg
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
