// Package config provides YAML-based configuration loading for petasos.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the node/application
    AppName string `mapstructure:"app_name"`

    // NodeID is the processing-plant identifier this node reports as executor
    NodeID string `mapstructure:"node_id"`

    // ParticipantName is the subsystem participant this node hosts
    ParticipantName string `mapstructure:"participant_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Tasking holds task-coordination tunables
    Tasking TaskingConfig `mapstructure:"tasking"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// TaskingConfig tunes the coordination core.
type TaskingConfig struct {
    // ReallocationWaitSeconds is how long the node-affinity preference holds
    // before a non-affine requester may take over a waiting task.
    ReallocationWaitSeconds int `mapstructure:"reallocation_wait_seconds"`
    // RegistrationRetrySeconds is the base backoff between Ponos registration attempts.
    RegistrationRetrySeconds int `mapstructure:"registration_retry_seconds"`
    // RegistrationMaxAttempts caps Ponos registration attempts before hard failure.
    RegistrationMaxAttempts int `mapstructure:"registration_max_attempts"`
    // CacheTTLMinutes is how long finalised tasks stay in the local cache.
    CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
    // ConcurrencyMode: standalone or clustered
    ConcurrencyMode string `mapstructure:"concurrency_mode"`
    // ResilienceMode: standard or multisite
    ResilienceMode string `mapstructure:"resilience_mode"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName:         "petasos-node",
        NodeID:          "plant-1",
        ParticipantName: "petasos",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/petasos.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Tasking: TaskingConfig{
            ReallocationWaitSeconds:  30,
            RegistrationRetrySeconds: 15,
            RegistrationMaxAttempts:  5,
            CacheTTLMinutes:          15,
            ConcurrencyMode:          "standalone",
            ResilienceMode:           "standard",
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix PETASOS and `.`/`-` are replaced with `_`.
// Example: PETASOS_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("PETASOS")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("node_id", cfg.NodeID)
    v.SetDefault("participant_name", cfg.ParticipantName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("tasking.reallocation_wait_seconds", cfg.Tasking.ReallocationWaitSeconds)
    v.SetDefault("tasking.registration_retry_seconds", cfg.Tasking.RegistrationRetrySeconds)
    v.SetDefault("tasking.registration_max_attempts", cfg.Tasking.RegistrationMaxAttempts)
    v.SetDefault("tasking.cache_ttl_minutes", cfg.Tasking.CacheTTLMinutes)
    v.SetDefault("tasking.concurrency_mode", cfg.Tasking.ConcurrencyMode)
    v.SetDefault("tasking.resilience_mode", cfg.Tasking.ResilienceMode)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("PETASOS_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `petasos`
        v.SetConfigName("petasos")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".petasos"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    if strings.TrimSpace(c.NodeID) == "" {
        c.NodeID = "plant-1"
    }
    if strings.TrimSpace(c.ParticipantName) == "" {
        c.ParticipantName = "petasos"
    }

    t := &c.Tasking
    if t.ReallocationWaitSeconds <= 0 { t.ReallocationWaitSeconds = 30 }
    if t.RegistrationRetrySeconds <= 0 { t.RegistrationRetrySeconds = 15 }
    if t.RegistrationMaxAttempts <= 0 { t.RegistrationMaxAttempts = 5 }
    if t.CacheTTLMinutes <= 0 { t.CacheTTLMinutes = 15 }
    t.ConcurrencyMode = strings.ToLower(strings.TrimSpace(t.ConcurrencyMode))
    switch t.ConcurrencyMode {
    case "", "standalone":
        t.ConcurrencyMode = "standalone"
    case "clustered":
        // ok
    default:
        return fmt.Errorf("invalid tasking.concurrency_mode: %q", t.ConcurrencyMode)
    }
    t.ResilienceMode = strings.ToLower(strings.TrimSpace(t.ResilienceMode))
    switch t.ResilienceMode {
    case "", "standard":
        t.ResilienceMode = "standard"
    case "multisite":
        // ok
    default:
        return fmt.Errorf("invalid tasking.resilience_mode: %q", t.ResilienceMode)
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
