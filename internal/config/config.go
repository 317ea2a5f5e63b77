package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jask/routesync/core/bridge"
	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/navigator"
	"github.com/jask/routesync/core/stack"
)

// Config holds application configuration.
type Config struct {
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Store      StoreConfig      `mapstructure:"store"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Diff       DiffConfig       `mapstructure:"diff"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Inspector  InspectorConfig  `mapstructure:"inspector"`
}

// DispatcherConfig controls command queueing and timeouts.
type DispatcherConfig struct {
	BusyPolicy          string        `mapstructure:"busy_policy"`
	QueueSize           int           `mapstructure:"queue_size"`
	RegistrationTimeout time.Duration `mapstructure:"registration_timeout"`
	CommandTimeout      time.Duration `mapstructure:"command_timeout"`
	PushTimeout         time.Duration `mapstructure:"push_timeout"`
}

// StoreConfig controls removal batching.
type StoreConfig struct {
	RemovalDebounce time.Duration `mapstructure:"removal_debounce"`
	MaxDrainPasses  int           `mapstructure:"max_drain_passes"`
}

// BridgeConfig controls pop de-duplication.
type BridgeConfig struct {
	RecentlyRemovedTTL  time.Duration `mapstructure:"recently_removed_ttl"`
	RecentlyRemovedSize int           `mapstructure:"recently_removed_size"`
}

// DiffConfig controls the options comparator.
type DiffConfig struct {
	Strict bool `mapstructure:"strict"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// DatabaseConfig holds sqlite settings for the command journal.
type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Journal bool   `mapstructure:"journal"`
}

// InspectorConfig holds settings for the interactive inspector.
type InspectorConfig struct {
	Templates   string        `mapstructure:"templates"`
	PeerLatency time.Duration `mapstructure:"peer_latency"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "routesync")
}

func configPath() string {
	if p := os.Getenv("ROUTESYNC_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "routesync", "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatcher.busy_policy", string(dispatch.PolicyQueue))
	v.SetDefault("dispatcher.queue_size", dispatch.DefaultQueueSize)
	v.SetDefault("dispatcher.registration_timeout", dispatch.DefaultRegistrationTimeout)
	v.SetDefault("dispatcher.command_timeout", dispatch.DefaultCommandTimeout)
	v.SetDefault("dispatcher.push_timeout", dispatch.DefaultPushTimeout)
	v.SetDefault("store.removal_debounce", stack.DefaultDebounce)
	v.SetDefault("store.max_drain_passes", stack.DefaultMaxDrainPasses)
	v.SetDefault("bridge.recently_removed_ttl", bridge.DefaultRemovedTTL)
	v.SetDefault("bridge.recently_removed_size", bridge.DefaultRemovedSize)
	v.SetDefault("diff.strict", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.path", filepath.Join(dataDir(), "routesync.log"))
	v.SetDefault("database.path", filepath.Join(dataDir(), "journal.db"))
	v.SetDefault("database.journal", true)
	v.SetDefault("inspector.templates", "")
	v.SetDefault("inspector.peer_latency", 50*time.Millisecond)
	v.SetDefault("inspector.metrics_addr", "")
}

// Load reads configuration from file and env. Env var overrides use prefix ROUTESYNC_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("ROUTESYNC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "routesync"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ROUTESYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing file is fine, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values the navigator cannot run with.
func (c Config) Validate() error {
	if _, err := dispatch.ParsePolicy(c.Dispatcher.BusyPolicy); err != nil {
		return fmt.Errorf("dispatcher.busy_policy: %w", err)
	}
	if c.Dispatcher.QueueSize < 1 {
		return fmt.Errorf("dispatcher.queue_size must be positive, got %d", c.Dispatcher.QueueSize)
	}
	if c.Store.MaxDrainPasses < 1 {
		return fmt.Errorf("store.max_drain_passes must be positive, got %d", c.Store.MaxDrainPasses)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Navigator converts the loaded settings into the core navigator config.
func (c Config) Navigator() navigator.Config {
	policy, _ := dispatch.ParsePolicy(c.Dispatcher.BusyPolicy)
	return navigator.Config{
		Dispatch: dispatch.Config{
			BusyPolicy:          policy,
			QueueSize:           c.Dispatcher.QueueSize,
			RegistrationTimeout: c.Dispatcher.RegistrationTimeout,
			CommandTimeout:      c.Dispatcher.CommandTimeout,
			PushTimeout:         c.Dispatcher.PushTimeout,
		},
		Store: stack.Config{
			Debounce:       c.Store.RemovalDebounce,
			MaxDrainPasses: c.Store.MaxDrainPasses,
		},
		Bridge: bridge.Config{
			RemovedTTL:  c.Bridge.RecentlyRemovedTTL,
			RemovedSize: c.Bridge.RecentlyRemovedSize,
		},
		DiffStrict: c.Diff.Strict,
	}
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("dispatcher.busy_policy", cfg.Dispatcher.BusyPolicy)
	v.Set("dispatcher.queue_size", cfg.Dispatcher.QueueSize)
	v.Set("dispatcher.registration_timeout", cfg.Dispatcher.RegistrationTimeout.String())
	v.Set("dispatcher.command_timeout", cfg.Dispatcher.CommandTimeout.String())
	v.Set("dispatcher.push_timeout", cfg.Dispatcher.PushTimeout.String())
	v.Set("store.removal_debounce", cfg.Store.RemovalDebounce.String())
	v.Set("store.max_drain_passes", cfg.Store.MaxDrainPasses)
	v.Set("bridge.recently_removed_ttl", cfg.Bridge.RecentlyRemovedTTL.String())
	v.Set("bridge.recently_removed_size", cfg.Bridge.RecentlyRemovedSize)
	v.Set("diff.strict", cfg.Diff.Strict)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.path", cfg.Log.Path)
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.journal", cfg.Database.Journal)
	v.Set("inspector.templates", cfg.Inspector.Templates)
	v.Set("inspector.peer_latency", cfg.Inspector.PeerLatency.String())
	v.Set("inspector.metrics_addr", cfg.Inspector.MetricsAddr)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
