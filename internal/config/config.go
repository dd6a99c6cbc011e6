package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	// The IMA sample tags end with an empty correlator which the ad client fills per request
	defaultPreRollTag  = "https://pubads.g.doubleclick.net/gampad/ads?iu=/21775744923/external/single_preroll_skippable&sz=640x480&ciu_szs=300x250%2C728x90&gdfp_req=1&output=vast&unviewed_position_start=1&env=vp&impl=s&correlator="
	defaultMidRollTag  = "https://pubads.g.doubleclick.net/gampad/ads?iu=/21775744923/external/single_ad_samples&sz=640x480&cust_params=sample_ct%3Dlinear&ciu_szs=300x250%2C728x90&gdfp_req=1&output=vast&unviewed_position_start=1&env=vp&impl=s&correlator="
	defaultPostRollTag = "https://pubads.g.doubleclick.net/gampad/ads?iu=/21775744923/external/single_ad_samples&sz=640x480&cust_params=sample_ct%3Dlinearvpaid2js&ciu_szs=300x250%2C728x90&gdfp_req=1&output=vast&unviewed_position_start=1&env=vp&impl=s&correlator="

	// AdTagDisabled can be used as a tag value to switch a slot off.  An empty value cannot be used for this as it
	// would be overwritten by the default when merging.
	AdTagDisabled = "off"
)

// Config represents the application configuration
type Config struct {
	Player   PlayerConfig   `yaml:"player,omitempty"`
	Ads      AdsConfig      `yaml:"ads,omitempty"`
	Controls ControlsConfig `yaml:"controls,omitempty"`
	Catalog  []CatalogEntry `yaml:"catalog,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// PlayerConfig contains video surface settings
type PlayerConfig struct {
	Type string `yaml:"type,omitempty"` // "mpv"
	Path string `yaml:"path,omitempty"`
	Args string `yaml:"args,omitempty"`
	// Base path for the IPC sockets.  Each surface appends its own suffix.
	SocketPath string `yaml:"socket_path,omitempty"`
}

// AdsConfig contains ad insertion settings
type AdsConfig struct {
	PreRollTag  string `yaml:"pre_roll_tag,omitempty"`
	MidRollTag  string `yaml:"mid_roll_tag,omitempty"`
	PostRollTag string `yaml:"post_roll_tag,omitempty"`
	// Fraction of the content duration at which the mid-roll fires
	MidRollFraction       float64 `yaml:"mid_roll_fraction,omitempty"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds,omitempty"`
	StartTimeoutSeconds   int     `yaml:"start_timeout_seconds,omitempty"`
	MaxWrapperDepth       int     `yaml:"max_wrapper_depth,omitempty"`
}

// ControlsConfig contains settings for the controls overlay
type ControlsConfig struct {
	SkipStepSeconds  float64 `yaml:"skip_step_seconds,omitempty"`
	SeekSettleMillis int     `yaml:"seek_settle_millis,omitempty"`
}

// CatalogEntry is a video that can be picked from the catalog view
type CatalogEntry struct {
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
}

// MetricsConfig contains the prometheus endpoint settings.  Metrics are not served when ListenAddress is empty.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address,omitempty"`
}

// LoggingConfig contains log related settings
type LoggingConfig struct {
	Level    string `yaml:"level,omitempty"`
	FilePath string `yaml:"file_path,omitempty"`
}

// Load builds a configuration struct from multiple sources using these steps:
// 1. Create a base config with default values
// 2. If no config file exists on disk, save the default config to that location
// 3. Apply 'dynamic' properties.  Dynamic properties are those that are determined at runtime, for example log file location which is different per OS.
// 4. Load & merge the config file, overwriting any defaults with user-specified values
// 5. Apply environment variable overrides
func Load() (*Config, error) {
	// 1. Start with base defaults
	cfg := createBaseDefaultConfig()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("unable to determine config file path: %w", err)
	}

	// 2. If no config file exists on disk, then write a default one
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		// If there is an error saving the default config, then still let the application startup using the defaults.
		_ = save(cfg, configPath)
	}

	// 3. Apply dynamic defaults if necessary
	applyDynamicDefaults(cfg)

	// 4. Load the config from disk and merge it into the base defaults
	fileConfig, err := loadFromDisk(configPath)
	if err != nil {
		return nil, err
	}
	// Overrides the config with any values coming from the loaded file
	if err = mergo.Merge(cfg, fileConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("error merging config loaded from disk: %w", err)
	}

	// 5. Apply the environment variable overrides which take precedence
	applyEnvVarOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise break the playback controller
func (c *Config) Validate() error {
	if c.Ads.MidRollFraction <= 0 || c.Ads.MidRollFraction >= 1 {
		return fmt.Errorf("ads.mid_roll_fraction must be between 0 and 1 exclusive, got %v", c.Ads.MidRollFraction)
	}
	if c.Controls.SkipStepSeconds <= 0 {
		return fmt.Errorf("controls.skip_step_seconds must be positive, got %v", c.Controls.SkipStepSeconds)
	}
	for i, entry := range c.Catalog {
		if strings.TrimSpace(entry.Source) == "" {
			return fmt.Errorf("catalog entry %d (%q) has no source", i, entry.Title)
		}
	}
	return nil
}

// AdTag returns the tag for a slot name ("pre_roll", "mid_roll", "post_roll"), or an empty string when the slot is
// switched off.
func (a AdsConfig) AdTag(slot string) string {
	var tag string
	switch slot {
	case "pre_roll":
		tag = a.PreRollTag
	case "mid_roll":
		tag = a.MidRollTag
	case "post_roll":
		tag = a.PostRollTag
	}
	if strings.EqualFold(strings.TrimSpace(tag), AdTagDisabled) {
		return ""
	}
	return tag
}

func (a AdsConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func (a AdsConfig) StartTimeout() time.Duration {
	return time.Duration(a.StartTimeoutSeconds) * time.Second
}

func (c ControlsConfig) SeekSettle() time.Duration {
	return time.Duration(c.SeekSettleMillis) * time.Millisecond
}

// applyDynamicDefaults sets runtime-determined default values for any properties that haven't been explicitly configured.
// Unlike static defaults, these values might change between runs based on the environment or system configuration.
func applyDynamicDefaults(cfg *Config) {
	cfg.Logging.FilePath = defaultLogFilePath()
	cfg.Player.SocketPath = defaultSocketPath()
}

// loadFromDisk loads the YAML config from disk and returns the unmarshalled Config
func loadFromDisk(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return cfg, nil
}

func save(cfg *Config, configPath string) error {
	// Create config dir if not exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// UpdateConfig reads the existing config, applies the update function, and saves it back to disk
func UpdateConfig(updateFn func(*Config)) error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("unable to determine config file path: %w", err)
	}

	cfg, err := loadFromDisk(configPath)
	if err != nil {
		return fmt.Errorf("error loading config file from disk: %w", err)
	}

	// Apply the updates
	updateFn(cfg)

	return save(cfg, configPath)
}

// getConfigPath returns the path to the config file.  Uses the environment variable override if present, else tries
// to use OS config location defaults.
func getConfigPath() (string, error) {
	configPath := os.Getenv("ADPLAY_CONFIG_PATH")
	if configPath != "" {
		return configPath, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "adplay", "config.yaml"), nil
}

// createBaseDefaultConfig creates a config with all default values
func createBaseDefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			Type: "mpv",
			Path: "mpv",
		},
		Ads: AdsConfig{
			PreRollTag:            defaultPreRollTag,
			MidRollTag:            defaultMidRollTag,
			PostRollTag:           defaultPostRollTag,
			MidRollFraction:       0.5,
			RequestTimeoutSeconds: 10,
			StartTimeoutSeconds:   20,
			MaxWrapperDepth:       5,
		},
		Controls: ControlsConfig{
			SkipStepSeconds:  10,
			SeekSettleMillis: 100,
		},
		Catalog: []CatalogEntry{
			{
				Title:  "Family Matter",
				Source: "https://roya-vod.ercdn.net/hls/i/r0/ixev5jcihldq43huwlykbswxmt0qv1qcaojfyx8h/ixev5jcihldq43huwlykbswxmt0qv1qcaojfyx8h_600.mp4",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultSocketPath returns the base path for mpv IPC sockets
func defaultSocketPath() string {
	if runtime.GOOS == "windows" {
		// Windows uses named pipes instead of unix sockets
		return `\\.\pipe\adplay-mpv`
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "adplay-mpv")
	}
	return filepath.Join(os.TempDir(), "adplay-mpv")
}

// defaultLogFilePath returns the path to the log file.  Tries to use expected OS location defaults.
func defaultLogFilePath() string {
	var basePath string
	homedir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to logging in the current directory if home directory cannot be determined
		return filepath.Join(".", "adplay.log")
	}

	switch runtime.GOOS {
	case "windows":
		// Windows:  %LOCALAPPDATA%\adplay\logs
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			basePath = filepath.Join(appData, "adplay", "logs")
		} else {
			basePath = filepath.Join(homedir, "AppData", "local", "adplay", "logs")
		}
	case "darwin":
		// macOS:  ~/Library/Logs/adplay
		basePath = filepath.Join(homedir, "Library", "Logs", "adplay")
	default:
		// Linux/BSD:  XDG_STATE_HOME
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			basePath = filepath.Join(xdgState, "adplay", "logs")
		} else {
			basePath = filepath.Join(homedir, ".local", "state", "adplay", "logs")
		}
	}

	err = os.MkdirAll(basePath, 0700)
	if err != nil {
		// If we failed to create the directory, fallback to logging in the current directory
		return filepath.Join(".", "adplay.log")
	}
	return filepath.Join(basePath, "adplay.log")
}
