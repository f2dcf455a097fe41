package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	Directory   string `mapstructure:"directory" yaml:"directory"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
}

type RootConfig struct {
	ActiveConfig string              `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig      `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Display      *DisplayConfig      `mapstructure:"display,omitempty" yaml:"display,omitempty"`
	Engine       *EngineConfig       `mapstructure:"engine,omitempty" yaml:"engine,omitempty"`
	Control      *ControlConfig      `mapstructure:"control,omitempty" yaml:"control,omitempty"`
	Configs      map[string]*Profile `mapstructure:"configs" yaml:"configs"`
}

// Profile is one entry of the configs section. Unset fields fall back to the
// default profile, then to built-in defaults.
type Profile struct {
	Video  VideoConfig  `mapstructure:"video" yaml:"video"`
	Audio  AudioProfile `mapstructure:"audio" yaml:"audio"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

// AudioProfile uses pointers so an explicit false survives the merge.
type AudioProfile struct {
	Enabled       *bool  `mapstructure:"enabled" yaml:"enabled,omitempty"`
	InputDevice   string `mapstructure:"input_device" yaml:"input_device,omitempty"`
	OutputDevice  string `mapstructure:"output_device" yaml:"output_device,omitempty"`
	InputEnabled  *bool  `mapstructure:"input_enabled" yaml:"input_enabled,omitempty"`
	OutputEnabled *bool  `mapstructure:"output_enabled" yaml:"output_enabled,omitempty"`
}

type Config struct {
	Profile string        `mapstructure:"-" yaml:"profile"`
	Video   VideoConfig   `mapstructure:"video" yaml:"video"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Control ControlConfig `mapstructure:"control" yaml:"control"`
}

type VideoConfig struct {
	Framerate int    `mapstructure:"framerate" yaml:"framerate"`
	Quality   int    `mapstructure:"quality" yaml:"quality"` // 1..100, 100 = best
	Screen    string `mapstructure:"screen" yaml:"screen"`   // x11 display, avfoundation index or gdigrab target
}

type AudioConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	InputDevice   string `mapstructure:"input_device" yaml:"input_device"` // empty = first available
	OutputDevice  string `mapstructure:"output_device" yaml:"output_device"`
	InputEnabled  bool   `mapstructure:"input_enabled" yaml:"input_enabled"`
	OutputEnabled bool   `mapstructure:"output_enabled" yaml:"output_enabled"`
}

type OutputConfig struct {
	Directory   string `mapstructure:"directory" yaml:"directory"`
	Container   string `mapstructure:"container" yaml:"container"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
}

type DisplayConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type EngineConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"` // "ffmpeg", "auto"
	FFmpegPath  string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

type ControlConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Profile: "default",
		Video: VideoConfig{
			Framerate: 60,
			Quality:   100,
			Screen:    ":0.0",
		},
		Audio: AudioConfig{
			Enabled:       true,
			InputEnabled:  true,
			OutputEnabled: true,
		},
		Output: OutputConfig{
			Directory:   filepath.Join(home, "Videos", "Captures"),
			Container:   "mp4",
			HistoryFile: filepath.Join(home, ".local", "share", "screencap", "paths.txt"),
		},
		Display: DisplayConfig{Interval: 10 * time.Millisecond},
		Engine: EngineConfig{
			Backend:     "auto",
			FFmpegPath:  "ffmpeg",
			StopTimeout: 5 * time.Second,
		},
	}
}

var envBindings = map[string]string{
	"active_config":               "SCREENCAP_PROFILE",
	"globals.output.directory":    "SCREENCAP_OUTPUT_DIRECTORY",
	"globals.output.history_file": "SCREENCAP_HISTORY_FILE",
	"engine.ffmpeg_path":          "SCREENCAP_FFMPEG_PATH",
	"control.listen":              "SCREENCAP_CONTROL_LISTEN",
}

// LoadWithProfile reads configFile (if present) and resolves the requested
// profile, falling back to active_config and then "default".
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	loadDotEnv()

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SCREENCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		slog.Debug("Config file not found, using defaults", "path", configFile)
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return resolve(&root, profile)
}

func resolve(root *RootConfig, profile string) (*Config, error) {
	configName := profile
	if configName == "" {
		configName = root.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	cfg := Default()
	if base, ok := root.Configs["default"]; ok {
		cfg = mergeProfile(cfg, base)
	}
	if configName != "default" {
		selected, ok := root.Configs[configName]
		if !ok {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		cfg = mergeProfile(cfg, selected)
	}
	cfg.Profile = configName

	if root.Display != nil && root.Display.Interval > 0 {
		cfg.Display.Interval = root.Display.Interval
	}
	if root.Engine != nil {
		if root.Engine.Backend != "" {
			cfg.Engine.Backend = root.Engine.Backend
		}
		if root.Engine.FFmpegPath != "" {
			cfg.Engine.FFmpegPath = root.Engine.FFmpegPath
		}
		if root.Engine.StopTimeout > 0 {
			cfg.Engine.StopTimeout = root.Engine.StopTimeout
		}
	}
	if root.Control != nil {
		cfg.Control.Listen = root.Control.Listen
	}

	// Globals take priority over profile-specific output settings
	if root.Globals != nil {
		if root.Globals.Output.Directory != "" {
			cfg.Output.Directory = root.Globals.Output.Directory
		}
		if root.Globals.Output.HistoryFile != "" {
			cfg.Output.HistoryFile = root.Globals.Output.HistoryFile
		}
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Output.HistoryFile = expandPath(cfg.Output.HistoryFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// mergeProfile overlays the non-zero fields of profile onto a copy of base.
func mergeProfile(base *Config, profile *Profile) *Config {
	result := *base
	if profile == nil {
		return &result
	}

	if profile.Video.Framerate != 0 {
		result.Video.Framerate = profile.Video.Framerate
	}
	if profile.Video.Quality != 0 {
		result.Video.Quality = profile.Video.Quality
	}
	if profile.Video.Screen != "" {
		result.Video.Screen = profile.Video.Screen
	}

	if profile.Audio.Enabled != nil {
		result.Audio.Enabled = *profile.Audio.Enabled
	}
	if profile.Audio.InputDevice != "" {
		result.Audio.InputDevice = profile.Audio.InputDevice
	}
	if profile.Audio.OutputDevice != "" {
		result.Audio.OutputDevice = profile.Audio.OutputDevice
	}
	if profile.Audio.InputEnabled != nil {
		result.Audio.InputEnabled = *profile.Audio.InputEnabled
	}
	if profile.Audio.OutputEnabled != nil {
		result.Audio.OutputEnabled = *profile.Audio.OutputEnabled
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
	}
	if profile.Output.Container != "" {
		result.Output.Container = profile.Output.Container
	}
	if profile.Output.HistoryFile != "" {
		result.Output.HistoryFile = profile.Output.HistoryFile
	}

	return &result
}

var supportedContainers = map[string]bool{
	"mp4": true,
	"mkv": true,
	"mov": true,
}

// Validate checks value ranges of a resolved configuration.
func Validate(cfg *Config) error {
	if cfg.Video.Framerate <= 0 || cfg.Video.Framerate > 240 {
		return fmt.Errorf("video.framerate must be between 1 and 240, got: %d", cfg.Video.Framerate)
	}
	if cfg.Video.Quality < 1 || cfg.Video.Quality > 100 {
		return fmt.Errorf("video.quality must be between 1 and 100, got: %d", cfg.Video.Quality)
	}
	if !supportedContainers[strings.ToLower(cfg.Output.Container)] {
		return fmt.Errorf("output.container must be one of mp4, mkv, mov, got: %s", cfg.Output.Container)
	}
	if cfg.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if cfg.Output.HistoryFile == "" {
		return fmt.Errorf("output.history_file is required")
	}
	if cfg.Display.Interval <= 0 {
		return fmt.Errorf("display.interval must be > 0, got: %s", cfg.Display.Interval)
	}
	if cfg.Engine.StopTimeout <= 0 {
		return fmt.Errorf("engine.stop_timeout must be > 0, got: %s", cfg.Engine.StopTimeout)
	}
	switch strings.ToLower(cfg.Engine.Backend) {
	case "", "auto", "ffmpeg":
	default:
		return fmt.Errorf("engine.backend must be 'auto' or 'ffmpeg', got: %s", cfg.Engine.Backend)
	}
	if cfg.Audio.Enabled && !cfg.Audio.InputEnabled && !cfg.Audio.OutputEnabled {
		return fmt.Errorf("audio is enabled but both input_enabled and output_enabled are false")
	}
	return nil
}

// loadDotEnv pulls SCREENCAP_* variables from a .env file in the working
// directory. Variables already set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Ignoring unreadable .env file", "error", err)
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ExpandPath is expandPath for callers outside the package.
func ExpandPath(path string) string {
	return expandPath(path)
}
