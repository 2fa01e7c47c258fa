// Package config holds the explicitly constructed configuration passed by
// reference into the router and adapters. Nothing here is process-global.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config carries every tunable of the playback core.
type Config struct {
	// External player (mocp).
	MocCommand      string `koanf:"moc_command"`
	MocPlaylistPath string `koanf:"moc_playlist_path"`

	// Adapter timing.
	CommandTimeout time.Duration `koanf:"command_timeout"`
	StatusCacheTTL time.Duration `koanf:"status_cache_ttl"`
	BackoffMin     time.Duration `koanf:"backoff_min"`
	BackoffMax     time.Duration `koanf:"backoff_max"`

	// Router timing.
	ExternalPollInterval time.Duration `koanf:"external_poll_interval"`
	InternalPollInterval time.Duration `koanf:"internal_poll_interval"`
	BootstrapDelay       time.Duration `koanf:"bootstrap_delay"`
	SeekSettleDelay      time.Duration `koanf:"seek_settle_delay"`
	SeekApplyDelay       time.Duration `koanf:"seek_apply_delay"`
	UserActionGuard      time.Duration `koanf:"user_action_guard"`
	SelfWriteWindow      time.Duration `koanf:"self_write_window"`

	// Thresholds, in seconds of playback time.
	SeekEpsilon          float64 `koanf:"seek_epsilon"`
	FinishEpsilonStopped float64 `koanf:"finish_epsilon_stopped"`
	FinishEpsilonPlaying float64 `koanf:"finish_epsilon_playing"`

	// Batches larger than this take the single-replace sync path instead of
	// per-track external appends.
	SmallPlaylistThreshold int `koanf:"small_playlist_threshold"`

	VideoExtensions []string `koanf:"video_extensions"`
	AudioExtensions []string `koanf:"audio_extensions"`

	LogLevel string `koanf:"log_level"`
}

// Default returns the configuration used when no file overrides it. The
// timing constants mirror the polling/cache design in the sync engine.
func Default() *Config {
	return &Config{
		MocCommand:      "mocp",
		MocPlaylistPath: defaultPlaylistPath(),

		CommandTimeout: 5 * time.Second,
		StatusCacheTTL: 200 * time.Millisecond,
		BackoffMin:     time.Second,
		BackoffMax:     5 * time.Second,

		ExternalPollInterval: 500 * time.Millisecond,
		InternalPollInterval: 500 * time.Millisecond,
		BootstrapDelay:       time.Second,
		SeekSettleDelay:      200 * time.Millisecond,
		SeekApplyDelay:       150 * time.Millisecond,
		UserActionGuard:      time.Second,
		SelfWriteWindow:      2 * time.Second,

		SeekEpsilon:          0.5,
		FinishEpsilonStopped: 0.5,
		FinishEpsilonPlaying: 1.0,

		SmallPlaylistThreshold: 20,

		VideoExtensions: []string{".mp4", ".mkv", ".avi", ".webm", ".mov", ".m4v"},
		AudioExtensions: []string{".mp3", ".flac", ".ogg", ".oga", ".wav", ".m4a", ".opus"},

		LogLevel: "info",
	}
}

// Load reads configuration files over the defaults. Files are tried in
// priority order (last wins): XDG config dir, then ./config.toml, then an
// explicit path if given.
func Load(explicit string) (*Config, error) {
	k := koanf.New(".")

	paths := []string{
		filepath.Join(xdg.ConfigHome, "chorus", "config.toml"),
		"config.toml",
	}
	if explicit != "" {
		paths = append(paths, explicit)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Result:           cfg,
		},
	}); err != nil {
		return nil, err
	}

	cfg.MocPlaylistPath = expandPath(cfg.MocPlaylistPath)
	return cfg, nil
}

// IsVideoFile reports whether path routes to the internal player
// unconditionally.
func (c *Config) IsVideoFile(path string) bool {
	ext := filepath.Ext(path)
	for _, v := range c.VideoExtensions {
		if strings.EqualFold(ext, v) {
			return true
		}
	}
	return false
}

// IsAudioFile reports whether path is a playable audio file.
func (c *Config) IsAudioFile(path string) bool {
	ext := filepath.Ext(path)
	for _, a := range c.AudioExtensions {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

func defaultPlaylistPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".moc", "playlist.m3u")
	}
	return filepath.Join(".moc", "playlist.m3u")
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
