package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nipun-das/ai-dubbing-tool/internal/backend"
)

// Config holds the editor's runtime configuration. Values come from a YAML
// file, DUBEDIT_* environment variables, or the built-in defaults, in that
// order of precedence (env wins).
type Config struct {
	BackendURL            string           `mapstructure:"backend_url"`
	RequestTimeoutSeconds int              `mapstructure:"request_timeout_seconds"`
	BridgeAddr            string           `mapstructure:"bridge_addr"`
	InboxDir              string           `mapstructure:"inbox_dir"`
	LogLevel              string           `mapstructure:"log_level"`
	StrictTimeline        bool             `mapstructure:"strict_timeline"`
	PresetsPath           string           `mapstructure:"presets_path"`
	Dub                   backend.Settings `mapstructure:"dub"`
}

var (
	validWhisperModels = map[string]bool{
		"tiny": true, "base": true, "small": true, "medium": true, "large": true,
	}
	validDevices = map[string]bool{
		"auto": true, "cpu": true, "cuda": true, "mps": true,
	}
	validQualityModes = map[string]bool{
		"standard": true, "high_quality": true, "ultra_quality": true,
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("request_timeout_seconds", 300)
	v.SetDefault("bridge_addr", "localhost:4456")
	v.SetDefault("inbox_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("strict_timeline", false)
	v.SetDefault("presets_path", "")

	def := backend.DefaultSettings()
	v.SetDefault("dub.input_language", def.InputLanguage)
	v.SetDefault("dub.whisper_model", def.WhisperModel)
	v.SetDefault("dub.device", def.Device)
	v.SetDefault("dub.reference_duration", def.ReferenceDuration)
	v.SetDefault("dub.voice_quality_mode", def.VoiceQualityMode)
	v.SetDefault("dub.use_segments", def.UseSegments)
}

// Load reads configuration from path, or from dubedit.yaml in the working
// directory and ~/.config/dubedit when path is empty. A missing file is only
// an error when the caller named it explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DUBEDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		v.SetConfigName("dubedit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dubedit")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks Config for validity.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url must not be empty")
	}
	if c.RequestTimeoutSeconds < 1 || c.RequestTimeoutSeconds > 3600 {
		return fmt.Errorf("request_timeout_seconds must be between 1 and 3600, got %d", c.RequestTimeoutSeconds)
	}
	if c.BridgeAddr == "" {
		return fmt.Errorf("bridge_addr must not be empty")
	}
	return ValidateSettings(c.Dub)
}

// ValidateSettings checks dubbing settings against the values the backend
// accepts.
func ValidateSettings(s backend.Settings) error {
	if s.InputLanguage == "" {
		return fmt.Errorf("input language must not be empty")
	}
	if !validWhisperModels[s.WhisperModel] {
		return fmt.Errorf("whisper model must be one of tiny, base, small, medium, large, got %q", s.WhisperModel)
	}
	if !validDevices[s.Device] {
		return fmt.Errorf("device must be one of auto, cpu, cuda, mps, got %q", s.Device)
	}
	if s.ReferenceDuration < 5 || s.ReferenceDuration > 30 {
		return fmt.Errorf("reference duration must be between 5 and 30 seconds, got %g", s.ReferenceDuration)
	}
	if !validQualityModes[s.VoiceQualityMode] {
		return fmt.Errorf("voice quality mode must be one of standard, high_quality, ultra_quality, got %q", s.VoiceQualityMode)
	}
	return nil
}
