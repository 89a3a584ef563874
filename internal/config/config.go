package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultWebhookPath     = "/webhook"
	DefaultLINEAPIURL      = "https://api.line.me"
	DefaultLINEDataURL     = "https://api-data.line.me"
	DefaultMaxContentBytes = 10 << 20
	DefaultTimeoutSeconds  = 30
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Line     LineConfig     `toml:"line"`
	Model    ModelConfig    `toml:"model"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Addr        string `toml:"addr" validate:"required"`
	WebhookPath string `toml:"webhook_path" validate:"required,startswith=/"`
}

type LineConfig struct {
	ChannelAccessToken string `toml:"channel_access_token" validate:"required"`
	ChannelSecret      string `toml:"channel_secret" validate:"required"`
	APIBaseURL         string `toml:"api_base_url" validate:"required,url"`
	DataBaseURL        string `toml:"data_base_url" validate:"required,url"`
	MaxContentBytes    int64  `toml:"max_content_bytes" validate:"gt=0"`
	TimeoutSeconds     int    `toml:"timeout_seconds" validate:"gt=0"`
}

func (c LineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ModelConfig struct {
	Location         string `toml:"location" validate:"required"`
	MetadataLocation string `toml:"metadata_location"`
	RuntimeLibrary   string `toml:"runtime_library"`
	InputName        string `toml:"input_name"`
	OutputName       string `toml:"output_name"`
}

// PipelineConfig binds a model to its label order, its input normalization
// and the reply style. Labels may be empty when the model metadata lists them.
type PipelineConfig struct {
	Labels        []string `toml:"labels" validate:"dive,required"`
	Normalization string   `toml:"normalization" validate:"required,oneof=scale_0_1 scale_neg1_1 raw"`
	ReplyStyle    string   `toml:"reply_style" validate:"oneof=text card"`
	FallbackText  string   `toml:"fallback_text"`
	CardTitle     string   `toml:"card_title"`
	CardBrand     string   `toml:"card_brand"`
	CardFooter    string   `toml:"card_footer"`
}

// envOverlay lists the variables that override the file. Empty means unset.
type envOverlay struct {
	ChannelAccessToken string `env:"CHANNEL_ACCESS_TOKEN"`
	ChannelSecret      string `env:"CHANNEL_SECRET"`
	ModelLocation      string `env:"MODEL_LOCATION"`
	MetadataLocation   string `env:"MODEL_METADATA_LOCATION"`
	RuntimeLibrary     string `env:"ONNXRUNTIME_LIB"`
	Labels             string `env:"LABELS"`
	Normalization      string `env:"NORMALIZATION"`
	ReplyStyle         string `env:"REPLY_STYLE"`
	Port               string `env:"PORT"`
	LogLevel           string `env:"LOG_LEVEL"`
}

func defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:        DefaultHTTPAddr,
			WebhookPath: DefaultWebhookPath,
		},
		Line: LineConfig{
			APIBaseURL:      DefaultLINEAPIURL,
			DataBaseURL:     DefaultLINEDataURL,
			MaxContentBytes: DefaultMaxContentBytes,
			TimeoutSeconds:  DefaultTimeoutSeconds,
		},
		Pipeline: PipelineConfig{
			ReplyStyle: "text",
		},
	}
}

// Load reads the TOML file at path (a missing file is allowed), applies the
// process environment on top and validates the result.
func Load(path string) (Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return LoadWithEnv(path, es)
}

func LoadWithEnv(path string, es env.EnvSet) (Config, error) {
	cfg, err := read(path, es)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOffline is Load for commands that never talk to LINE: the line and
// server sections are not validated.
func LoadOffline(path string) (Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg, err := read(path, es)
	if err != nil {
		return cfg, err
	}
	v := validator.New()
	for _, section := range []any{cfg.Log, cfg.Model, cfg.Pipeline} {
		if err := v.Struct(section); err != nil {
			return cfg, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}

func read(path string, es env.EnvSet) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	var overlay envOverlay
	if err := env.Unmarshal(es, &overlay); err != nil {
		return cfg, fmt.Errorf("decode environment: %w", err)
	}
	overlay.apply(&cfg)
	return cfg, nil
}

func (o envOverlay) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Line.ChannelAccessToken, o.ChannelAccessToken)
	set(&cfg.Line.ChannelSecret, o.ChannelSecret)
	set(&cfg.Model.Location, o.ModelLocation)
	set(&cfg.Model.MetadataLocation, o.MetadataLocation)
	set(&cfg.Model.RuntimeLibrary, o.RuntimeLibrary)
	set(&cfg.Pipeline.Normalization, o.Normalization)
	set(&cfg.Pipeline.ReplyStyle, o.ReplyStyle)
	set(&cfg.Log.Level, o.LogLevel)
	if port := strings.TrimSpace(o.Port); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if labels := strings.TrimSpace(o.Labels); labels != "" {
		cfg.Pipeline.Labels = splitLabels(labels)
	}
}

func splitLabels(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
