// Package config defines service configuration and its loading rules.
package config

import (
	"time"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/engine"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/storage"
)

// Config contains process configuration for the kiosk service.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address.
	Addr string `koanf:"addr"`

	// DataDir is where originals and outputs are written locally.
	DataDir string `koanf:"data_dir"`

	// DatabasePath locates the local SQLite swap ledger.
	DatabasePath string `koanf:"database_path"`

	// CooldownSeconds is the minimum gap between palm triggers.
	CooldownSeconds float64 `koanf:"cooldown_seconds"`

	// Enhance enables the facial restoration pass after the swap.
	Enhance bool `koanf:"enhance"`

	// ResultTTLMinutes bounds how long locally cached results stay servable.
	ResultTTLMinutes int `koanf:"result_ttl_minutes"`

	// AllowedOrigins configures CORS. "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Tray enables the desktop operator menu.
	Tray bool `koanf:"tray"`

	Storage StorageConfig `koanf:"storage"`
	Models  ModelsConfig  `koanf:"models"`
}

// StorageConfig configures the S3-compatible object store and the durable
// transformation ledger.
type StorageConfig struct {
	Endpoint    string `koanf:"endpoint"`
	Region      string `koanf:"region"`
	Bucket      string `koanf:"bucket"`
	AccessKey   string `koanf:"access_key"`
	SecretKey   string `koanf:"secret_key"`
	PublicURL   string `koanf:"public_url"`
	PostgresDSN string `koanf:"postgres_dsn"`
}

// ModelsConfig locates the ONNX models and their runtime.
type ModelsConfig struct {
	OnnxLibrary  string `koanf:"onnx_library"`
	EncoderModel string `koanf:"encoder_model"`
	SwapModel    string `koanf:"swap_model"`
	EnhanceModel string `koanf:"enhance_model"`
	FaceCascade  string `koanf:"face_cascade"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":5555",
		DataDir:          "data",
		DatabasePath:     "photobooth.db",
		CooldownSeconds:  3.0,
		Enhance:          false,
		ResultTTLMinutes: 60,
		AllowedOrigins:   []string{"*"},
		Storage: StorageConfig{
			Region: "us-east-1",
			Bucket: "photobooth",
		},
		Models: ModelsConfig{
			OnnxLibrary:  "models/libonnxruntime.so",
			EncoderModel: "models/arcface_encoder.onnx",
			SwapModel:    "models/inswapper_128.onnx",
			EnhanceModel: "models/gfpgan_512.onnx",
			FaceCascade:  "models/haarcascade_frontalface_default.xml",
		},
	}
}

// Cooldown returns the trigger cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// ResultTTL returns the result cache lifetime as a duration.
func (c *Config) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLMinutes) * time.Minute
}

// StorageOptions maps the config onto the storage gateway options.
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{
		Endpoint:    c.Storage.Endpoint,
		Region:      c.Storage.Region,
		Bucket:      c.Storage.Bucket,
		AccessKey:   c.Storage.AccessKey,
		SecretKey:   c.Storage.SecretKey,
		PublicURL:   c.Storage.PublicURL,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// EngineOptions maps the config onto the engine provider options. The
// enhancer model is only wired when enhancement is enabled.
func (c *Config) EngineOptions() engine.Config {
	cfg := engine.Config{
		OnnxLibrary:  c.Models.OnnxLibrary,
		EncoderModel: c.Models.EncoderModel,
		SwapModel:    c.Models.SwapModel,
		FaceCascade:  c.Models.FaceCascade,
	}
	if c.Enhance {
		cfg.EnhanceModel = c.Models.EnhanceModel
	}
	return cfg
}
