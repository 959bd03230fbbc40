package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	OCR       OCRConfig
	Raster    RasterConfig
	Pipeline  PipelineConfig
	Output    OutputConfig
	Normalize NormalizeConfig
	DB        DBConfig
	Server    ServerConfig
	Log       LogConfig
}

// OCRConfig holds recognition engine settings.
type OCRConfig struct {
	Languages      []string `mapstructure:"languages"`
	UseAccelerator bool     `mapstructure:"use_accelerator"`
	BatchSize      int      `mapstructure:"batch_size"`
}

// RasterConfig holds PDF rasterization settings.
type RasterConfig struct {
	Scale float64 `mapstructure:"scale"`
	Alpha bool    `mapstructure:"alpha"`
}

// PipelineConfig holds batch orchestration settings.
type PipelineConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	MaxImagesInFlight int `mapstructure:"max_images_in_flight"`
	DocTimeoutSecs    int `mapstructure:"doc_timeout_secs"`
}

// DocTimeout returns the per-document timeout as a duration.
func (p *PipelineConfig) DocTimeout() time.Duration {
	return time.Duration(p.DocTimeoutSecs) * time.Second
}

// OutputConfig holds result persistence settings.
type OutputConfig struct {
	Dir     string   `mapstructure:"dir"`
	Formats []string `mapstructure:"formats"` // xlsx, csv
}

// NormalizeConfig holds the OCR confusion table as "from=to" pairs.
type NormalizeConfig struct {
	Confusions map[string]string `mapstructure:"confusions"`
}

// DBConfig holds the optional PostgreSQL result sink. An empty DSN disables it.
type DBConfig struct {
	DSN     string `mapstructure:"dsn"`
	MaxOpen int    `mapstructure:"max_open"`
	MaxIdle int    `mapstructure:"max_idle"`
}

// Enabled reports whether the Postgres sink is configured.
func (d *DBConfig) Enabled() bool { return d.DSN != "" }

// ServerConfig holds HTTP extraction endpoint settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the FAPIAO_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAPIAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// OCR defaults
	v.SetDefault("ocr.languages", "chi_sim,eng")
	v.SetDefault("ocr.use_accelerator", true)
	v.SetDefault("ocr.batch_size", 4)

	// Raster defaults
	v.SetDefault("raster.scale", 2.0)
	v.SetDefault("raster.alpha", false)

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.max_images_in_flight", 0) // 0 = follow concurrency
	v.SetDefault("pipeline.doc_timeout_secs", 300)

	// Output defaults
	v.SetDefault("output.dir", "./out")
	v.SetDefault("output.formats", "xlsx,csv")

	// Normalize defaults (empty = built-in confusion table)
	v.SetDefault("normalize.confusions", "")

	// DB defaults
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open", 5)
	v.SetDefault("db.max_idle", 2)

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"ocr.languages":                 "FAPIAO_OCR_LANGUAGES",
		"ocr.use_accelerator":           "FAPIAO_OCR_USE_ACCELERATOR",
		"ocr.batch_size":                "FAPIAO_OCR_BATCH_SIZE",
		"raster.scale":                  "FAPIAO_RASTER_SCALE",
		"raster.alpha":                  "FAPIAO_RASTER_ALPHA",
		"pipeline.concurrency":          "FAPIAO_PIPELINE_CONCURRENCY",
		"pipeline.max_images_in_flight": "FAPIAO_PIPELINE_MAX_IMAGES_IN_FLIGHT",
		"pipeline.doc_timeout_secs":     "FAPIAO_PIPELINE_DOC_TIMEOUT_SECS",
		"output.dir":                    "FAPIAO_OUTPUT_DIR",
		"output.formats":                "FAPIAO_OUTPUT_FORMATS",
		"normalize.confusions":          "FAPIAO_NORMALIZE_CONFUSIONS",
		"db.dsn":                        "FAPIAO_DB_DSN",
		"db.max_open":                   "FAPIAO_DB_MAX_OPEN",
		"db.max_idle":                   "FAPIAO_DB_MAX_IDLE",
		"server.port":                   "FAPIAO_SERVER_PORT",
		"server.read_timeout":           "FAPIAO_SERVER_READ_TIMEOUT",
		"server.write_timeout":          "FAPIAO_SERVER_WRITE_TIMEOUT",
		"server.max_upload_mb":          "FAPIAO_SERVER_MAX_UPLOAD_MB",
		"server.environment":            "FAPIAO_SERVER_ENVIRONMENT",
		"log.level":                     "FAPIAO_LOG_LEVEL",
		"log.format":                    "FAPIAO_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	cfg.OCR = OCRConfig{
		Languages:      splitList(v.GetString("ocr.languages")),
		UseAccelerator: v.GetBool("ocr.use_accelerator"),
		BatchSize:      v.GetInt("ocr.batch_size"),
	}
	cfg.Raster = RasterConfig{
		Scale: v.GetFloat64("raster.scale"),
		Alpha: v.GetBool("raster.alpha"),
	}
	cfg.Pipeline = PipelineConfig{
		Concurrency:       v.GetInt("pipeline.concurrency"),
		MaxImagesInFlight: v.GetInt("pipeline.max_images_in_flight"),
		DocTimeoutSecs:    v.GetInt("pipeline.doc_timeout_secs"),
	}
	cfg.Output = OutputConfig{
		Dir:     v.GetString("output.dir"),
		Formats: splitList(v.GetString("output.formats")),
	}
	confusions, err := parsePairs(v.GetString("normalize.confusions"))
	if err != nil {
		return nil, fmt.Errorf("parsing normalize.confusions: %w", err)
	}
	cfg.Normalize = NormalizeConfig{Confusions: confusions}
	cfg.DB = DBConfig{
		DSN:     v.GetString("db.dsn"),
		MaxOpen: v.GetInt("db.max_open"),
		MaxIdle: v.GetInt("db.max_idle"),
	}
	cfg.Server = ServerConfig{
		Port:         v.GetString("server.port"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	return cfg, nil
}

// splitList parses a comma-separated string, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePairs parses "from=to,from=to" into a map. Empty input yields nil,
// selecting the built-in confusion table.
func parsePairs(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		from, to, ok := strings.Cut(pair, "=")
		if !ok || from == "" {
			return nil, fmt.Errorf("invalid pair %q, want from=to", pair)
		}
		out[from] = to
	}
	return out, nil
}
