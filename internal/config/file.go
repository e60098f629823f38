package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the subset of Config that may be set from a YAML file.
// Unset keys leave the environment-derived value alone.
type fileConfig struct {
	Environment *string `yaml:"environment"`
	Server      struct {
		Host    *string `yaml:"host"`
		Port    *int    `yaml:"port"`
		BaseURL *string `yaml:"base_url"`
	} `yaml:"server"`
	Database struct {
		URL            *string `yaml:"url"`
		MaxConnections *int    `yaml:"max_connections"`
		AutoMigrate    *bool   `yaml:"auto_migrate"`
	} `yaml:"database"`
	Storage struct {
		Endpoint      *string `yaml:"endpoint"`
		Bucket        *string `yaml:"bucket"`
		PublicBaseURL *string `yaml:"public_base_url"`
		UploadDir     *string `yaml:"upload_dir"`
		MaxUploadKB   *int    `yaml:"max_upload_kb"`
	} `yaml:"storage"`
	Email struct {
		Enabled    *bool   `yaml:"enabled"`
		SMTPHost   *string `yaml:"smtp_host"`
		SMTPPort   *int    `yaml:"smtp_port"`
		From       *string `yaml:"from"`
		ResendFrom *string `yaml:"resend_from"`
	} `yaml:"email"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Logging struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"logging"`
	Tracing struct {
		Enabled      *bool    `yaml:"enabled"`
		Exporter     *string  `yaml:"exporter"`
		OTLPEndpoint *string  `yaml:"otlp_endpoint"`
		SampleRate   *float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// LoadFile loads the environment configuration and overlays the YAML file at
// path on top of it. Secrets (JWT secret, storage keys, SMTP password, Resend
// key) are only read from the environment.
func LoadFile(path string) (Config, error) {
	cfg := fromEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	fc.apply(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) {
	set(&cfg.Environment, fc.Environment)
	set(&cfg.Server.Host, fc.Server.Host)
	set(&cfg.Server.Port, fc.Server.Port)
	set(&cfg.Server.BaseURL, fc.Server.BaseURL)
	set(&cfg.Database.URL, fc.Database.URL)
	set(&cfg.Database.MaxConnections, fc.Database.MaxConnections)
	set(&cfg.Database.AutoMigrate, fc.Database.AutoMigrate)
	set(&cfg.Storage.Endpoint, fc.Storage.Endpoint)
	set(&cfg.Storage.Bucket, fc.Storage.Bucket)
	set(&cfg.Storage.PublicBaseURL, fc.Storage.PublicBaseURL)
	set(&cfg.Storage.UploadDir, fc.Storage.UploadDir)
	if fc.Storage.MaxUploadKB != nil {
		cfg.Storage.MaxUploadBytes = int64(*fc.Storage.MaxUploadKB) * 1024
	}
	set(&cfg.Email.Enabled, fc.Email.Enabled)
	set(&cfg.Email.SMTPHost, fc.Email.SMTPHost)
	set(&cfg.Email.SMTPPort, fc.Email.SMTPPort)
	set(&cfg.Email.From, fc.Email.From)
	set(&cfg.Email.ResendFrom, fc.Email.ResendFrom)
	if len(fc.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = fc.CORS.AllowedOrigins
	}
	set(&cfg.Logging.Level, fc.Logging.Level)
	set(&cfg.Logging.Format, fc.Logging.Format)
	set(&cfg.Tracing.Enabled, fc.Tracing.Enabled)
	set(&cfg.Tracing.Exporter, fc.Tracing.Exporter)
	set(&cfg.Tracing.OTLPEndpoint, fc.Tracing.OTLPEndpoint)
	set(&cfg.Tracing.SampleRate, fc.Tracing.SampleRate)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
