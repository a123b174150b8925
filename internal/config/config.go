// Package config loads and validates the server configuration document
// (§6): the server/telemetry/endpoints sections and a hot-reload watcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"molock/internal/catalog"
	"molock/internal/telemetry"
)

// Server is the `server` configuration section.
type Server struct {
	Port           int    `mapstructure:"port"`
	Workers        int    `mapstructure:"workers"`
	Host           string `mapstructure:"host"`
	MaxRequestSize int64  `mapstructure:"max_request_size"`
	RealIPHeader   string `mapstructure:"real_ip_header"`
	TLS            TLS    `mapstructure:"tls"`
}

// TLS is an optional dual HTTP/HTTPS listener on the same port, muxed by
// sniffing the first byte of each connection. Not required by the mock
// server's core contract, but kept as an operational convenience for
// CI environments that front it with HTTPS-only clients.
type TLS struct {
	Enabled      bool   `mapstructure:"enabled"`
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	AutoGenerate bool   `mapstructure:"auto_generate"`
	StorePath    string `mapstructure:"store_path"`
}

// Config is the full document: server, telemetry, and endpoint catalog.
type Config struct {
	Server    Server              `mapstructure:"server"`
	Telemetry telemetry.Config    `mapstructure:"telemetry"`
	Endpoints []catalog.Endpoint  `mapstructure:"endpoints"`
}

// Default returns the configuration used when no file is found, matching
// the teacher's Default()-before-Load() pattern.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:           8080,
			Workers:        4,
			Host:           "0.0.0.0",
			MaxRequestSize: 10 << 20,
			TLS: TLS{
				Enabled:      false,
				AutoGenerate: true,
				StorePath:    "certs",
			},
		},
		Telemetry: telemetry.Config{
			Enabled:             false,
			ServiceName:         "molock",
			ServiceVersion:      "0.0.0",
			Protocol:            "grpc",
			SamplingRate:        1.0,
			LogLevel:            "info",
			LogFormat:           "json",
			TimeoutSeconds:      30,
			ExportBatchSize:     512,
			ExportTimeoutMillis: 30000,
		},
	}
}

// Load reads and validates the configuration document at path, overlaying
// it onto Default(). Returns an error wrapping catalog.Validate's failure
// if the endpoint catalog is invalid (ConfigInvalid, fatal at startup).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if err := catalog.Validate(cfg.Endpoints); err != nil {
		return nil, fmt.Errorf("config: invalid endpoint catalog: %w", err)
	}

	return cfg, nil
}

// DefaultPath is the CLI's default --config value.
const DefaultPath = "config/molock-config.yaml"

// ScaffoldDefault writes a starter configuration document to path,
// creating parent directories as needed. Used by the `init` subcommand.
func ScaffoldDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	data, err := marshalScaffold()
	if err != nil {
		return fmt.Errorf("config: building scaffold: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
