// Package config loads process configuration once at start from flags, the
// environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"autoform-mcp/internal/autoform"
)

const (
	EnvPrefix = "AUTOFORM"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"

	DefaultTimeout   = 15 * time.Second
	DefaultAddr      = ":3000"
	DefaultLogLevel  = "info"
	DefaultTransport = TransportStdio
)

// Config is the resolved process configuration.
type Config struct {
	PrivateAccessToken string        `mapstructure:"private_access_token"`
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Transport          string        `mapstructure:"transport"`
	Addr               string        `mapstructure:"addr"`
	TLSCertFile        string        `mapstructure:"tls_cert_file"`
	TLSKeyFile         string        `mapstructure:"tls_key_file"`
	LogLevel           string        `mapstructure:"log_level"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"base-url":  "base_url",
	"timeout":   "timeout",
	"transport": "transport",
	"addr":      "addr",
	"tls-cert":  "tls_cert_file",
	"tls-key":   "tls_key_file",
	"log-level": "log_level",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("private_access_token", "")
	v.SetDefault("base_url", autoform.DefaultBaseURL)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("transport", DefaultTransport)
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
	v.SetDefault("log_level", DefaultLogLevel)
}

// RegisterFlags declares the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("base-url", autoform.DefaultBaseURL, "Autoform API base URL")
	fs.Duration("timeout", DefaultTimeout, "timeout for each Autoform request")
	fs.String("transport", DefaultTransport, "MCP transport (stdio, http or sse)")
	fs.String("addr", DefaultAddr, "listen address for the http and sse transports")
	fs.String("tls-cert", "", "TLS certificate file for the http and sse transports")
	fs.String("tls-key", "", "TLS key file for the http and sse transports")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
}

// Load resolves configuration. Precedence: explicitly set flags, environment,
// config file (when configFile is non-empty), defaults. fs may be nil.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	if fs != nil {
		var bindErr error
		fs.Visit(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP, TransportSSE:
	default:
		errs = append(errs, fmt.Errorf("transport must be one of stdio, http, sse, got %q", c.Transport))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls_cert_file and tls_key_file must be set together"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}
