// Package config loads the runtime settings for hydroclient binaries from
// the environment, optionally overlaid by a YAML file. Environment variables
// win over the file so deployments can override a checked-in base config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings shared by the client library and the
// watcher daemon.
type Config struct {
	// LedgerRPCURL is the JSON-RPC endpoint of the ledger node.
	LedgerRPCURL string `yaml:"ledger_rpc_url"`
	// LedgerRPCToken is the bearer token sent with every RPC call.
	LedgerRPCToken string `yaml:"ledger_rpc_token"`
	// SharedSecretHeader / SharedSecretValue add a static auth header.
	SharedSecretHeader string `yaml:"shared_secret_header"`
	SharedSecretValue  string `yaml:"shared_secret_value"`
	// TLSClientCAFile pins the node's certificate authority.
	TLSClientCAFile string `yaml:"tls_client_ca_file"`
	// AllowInsecure permits plain HTTP endpoints.
	AllowInsecure bool `yaml:"allow_insecure"`

	// UserAddress is the account state is tracked and populated for.
	UserAddress string `yaml:"user_address"`
	// FrontendAddress tags stability pool deposits; empty leaves them
	// untagged.
	FrontendAddress string `yaml:"frontend_address"`

	// PollInterval is the head polling cadence of the block watcher.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MinRefreshInterval throttles store refreshes across fast blocks.
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval"`
	// MaxStaleRetries bounds resubmissions after stale-hint rejections.
	MaxStaleRetries int `yaml:"max_stale_retries"`

	// Listen is the address the daemon's health and metrics endpoints bind.
	Listen string `yaml:"listen"`
	// Environment labels log lines and telemetry (dev, staging, prod).
	Environment string `yaml:"environment"`
	// LogFile, when set, routes logs through a size-rotated file.
	LogFile string `yaml:"log_file"`

	// OTELEndpoint enables OTLP export when non-empty.
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure"`
	// OTELHeaders is a comma-separated key=value list.
	OTELHeaders string `yaml:"otel_headers"`
}

const (
	envRPCURL             = "HYDRO_LEDGER_RPC_URL"
	envRPCToken           = "HYDRO_LEDGER_RPC_TOKEN"
	envSharedSecretHeader = "HYDRO_SHARED_SECRET_HEADER"
	envSharedSecret       = "HYDRO_SHARED_SECRET"
	envTLSClientCAFile    = "HYDRO_TLS_CLIENT_CA_FILE"
	envAllowInsecure      = "HYDRO_ALLOW_INSECURE"
	envUserAddress        = "HYDRO_USER_ADDRESS"
	envFrontendAddress    = "HYDRO_FRONTEND_ADDRESS"
	envPollInterval       = "HYDRO_POLL_INTERVAL"
	envMinRefreshInterval = "HYDRO_MIN_REFRESH_INTERVAL"
	envMaxStaleRetries    = "HYDRO_MAX_STALE_RETRIES"
	envListen             = "HYDRO_LISTEN"
	envEnvironment        = "HYDRO_ENVIRONMENT"
	envLogFile            = "HYDRO_LOG_FILE"
	envOTELEndpoint       = "HYDRO_OTEL_ENDPOINT"
	envOTELInsecure       = "HYDRO_OTEL_INSECURE"
	envOTELHeaders        = "HYDRO_OTEL_HEADERS"

	defaultRPCURL             = "https://127.0.0.1:8645"
	defaultSharedSecretHeader = "X-Hydro-Shared-Secret"
	defaultPollInterval       = 4 * time.Second
	defaultMinRefreshInterval = time.Second
	defaultMaxStaleRetries    = 3
	defaultListen             = "0.0.0.0:9655"
	defaultEnvironment        = "dev"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LedgerRPCURL:       defaultRPCURL,
		SharedSecretHeader: defaultSharedSecretHeader,
		PollInterval:       defaultPollInterval,
		MinRefreshInterval: defaultMinRefreshInterval,
		MaxStaleRetries:    defaultMaxStaleRetries,
		Listen:             defaultListen,
		Environment:        defaultEnvironment,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and finally the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	setString(&cfg.LedgerRPCURL, envRPCURL)
	setString(&cfg.LedgerRPCToken, envRPCToken)
	setString(&cfg.SharedSecretHeader, envSharedSecretHeader)
	setString(&cfg.SharedSecretValue, envSharedSecret)
	setString(&cfg.TLSClientCAFile, envTLSClientCAFile)
	setString(&cfg.UserAddress, envUserAddress)
	setString(&cfg.FrontendAddress, envFrontendAddress)
	setString(&cfg.Listen, envListen)
	setString(&cfg.Environment, envEnvironment)
	setString(&cfg.LogFile, envLogFile)
	setString(&cfg.OTELEndpoint, envOTELEndpoint)
	setString(&cfg.OTELHeaders, envOTELHeaders)
	if err := setBool(&cfg.AllowInsecure, envAllowInsecure); err != nil {
		return err
	}
	if err := setBool(&cfg.OTELInsecure, envOTELInsecure); err != nil {
		return err
	}
	if err := setDuration(&cfg.PollInterval, envPollInterval); err != nil {
		return err
	}
	if err := setDuration(&cfg.MinRefreshInterval, envMinRefreshInterval); err != nil {
		return err
	}
	return setInt(&cfg.MaxStaleRetries, envMaxStaleRetries)
}

// User returns the configured user address.
func (cfg Config) User() common.Address {
	return common.HexToAddress(cfg.UserAddress)
}

// Frontend returns the configured frontend tag, zero when unset.
func (cfg Config) Frontend() common.Address {
	if strings.TrimSpace(cfg.FrontendAddress) == "" {
		return common.Address{}
	}
	return common.HexToAddress(cfg.FrontendAddress)
}

// Sanitized returns a copy with secrets masked for logging.
func (cfg Config) Sanitized() Config {
	clone := cfg
	if clone.LedgerRPCToken != "" {
		clone.LedgerRPCToken = "***"
	}
	if clone.SharedSecretValue != "" {
		clone.SharedSecretValue = "***"
	}
	return clone
}

// Validate ensures the configuration is internally consistent.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.LedgerRPCURL) == "" {
		return fmt.Errorf("config: ledger rpc url required")
	}
	if !cfg.AllowInsecure && strings.HasPrefix(cfg.LedgerRPCURL, "http://") {
		return fmt.Errorf("config: plain http endpoint requires allow_insecure")
	}
	if trimmed := strings.TrimSpace(cfg.UserAddress); trimmed != "" && !common.IsHexAddress(trimmed) {
		return fmt.Errorf("config: user address %q is not a hex address", cfg.UserAddress)
	}
	if trimmed := strings.TrimSpace(cfg.FrontendAddress); trimmed != "" && !common.IsHexAddress(trimmed) {
		return fmt.Errorf("config: frontend address %q is not a hex address", cfg.FrontendAddress)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive")
	}
	if cfg.MinRefreshInterval <= 0 {
		return fmt.Errorf("config: min refresh interval must be positive")
	}
	if cfg.MaxStaleRetries < 0 {
		return fmt.Errorf("config: max stale retries must be non-negative")
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("config: listen address required")
	}
	return nil
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func setBool(target *bool, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("config: %s=%q is not a boolean", key, value)
	}
	*target = parsed
	return nil
}

func setInt(target *int, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("config: %s=%q is not an integer", key, value)
	}
	*target = parsed
	return nil
}

func setDuration(target *time.Duration, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config: %s=%q is not a duration", key, value)
	}
	*target = parsed
	return nil
}
