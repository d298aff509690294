// Package config holds the settlement enclave configuration loaded from YAML
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/voucherauction/core"
)

// publicKeyLength is the decoded size of a custody layer address.
const publicKeyLength = 32

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Enclave configures the vsock listener and its worker pool.
type Enclave struct {
	Port               uint32 `yaml:"port"`
	MaxWorkers         int    `yaml:"max_workers"`
	ReadTimeoutSeconds int    `yaml:"read_timeout_seconds"`
}

// Settlement holds the custody addresses vouchers are issued against.
type Settlement struct {
	TokenAddress    string `yaml:"token_address"`
	TreasuryAddress string `yaml:"treasury_address"`
}

// Config collects every configuration leaf.
type Config struct {
	App        App        `yaml:"app"`
	Enclave    Enclave    `yaml:"enclave"`
	Settlement Settlement `yaml:"settlement"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		App: App{
			Name:     "voucherauction-enclave",
			LogLevel: "info",
		},
		Enclave: Enclave{
			Port:               5000,
			MaxWorkers:         4,
			ReadTimeoutSeconds: 30,
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv loads the given .env files, ignoring missing ones, and then
// overrides fields from the process environment.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if v := os.Getenv("ENCLAVE_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid value for ENCLAVE_PORT: %s (must be a valid port)", v)
		}
		c.Enclave.Port = uint32(port)
	}
	if v := os.Getenv("ENCLAVE_MAX_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid value for ENCLAVE_MAX_WORKERS: %s (must be a valid integer)", v)
		}
		c.Enclave.MaxWorkers = workers
	}
	if v := os.Getenv("SETTLEMENT_TOKEN_ADDRESS"); v != "" {
		c.Settlement.TokenAddress = v
	}
	if v := os.Getenv("SETTLEMENT_TREASURY_ADDRESS"); v != "" {
		c.Settlement.TreasuryAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.App.MetricsAddr = v
	}
	return nil
}

// Validate checks the worker pool and custody addresses.
func (c *Config) Validate() error {
	if c.Enclave.Port == 0 {
		return fmt.Errorf("enclave port is required")
	}
	if c.Enclave.MaxWorkers <= 0 {
		return fmt.Errorf("enclave max_workers must be positive, got %d", c.Enclave.MaxWorkers)
	}
	if c.Enclave.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("enclave read_timeout_seconds must be positive, got %d", c.Enclave.ReadTimeoutSeconds)
	}
	if err := validateAddress("token_address", c.Settlement.TokenAddress); err != nil {
		return err
	}
	if err := validateAddress("treasury_address", c.Settlement.TreasuryAddress); err != nil {
		return err
	}
	if c.Settlement.TokenAddress == c.Settlement.TreasuryAddress {
		return fmt.Errorf("token_address and treasury_address must differ")
	}
	return nil
}

// Policy returns the voucher policy built from the settlement addresses.
func (c *Config) Policy() core.VoucherPolicy {
	return core.VoucherPolicy{
		Token:    core.Address(c.Settlement.TokenAddress),
		Treasury: core.Address(c.Settlement.TreasuryAddress),
	}
}

func validateAddress(field, address string) error {
	if address == "" {
		return fmt.Errorf("settlement %s is required", field)
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("settlement %s is not base58: %w", field, err)
	}
	if len(decoded) != publicKeyLength {
		return fmt.Errorf("settlement %s decodes to %d bytes, want %d", field, len(decoded), publicKeyLength)
	}
	return nil
}
