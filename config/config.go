// Package config is the daemon's TOML-backed configuration: storage
// paths, key-rotation tunables, and the listen/auth settings the API
// layer reads. Flags registered via RegisterAsFlags override whatever a
// config file supplies, following the override order the teacher's own
// daemon config uses: defaults, then file, then flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/spf13/pflag"
)

// Config holds every tunable of a running mintd process.
type Config struct {
	// DataDir is the root directory holding the denom, keystore and
	// ledger bbolt/storm files.
	DataDir string `toml:"data_dir"`

	// APIAddr is the host:port the external-collaborator HTTP layer
	// listens on.
	APIAddr string `toml:"api_addr"`
	// APIKey is the shared secret the HTTP layer's auth middleware
	// checks incoming requests against. Empty disables authentication —
	// only acceptable for local development.
	APIKey string `toml:"api_key"`

	// Currency is the currency tag whose denominations the rotation
	// scheduler rotates keys for. The ladder itself is always
	// bootstrapped under mint.DefaultCurrency; this setting does not
	// change that.
	Currency string `toml:"currency"`

	// RSABits is the modulus size new signing keys are generated with.
	RSABits int `toml:"rsa_bits"`
	// RotationInterval is how long a freshly synthesized key is valid.
	RotationInterval time.Duration `toml:"rotation_interval"`
	// RetentionWindow is how long a retired key remains resolvable
	// after its expiry, for verifying tokens issued under it.
	RetentionWindow time.Duration `toml:"retention_window"`
	// KeyCacheSize bounds the keystore's read-through LRU cache.
	KeyCacheSize int `toml:"key_cache_size"`

	// VerboseLogging is read from the file and the --verbose flag, but no
	// logger consults it: log output stays at logrus's default level.
	VerboseLogging bool `toml:"verbose_logging"`
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		DataDir:          "./data",
		APIAddr:          "localhost:8420",
		APIKey:           "",
		Currency:         "SATS",
		RSABits:          3072,
		RotationInterval: 30 * 24 * time.Hour,
		RetentionWindow:  365 * 24 * time.Hour,
		KeyCacheSize:     1024,
		VerboseLogging:   false,
	}
}

// Load reads a TOML file at path into a Default()-seeded Config. A
// missing file is not an error — the defaults stand alone for a bare
// `mintd` with no config flag.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// RegisterAsFlags binds every configurable field to a pflag flag,
// defaulting to whatever cfg currently holds (so callers should apply
// Load before RegisterAsFlags, letting command-line flags have the
// final word).
func (cfg *Config) RegisterAsFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&cfg.DataDir, "data-dir", "d", cfg.DataDir, "root directory for persistent mint data")
	flagSet.StringVarP(&cfg.APIAddr, "api-addr", "", cfg.APIAddr, "host:port the HTTP API listens on")
	flagSet.StringVarP(&cfg.APIKey, "api-key", "", cfg.APIKey, "shared secret required on incoming API requests")
	flagSet.StringVarP(&cfg.Currency, "currency", "", cfg.Currency, "currency tag the rotation scheduler rotates keys for")
	flagSet.IntVarP(&cfg.RSABits, "rsa-bits", "", cfg.RSABits, "modulus size for newly synthesized signing keys")
	flagSet.DurationVarP(&cfg.RotationInterval, "rotation-interval", "", cfg.RotationInterval, "how long a signing key remains active before rotation")
	flagSet.DurationVarP(&cfg.RetentionWindow, "retention-window", "", cfg.RetentionWindow, "how long a retired key remains verifiable after expiry")
	flagSet.IntVarP(&cfg.KeyCacheSize, "key-cache-size", "", cfg.KeyCacheSize, "entry count bound for the keystore's read-through cache")
	flagSet.BoolVarP(&cfg.VerboseLogging, "verbose", "v", cfg.VerboseLogging, "verbose logging setting (not consulted by any logger)")
}

// Validate rejects configuration values that would put the mint in an
// insecure or non-functional state.
func (cfg Config) Validate() error {
	if cfg.RSABits < 3072 {
		return fmt.Errorf("config: rsa_bits %d is below the minimum of 3072", cfg.RSABits)
	}
	if cfg.RotationInterval <= 0 {
		return fmt.Errorf("config: rotation_interval must be positive")
	}
	if cfg.RetentionWindow <= 0 {
		return fmt.Errorf("config: retention_window must be positive")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	return nil
}
