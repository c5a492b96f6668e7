package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mintd.toml")
	contents := `
data_dir = "/var/lib/mintd"
api_addr = "0.0.0.0:9000"
rsa_bits = 4096
rotation_interval = "12h"
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/var/lib/mintd" {
		t.Fatalf("DataDir = %q", cfg.DataDir)
	}
	if cfg.APIAddr != "0.0.0.0:9000" {
		t.Fatalf("APIAddr = %q", cfg.APIAddr)
	}
	if cfg.RSABits != 4096 {
		t.Fatalf("RSABits = %d", cfg.RSABits)
	}
	if cfg.RotationInterval != 12*time.Hour {
		t.Fatalf("RotationInterval = %v", cfg.RotationInterval)
	}
	// Unset fields keep their default value.
	if cfg.Currency != Default().Currency {
		t.Fatalf("Currency = %q, want default %q", cfg.Currency, Default().Currency)
	}
}

func TestValidateRejectsUndersizedModulus(t *testing.T) {
	cfg := Default()
	cfg.RSABits = 1024
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject rsa_bits below 3072")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
