package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prestige-dev/prestige/internal/secrets"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxFixAttempts != 2 {
		t.Errorf("default MaxFixAttempts = %d, want 2", cfg.MaxFixAttempts)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("default provider = %q, want anthropic", cfg.Provider)
	}
	if len(cfg.Install.Primary) == 0 || len(cfg.Install.Fallback) == 0 {
		t.Error("install command chain should have primary and fallback")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load on missing file should fall back to defaults: %v", err)
	}
	if cfg.MaxFixAttempts != 2 {
		t.Errorf("MaxFixAttempts = %d, want default 2", cfg.MaxFixAttempts)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.MaxFixAttempts = 3
	cfg.Provider = "openai"
	cfg.OpenAI.Model = "gpt-4o"

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.MaxFixAttempts != 3 {
		t.Errorf("MaxFixAttempts = %d, want 3", loaded.MaxFixAttempts)
	}
	if loaded.Provider != "openai" || loaded.OpenAI.Model != "gpt-4o" {
		t.Errorf("provider config not preserved: %+v", loaded.OpenAI)
	}
}

func TestLoadCorruptedAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"max_fix_attempts": -4}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFixAttempts != 2 {
		t.Errorf("non-positive attempt cap should reset to default, got %d", cfg.MaxFixAttempts)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	t.Setenv("PRESTIGE_PROVIDER", "anthropic")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	key, err := cfg.ProviderAPIKey()
	if err != nil {
		t.Fatalf("ProviderAPIKey: %v", err)
	}
	if key != "sk-from-env" {
		t.Errorf("key = %q, want env override", key)
	}
}

func TestEncryptedAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	enc, err := secrets.EncryptString("sk-real-key", "pw")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Anthropic.APIKey = enc

	if _, err := cfg.ProviderAPIKey(); err == nil {
		t.Error("expected error when no secrets password is set")
	}

	cfg.SetSecretsPassword("pw")
	key, err := cfg.ProviderAPIKey()
	if err != nil {
		t.Fatalf("ProviderAPIKey with password: %v", err)
	}
	if key != "sk-real-key" {
		t.Errorf("key = %q, want decrypted value", key)
	}
}
