package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/prestige-dev/prestige/internal/secrets"
	"github.com/prestige-dev/prestige/internal/securemem"
)

// ProviderConfig holds credentials and model selection for one AI provider.
type ProviderConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model,omitempty"`
}

// InstallConfig describes the package-install command chain. The fallback
// is tried once when the primary command fails (relaxed peer resolution).
type InstallConfig struct {
	Primary        []string `json:"primary,omitempty"`
	Fallback       []string `json:"fallback,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// DetectConfig controls the problem detector's external checkers.
type DetectConfig struct {
	TypeScript     bool `json:"typescript"`
	ESLint         bool `json:"eslint"`
	Syntax         bool `json:"syntax"`
	TimeoutSeconds int  `json:"timeout_seconds,omitempty"`
}

// Config represents engine configuration persisted as JSON in the user
// config directory.
type Config struct {
	Provider       string         `json:"provider"` // "anthropic" or "openai"
	Anthropic      ProviderConfig `json:"anthropic,omitempty"`
	OpenAI         ProviderConfig `json:"openai,omitempty"`
	MaxFixAttempts int            `json:"max_fix_attempts"`
	Install        InstallConfig  `json:"install"`
	Detect         DetectConfig   `json:"detect"`
	EventsPort     int            `json:"events_port,omitempty"`
	JournalPath    string         `json:"journal_path,omitempty"`
	LogLevel       string         `json:"log_level"` // debug, info, warn, error, none
	LogPath        string         `json:"-"`

	path            string            `json:"-"`
	secretsPassword *securemem.String `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "prestige")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "prestige")
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, "prestige")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "prestige")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "prestige")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "prestige")
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "prestige")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "prestige")
	}
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Provider:       "anthropic",
		MaxFixAttempts: 2,
		Install: InstallConfig{
			Primary:        []string{"npm", "install"},
			Fallback:       []string{"npm", "install", "--legacy-peer-deps"},
			TimeoutSeconds: 300,
		},
		Detect: DetectConfig{
			TypeScript:     true,
			ESLint:         true,
			Syntax:         true,
			TimeoutSeconds: 120,
		},
		JournalPath: filepath.Join(stateDir, "journal.db"),
		LogLevel:    "info",
		LogPath:     filepath.Join(stateDir, "prestige.log"),
		path:        filepath.Join(defaultConfigDir(), "config.json"),
	}
}

// Load reads configuration from the given path, falling back to defaults
// for anything missing. An absent file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = cfg.path
	}
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.MaxFixAttempts <= 0 {
		cfg.MaxFixAttempts = 2
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over the config file,
// matching how CI environments inject credentials.
func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		c.Anthropic.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		c.OpenAI.APIKey = key
	}
	if provider := strings.TrimSpace(os.Getenv("PRESTIGE_PROVIDER")); provider != "" {
		c.Provider = provider
	}
}

// Save writes the configuration back to its file, creating the directory
// if needed.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config has no path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, c.path)
}

// SetSecretsPassword stores the password used to unlock encrypted fields.
// It is held in protected memory for the life of the config.
func (c *Config) SetSecretsPassword(password string) {
	if c.secretsPassword != nil {
		c.secretsPassword.Destroy()
	}
	c.secretsPassword = securemem.NewString(password)
}

// ProviderAPIKey resolves the API key for the configured provider,
// decrypting it if it was stored encrypted.
func (c *Config) ProviderAPIKey() (string, error) {
	var raw string
	switch c.Provider {
	case "openai":
		raw = c.OpenAI.APIKey
	default:
		raw = c.Anthropic.APIKey
	}

	key, wasEncrypted, err := secrets.DecryptString(raw, c.secretsPassword.String())
	if err != nil {
		if wasEncrypted && c.secretsPassword.IsEmpty() {
			return "", fmt.Errorf("api key is encrypted but no secrets password was provided")
		}
		return "", err
	}
	return key, nil
}

// ProviderModel returns the configured model for the active provider,
// empty when unset (clients apply their own defaults).
func (c *Config) ProviderModel() string {
	switch c.Provider {
	case "openai":
		return c.OpenAI.Model
	default:
		return c.Anthropic.Model
	}
}

// Path returns the file this config was loaded from or will save to.
func (c *Config) Path() string {
	return c.path
}
