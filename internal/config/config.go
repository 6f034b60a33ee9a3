// Package config handles Cascade configuration loading and management.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cascade")

	return &Config{
		Instance: InstanceConfig{
			ID:          "cascade-local",
			MaxHandlers: 16,
		},
		Session: SessionConfig{
			ID:        uuid.NewString(),
			SpeakerID: "default",
		},
		User: UserConfig{
			Name:          "",
			Locale:        "en-US",
			Timezone:      "UTC",
			ResponseStyle: string(ResponseStyleBalanced),
		},
		Paths: PathsConfig{
			DataDir:      dataDir,
			LogsDir:      filepath.Join(dataDir, "logs"),
			PreferenceDB: filepath.Join(dataDir, "preferences.db"),
			RulebookDB:   filepath.Join(dataDir, "rulebook.db"),
			TranscriptDB: filepath.Join(dataDir, "transcript.db"),
		},
		Privacy: PrivacyConfig{
			AutoConfirmFor:  []string{"query"},
			SensitiveTopics: []string{"health", "finance", "passwords"},
		},
	}
}

// Load loads the configuration from the given path. If the file doesn't
// exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg = expandPaths(cfg)

	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// expandPaths expands a leading ~ in every configured path.
func expandPaths(cfg *Config) *Config {
	homeDir, _ := os.UserHomeDir()

	expand := func(p string) string {
		if p != "" && p[0] == '~' {
			return filepath.Join(homeDir, p[1:])
		}
		return p
	}

	cfg.Paths.DataDir = expand(cfg.Paths.DataDir)
	cfg.Paths.LogsDir = expand(cfg.Paths.LogsDir)
	cfg.Paths.PreferenceDB = expand(cfg.Paths.PreferenceDB)
	cfg.Paths.RulebookDB = expand(cfg.Paths.RulebookDB)
	cfg.Paths.TranscriptDB = expand(cfg.Paths.TranscriptDB)

	return cfg
}

// SessionID returns the owning session's id.
func (c *Config) SessionID() string {
	return c.Session.ID
}

// ShouldAutoConfirm reports whether commands in category may run without
// an explicit confirmation step (spec.md §4.4).
func (c *Config) ShouldAutoConfirm(category string) bool {
	for _, allowed := range c.Privacy.AutoConfirmFor {
		if allowed == category {
			return true
		}
	}
	return false
}

// IsSensitiveTopic reports whether topic is always treated as sensitive
// by the makerule permission flow.
func (c *Config) IsSensitiveTopic(topic string) bool {
	for _, sensitive := range c.Privacy.SensitiveTopics {
		if sensitive == topic {
			return true
		}
	}
	return false
}
