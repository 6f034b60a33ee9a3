// Package config loads and saves Cascade's on-disk configuration: the
// instance identity, the session it belongs to, user locale and
// response-style preferences, storage paths, and the privacy policy that
// gates confirmation-before-execute (spec.md §4.4).
package config

// Config is the top-level Cascade configuration.
type Config struct {
	Instance InstanceConfig `toml:"instance"`
	Session  SessionConfig  `toml:"session"`
	User     UserConfig     `toml:"user"`
	Paths    PathsConfig    `toml:"paths"`
	Privacy  PrivacyConfig  `toml:"privacy"`
}

// InstanceConfig contains instance-level settings.
type InstanceConfig struct {
	ID          string `toml:"id"`
	MaxHandlers int    `toml:"max_handlers"`
}

// SessionConfig identifies the owning session. Named Session rather than
// the reference's Tenant: Cascade runs one dialogue loop per end user, not
// a shared multi-tenant workspace (spec.md §1 Non-goals).
type SessionConfig struct {
	ID        string `toml:"id"`
	SpeakerID string `toml:"speaker_id"`
}

// UserConfig contains user preferences that feed the formatter (C9).
type UserConfig struct {
	Name          string `toml:"name"`
	Locale        string `toml:"locale"`
	Timezone      string `toml:"timezone"`
	ResponseStyle string `toml:"response_style"` // concise, balanced, detailed
}

// PathsConfig contains file path settings for the SQLite-backed stores.
type PathsConfig struct {
	DataDir      string `toml:"data_dir"`
	LogsDir      string `toml:"logs_dir"`
	PreferenceDB string `toml:"preference_db"`
	RulebookDB   string `toml:"rulebook_db"`
	TranscriptDB string `toml:"transcript_db"`
}

// PrivacyConfig gates which command categories may run without an
// explicit confirmation step and which topics the makerule permission
// flow always treats as sensitive.
type PrivacyConfig struct {
	AutoConfirmFor  []string `toml:"auto_confirm_for"`
	SensitiveTopics []string `toml:"sensitive_topics"`
}

// ResponseStyle is the closed enumeration UserConfig.ResponseStyle draws
// from.
type ResponseStyle string

const (
	ResponseStyleConcise  ResponseStyle = "concise"
	ResponseStyleBalanced ResponseStyle = "balanced"
	ResponseStyleDetailed ResponseStyle = "detailed"
)
