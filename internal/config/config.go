package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"focuscal/internal/model"
)

// ParticipantConfig describes one participant whose calendar can be
// compared. Source selects the provider implementation.
type ParticipantConfig struct {
	// Name is the NT-style short username (e.g. "JDOE").
	Name string `yaml:"name" json:"name"`
	// Source is "graph" (default) or "ics".
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
	// ICSURL is the feed endpoint for ics-sourced participants.
	ICSURL string `yaml:"ics_url,omitempty" json:"ics_url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the viewer's day is expressed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WindowStartHour / WindowEndHour bound the schedulable day.
	WindowStartHour int `yaml:"window_start_hour" json:"window_start_hour"`
	WindowEndHour   int `yaml:"window_end_hour" json:"window_end_hour"`

	// GranularityMinutes is the slot size shared by every component.
	GranularityMinutes int `yaml:"granularity_minutes" json:"granularity_minutes"`

	// MaxSessionsPerDay caps how many focus sessions one generate pass places.
	MaxSessionsPerDay int `yaml:"max_sessions_per_day" json:"max_sessions_per_day"`

	// SessionDurationMinutes is the fixed length of a placed focus session.
	SessionDurationMinutes int `yaml:"session_duration_minutes" json:"session_duration_minutes"`

	// SessionTitles is the rotation of titles for generated sessions.
	SessionTitles []string `yaml:"session_titles" json:"session_titles"`

	// FallbackSlot is the HH:MM label suggested when participants share
	// no common free slot.
	FallbackSlot string `yaml:"fallback_slot" json:"fallback_slot"`

	// RefreshCron is a cron-style schedule for periodic recomputation.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// IdentityDomain is appended to short usernames to form principal
	// names (e.g. "example.com" -> jdoe@example.com).
	IdentityDomain string `yaml:"identity_domain" json:"identity_domain"`

	// GraphBaseURL is the calendar API endpoint for graph-sourced
	// participants.
	GraphBaseURL string `yaml:"graph_base_url" json:"graph_base_url"`

	// CacheDir stores conditional-fetch cache state for ICS feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LegacyFixedOffsetMinutes reproduces a deployment-specific provider
	// clock skew by shifting every event by a constant amount. Leave at
	// zero unless the provider is known to misreport zones.
	LegacyFixedOffsetMinutes int `yaml:"legacy_fixed_offset_minutes,omitempty" json:"legacy_fixed_offset_minutes,omitempty"`

	// PrimaryUser is the short username whose day the schedule API serves.
	PrimaryUser string `yaml:"primary_user" json:"primary_user"`

	// Participants is the initial comparison set.
	Participants []ParticipantConfig `yaml:"participants" json:"participants"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 "127.0.0.1:8080",
		Timezone:               "Local",
		WindowStartHour:        8,
		WindowEndHour:          20,
		GranularityMinutes:     60,
		MaxSessionsPerDay:      4,
		SessionDurationMinutes: 25,
		SessionTitles:          []string{"Focus Session"},
		FallbackSlot:           "10:00",
		RefreshCron:            "*/5 * * * *",
		IdentityDomain:         "example.com",
		GraphBaseURL:           "",
		CacheDir:               "./var/feed-cache",
		PrimaryUser:            "me",
		Participants:           []ParticipantConfig{},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.WindowStartHour <= 0 && c.WindowEndHour <= 0 {
		c.WindowStartHour = 8
		c.WindowEndHour = 20
	}
	if c.WindowEndHour <= c.WindowStartHour {
		c.WindowEndHour = c.WindowStartHour + 1
	}
	if c.GranularityMinutes <= 0 {
		c.GranularityMinutes = 60
	}
	if c.MaxSessionsPerDay <= 0 {
		c.MaxSessionsPerDay = 4
	}
	if c.SessionDurationMinutes <= 0 {
		c.SessionDurationMinutes = 25
	}
	if len(c.SessionTitles) == 0 {
		c.SessionTitles = []string{"Focus Session"}
	}
	if c.FallbackSlot == "" {
		c.FallbackSlot = "10:00"
	}
	if _, err := model.LabelMinute(c.FallbackSlot); err != nil {
		c.FallbackSlot = "10:00"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.IdentityDomain == "" {
		c.IdentityDomain = "example.com"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/feed-cache"
	}
	if c.PrimaryUser == "" {
		c.PrimaryUser = "me"
	}
	if c.Participants == nil {
		c.Participants = []ParticipantConfig{}
	}
	for i := range c.Participants {
		if c.Participants[i].Source == "" {
			c.Participants[i].Source = "graph"
		}
	}
}

// Window returns the operating window in minutes of day.
func (c *Config) Window() model.OperatingWindow {
	return model.OperatingWindow{
		Start: c.WindowStartHour * 60,
		End:   c.WindowEndHour * 60,
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (parent
// directory created as needed, 0600 perms) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600 perms).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".focuscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
