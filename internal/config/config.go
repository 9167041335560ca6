package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings drives both cycles. The YAML file holds everything a user
// tunes; secrets and deploy-specific overrides come from the
// environment on top.
type Settings struct {
	// Publishing
	TargetDestination string `yaml:"target_destination"`
	DefaultFlairID    string `yaml:"default_flair_id"`
	PostLimit         int    `yaml:"post_limit"`

	// Scheduling
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`

	// Harvesting
	FeedURLs []string `yaml:"feeds"`

	// Scoring
	InclusionKeywords []string       `yaml:"inclusion_keywords"`
	ExclusionKeywords []string       `yaml:"exclusion_keywords"`
	AuthorityScores   map[string]int `yaml:"authority_scores"`
	MinimumScore      int            `yaml:"minimum_score"`

	// Filters
	UseDuplicateCheck   bool `yaml:"use_duplicate_check"`
	UseAdaptiveLearning bool `yaml:"use_adaptive_learning"`
}

// Config is the full process configuration: tunable settings plus
// ambient wiring that never changes at runtime.
type Config struct {
	Settings Settings

	// Publishing client
	PublishToken  string
	PublishAPIURL string

	// App settings
	DBPath         string
	Debug          bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	MonitoringPort string
}

// Load reads the settings YAML (SETTINGS_PATH, default
// configs/config.yaml) and applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Settings: Settings{
			PostLimit:            3,
			CheckIntervalMinutes: 30,
			MinimumScore:         1,
			UseDuplicateCheck:    true,
			UseAdaptiveLearning:  true,
		},
		PublishAPIURL:  "https://oauth.reddit.com",
		DBPath:         "feedposter.db",
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     5 * time.Second,
		MonitoringPort: "8080",
	}

	path := getEnvOrDefault("SETTINGS_PATH", "configs/config.yaml")
	if err := loadSettingsFile(path, &cfg.Settings); err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}

	cfg.PublishToken = os.Getenv("PUBLISH_TOKEN")
	if url := os.Getenv("PUBLISH_API_URL"); url != "" {
		cfg.PublishAPIURL = url
	}
	cfg.DBPath = getEnvOrDefault("DB_PATH", cfg.DBPath)
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)

	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
	if v := getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts); v > 0 {
		cfg.RetryAttempts = v
	}
	if v := getEnvIntOrDefault("REQUEST_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}

	return cfg, cfg.Validate()
}

func loadSettingsFile(path string, s *Settings) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	return dec.Decode(s)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Validate rejects configurations the cycles cannot run with. The
// publish token and destination are deliberately not checked here:
// their absence is a start-time precondition, not a load failure.
func (c *Config) Validate() error {
	if len(c.Settings.FeedURLs) == 0 {
		return fmt.Errorf("at least one feed URL is required")
	}
	if c.Settings.CheckIntervalMinutes <= 0 {
		return fmt.Errorf("check_interval_minutes must be positive")
	}
	if c.Settings.PostLimit <= 0 {
		return fmt.Errorf("post_limit must be positive")
	}
	return nil
}
