package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bfgdl/bfg-downloader/internal/model"
)

// EnvPrefix prefixes every environment variable override, e.g. BFGDL_JOBS.
const EnvPrefix = "BFGDL"

// DefaultConfigFile is read when no path is given and it exists.
const DefaultConfigFile = "config.ini"

// Limits for Jobs.
const (
	MinJobs = 1
	MaxJobs = 64
)

// Settings holds all configuration options.
type Settings struct {
	// Catalog selection
	PlatformName string `mapstructure:"platform"`
	LanguageList string `mapstructure:"language"`

	// Output
	GenScript   bool   `mapstructure:"gen_script"`
	OutputDir   string `mapstructure:"output_dir"`
	ListFormat  string `mapstructure:"list_format"` // aria2, urls
	MetricsFile string `mapstructure:"metrics_file"`

	// Logging
	EnableDebugLogging bool   `mapstructure:"enable_debug_logging"`
	LogLevel           string `mapstructure:"log_level"`
	LogFormat          string `mapstructure:"log_format"`

	// Concurrency
	Jobs               int `mapstructure:"jobs"`
	MaxConcurrentGames int `mapstructure:"max_concurrent_games"`

	// Endpoints
	DownloadURL     string  `mapstructure:"download_url"`
	CatalogURL      string  `mapstructure:"catalog_url"`
	GameInfoURL     string  `mapstructure:"gameinfo_url"`
	CatalogPageSize int     `mapstructure:"catalog_page_size"`
	CatalogRPS      float64 `mapstructure:"catalog_rps"`
	UserAgent       string  `mapstructure:"user_agent"`

	platform  model.Platform
	languages []model.Language
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	s := &Settings{
		PlatformName: "win",
		LanguageList: "eng",

		GenScript:  true,
		OutputDir:  ".",
		ListFormat: "aria2",

		LogLevel:  "info",
		LogFormat: "console",

		Jobs:               8,
		MaxConcurrentGames: 1,

		DownloadURL:     "http://binscentral.bigfishgames.com/downloads/",
		CatalogURL:      "https://www.bigfishgames.com/graphql",
		GameInfoURL:     "https://shop.bigfishgames.com/rest/V1/bfg/rpc/xml",
		CatalogPageSize: 250,
		CatalogRPS:      4,
		UserAgent:       "bfg-downloader",
	}
	_ = s.Validate()
	return s
}

// NewViper returns a viper instance carrying the defaults and reading
// BFGDL_* environment variables. Callers bind their flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	def := DefaultSettings()
	v.SetDefault("platform", def.PlatformName)
	v.SetDefault("language", def.LanguageList)
	v.SetDefault("gen_script", def.GenScript)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("list_format", def.ListFormat)
	v.SetDefault("metrics_file", def.MetricsFile)
	v.SetDefault("enable_debug_logging", def.EnableDebugLogging)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("jobs", def.Jobs)
	v.SetDefault("max_concurrent_games", def.MaxConcurrentGames)
	v.SetDefault("download_url", def.DownloadURL)
	v.SetDefault("catalog_url", def.CatalogURL)
	v.SetDefault("gameinfo_url", def.GameInfoURL)
	v.SetDefault("catalog_page_size", def.CatalogPageSize)
	v.SetDefault("catalog_rps", def.CatalogRPS)
	v.SetDefault("user_agent", def.UserAgent)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load resolves settings from, in increasing priority: defaults, the config
// file, environment variables (a .env file in the working directory is
// loaded first) and whatever flags were bound to v.
//
// An empty path falls back to DefaultConfigFile when it exists. Files ending
// in .yaml, .yml or .json are read by viper; anything else is treated as
// key=value lines.
func Load(v *viper.Viper, path string) (*Settings, error) {
	_ = godotenv.Load()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := readConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	values, err := ReadINI(path)
	if err != nil {
		return err
	}
	cfg := make(map[string]any, len(values))
	for k, val := range values {
		cfg[k] = val
	}
	if err := v.MergeConfigMap(cfg); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// ReadINI reads a flat key=value file. Lines starting with '#' or ';' are
// comments, [section] headers are ignored, keys are lowercased and yes/no
// become true/false.
func ReadINI(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "[") {
			continue
		}
		kept = append(kept, trimmed)
	}

	raw, err := godotenv.Unmarshal(strings.Join(kept, "\n"))
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, val := range raw {
		switch strings.ToLower(val) {
		case "yes":
			val = "true"
		case "no":
			val = "false"
		}
		values[strings.ToLower(k)] = val
	}
	return values, nil
}

// Validate checks ranges, parses platform and languages, and normalizes
// DownloadURL to a single trailing slash.
func (s *Settings) Validate() error {
	var errs []error

	platform, err := model.ParsePlatform(s.PlatformName)
	if err != nil {
		errs = append(errs, err)
	}
	languages, err := model.ParseLanguages(s.LanguageList)
	if err != nil {
		errs = append(errs, err)
	}
	if s.Jobs < MinJobs || s.Jobs > MaxJobs {
		errs = append(errs, fmt.Errorf("jobs must be between %d and %d, got %d", MinJobs, MaxJobs, s.Jobs))
	}
	if s.MaxConcurrentGames < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent_games must be at least 1, got %d", s.MaxConcurrentGames))
	}
	if s.CatalogPageSize < 1 {
		errs = append(errs, fmt.Errorf("catalog_page_size must be at least 1, got %d", s.CatalogPageSize))
	}
	if s.DownloadURL == "" {
		errs = append(errs, errors.New("download_url must not be empty"))
	}
	switch s.ListFormat {
	case "aria2", "urls":
	default:
		errs = append(errs, fmt.Errorf("unknown list_format %q (use aria2 or urls)", s.ListFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}

	s.DownloadURL = model.NormalizeBaseURL(s.DownloadURL)
	if s.EnableDebugLogging {
		s.LogLevel = "debug"
	}
	s.platform = platform
	s.languages = languages
	return nil
}

// Platform returns the validated platform.
func (s *Settings) Platform() model.Platform {
	return s.platform
}

// Languages returns the validated language partitions, in the order given.
func (s *Settings) Languages() []model.Language {
	return s.languages
}
