// Package config provides configuration management for bfg-downloader.
//
// This package handles:
//   - Default configuration values
//   - Reading config.ini (key=value), YAML or JSON files
//   - BFGDL_* environment overrides, including a local .env file
//   - Validation of platform, languages and concurrency limits
//
// # Loading
//
// Flags win over environment variables, which win over the file:
//
//	v := config.NewViper()
//	_ = v.BindPFlag("jobs", cmd.Flags().Lookup("jobs"))
//	settings, err := config.Load(v, "config.ini")
//
// # config.ini
//
//	# comments start with '#' or ';'
//	platform=win
//	language=eng,ger
//	gen_script=true
//	enable_debug_logging=false
//
// # Configuration Options
//
// Settings includes options for:
//   - Catalog platform and language partitions
//   - Output directory and download list format
//   - Metadata and segment concurrency
//   - Endpoint URLs, page size and catalog request rate
//   - Log level and format
package config
