// Package config provides configuration management for the MCP manager.
//
// It utilizes Viper for loading configuration from environment variables and an
// optional .env file. Defaults are declared next to each field with a `default` tag.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: listen address and API key (PORT is accepted as well as SERVER_PORT)
//   - Data: directory of managed files, initial backup retention, settings watching
//   - Storage: optional S3/MinIO mirror for backup artifacts
//   - Database: optional SQL backend for presets
//   - Log: logging level and format (DEBUG=true forces debug)
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Addr())
package config
