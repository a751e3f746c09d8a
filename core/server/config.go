package server

import "strings"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"3456"`
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `mapstructure:"host" default:"127.0.0.1"`
	// ApiKey is the secret key required to access the API. Empty disables auth.
	ApiKey string `mapstructure:"api_key" default:""`
}

// Addr returns the listen address for the configured host and port.
func (c Config) Addr() string {
	port := strings.TrimPrefix(c.Port, ":")
	if port == "" {
		port = "3456"
	}
	return c.Host + ":" + port
}
