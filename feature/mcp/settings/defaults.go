package settings

import (
	"path/filepath"

	"mcp-manager/feature/mcp/models"
)

// DefaultMaxBackups is used when neither settings.json nor the configuration
// provide a usable retention.
const DefaultMaxBackups = 5

// DefaultClients returns the built-in clients with their usual config file
// locations under home for the given GOOS.
func DefaultClients(home, goos string) map[string]models.Client {
	var claudeDir string
	switch goos {
	case "darwin":
		claudeDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "windows":
		claudeDir = filepath.Join(home, "AppData", "Roaming", "Claude")
	default:
		claudeDir = filepath.Join(home, ".config", "Claude")
	}

	return map[string]models.Client{
		"claude": {
			Name:       "Claude Desktop",
			ConfigPath: filepath.Join(claudeDir, "claude_desktop_config.json"),
			Enabled:    true,
			BuiltIn:    true,
		},
		"cursor": {
			Name:       "Cursor",
			ConfigPath: filepath.Join(home, ".cursor", "mcp.json"),
			Enabled:    true,
			BuiltIn:    true,
		},
		"windsurf": {
			Name:       "Windsurf",
			ConfigPath: filepath.Join(home, ".codeium", "windsurf", "mcp_config.json"),
			BuiltIn:    true,
		},
		"claude-code": {
			Name:       "Claude Code",
			ConfigPath: filepath.Join(home, ".claude.json"),
			BuiltIn:    true,
		},
	}
}

// Defaults returns the settings written when settings.json does not exist.
func Defaults(home, goos string, maxBackups int) *models.Settings {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &models.Settings{
		MaxBackups: maxBackups,
		Clients:    DefaultClients(home, goos),
		SyncGroups: map[string]models.SyncGroup{},
	}
}
