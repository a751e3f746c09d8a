// Package database handles optional SQL connections.
//
// It provides a wrapper around GORM to configure MySQL or SQLite connections based on
// the application's configuration. The only consumer today is the preset store, which
// falls back to presets.json when no driver is configured.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Optional database connection failed", zap.Error(err))
//	}
package database
