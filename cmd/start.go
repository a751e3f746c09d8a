package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mcp-manager/core/loader"
	"mcp-manager/core/logger"
	"mcp-manager/core/middleware/auth"
	"mcp-manager/core/middleware/rayid"
	"mcp-manager/feature/mcp"
	"mcp-manager/feature/presets"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "mcp-manager/docs/swagger"
)

// @title MCP Manager API
// @version 1.0
// @description Manages MCP server definitions shared by several client applications.
// @host localhost:3456
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the configuration manager server",
	Long:  `Loads settings.json, wires the stores and serves the HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration and Logger
		cfg, logg, err := loadRuntime()
		if err != nil {
			log.Fatal(err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 2. Wire stores on top of the data directory
		a, err := bootstrap(ctx, cfg, logg)
		if err != nil {
			logg.Fatal("Failed to initialize", zap.Error(err))
		}

		if cfg.Data.WatchSettings {
			go func() {
				if err := a.settings.Watch(ctx); err != nil {
					logg.Warn("Settings watcher stopped", zap.Error(err))
				}
			}()
		}

		// 3. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// 4. Initialize Feature Loader
		mgr := loader.NewManager(logg)
		mgr.Register(mcp.NewFeature(a.settings, a.engine, a.groups, logg))
		mgr.Register(presets.NewFeature(a.presets, logg))

		// RayID first so every log line can be traced
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger stays public
		app.Get("/swagger/*", swagger.HandlerDefault)

		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 5. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("addr", cfg.Server.Addr()), zap.String("data", cfg.Data.Dir))
			if err := app.Listen(cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
