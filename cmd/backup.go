package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// backupCmd groups the backup commands.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backups of configuration files",
}

// backupRunCmd forces a backup pass on a file.
var backupRunCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Back up a file and prune older backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := loadRuntime()
		if err != nil {
			return err
		}
		defer l.Sync()

		a, err := bootstrap(cmd.Context(), cfg, l)
		if err != nil {
			return err
		}

		target, err := a.backups.Backup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if target == "" {
			l.Info("Nothing to back up, file does not exist", zap.String("file", args[0]))
			return nil
		}
		l.Info("Backup created", zap.String("backup", target), zap.Int("retention", a.settings.Current().MaxBackups))
		return nil
	},
}

// backupListCmd lists the backups of a file, newest first.
var backupListCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List the backups of a file, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := loadRuntime()
		if err != nil {
			return err
		}
		defer l.Sync()

		a, err := bootstrap(cmd.Context(), cfg, l)
		if err != nil {
			return err
		}

		entries, err := a.backups.List(args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	},
}

func init() {
	backupCmd.AddCommand(backupRunCmd, backupListCmd)
	RootCmd.AddCommand(backupCmd)
}
