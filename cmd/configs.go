package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showClient string
	showGroup  string
	checkJSON  bool
)

// configsCmd groups the read-only configuration commands.
var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Inspect client configurations",
}

// configsCheckCmd reports whether the clients' own config files disagree.
var configsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the config files of the enabled clients",
	Long: `Compares the own config file of every enabled client against the first one.
The check only runs when syncClients is enabled in settings.json and at least two
clients are enabled. Exits with status 2 when the files differ.`,
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

		report, err := a.service().CheckConfigs(cmd.Context())
		if err != nil {
			return err
		}

		if checkJSON {
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			l.Info("Divergence check",
				zap.Bool("configs_differ", report.ConfigsDiffer),
				zap.Strings("checked", report.Checked),
				zap.Int("differences", len(report.Differences)))
			for _, d := range report.Differences {
				l.Warn(d.Message, zap.String("client_a", d.ClientA), zap.String("client_b", d.ClientB))
			}
		}

		if report.ConfigsDiffer {
			os.Exit(2)
		}
		return nil
	},
}

// configsShowCmd prints a client, group or aggregated view.
var configsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the combined view of a client, a sync group, or all enabled clients",
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

		view, err := a.service().GetConfig(cmd.Context(), showClient, showGroup)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), view)
	},
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func init() {
	configsCheckCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the report as JSON")
	configsShowCmd.Flags().StringVar(&showClient, "client", "", "Client id")
	configsShowCmd.Flags().StringVar(&showGroup, "group", "", "Sync group id")

	configsCmd.AddCommand(configsCheckCmd, configsShowCmd)
	RootCmd.AddCommand(configsCmd)
}
