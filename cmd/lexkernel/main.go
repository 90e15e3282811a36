package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/cmd/lexkernel/commands"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lexkernel",
	Short: "lexkernel - Robust multi-source signal fusion",
	Long: `lexkernel - Robust multi-source signal fusion engine.

Fuses measurements from multiple noisy, partially unreliable sources into a
single trustworthy signal, down-weighting sources that disagree with the
robust consensus and flagging sources that drift over time.

Available commands:
  fuse    - Fuse a batch of source series from a JSON file
  serve   - Start the WebSocket streaming fusion server
  alerts  - List persisted drift alerts
  config  - Manage engine configuration
  version - Show version information

Examples:
  lexkernel fuse sensors.json              # One-shot batch fusion
  lexkernel fuse sensors.json --method trimmed_mean
  lexkernel serve                          # Start streaming server
  lexkernel alerts --limit 20              # Recent drift alerts
  lexkernel config show                    # Show current configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbosity, _ := cmd.Flags().GetCount("verbose"); verbosity > 0 {
			if err := logger.SetLevel(zapcore.DebugLevel); err != nil {
				return fmt.Errorf("failed to set log level: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.FuseCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.AlertsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
