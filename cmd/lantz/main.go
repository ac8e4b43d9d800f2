package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/LabPy/lantz-core/cmd/lantz/commands"
	"github.com/LabPy/lantz-core/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lantz",
	Short: "Lantz - Instrument control toolkit",
	Long: `Lantz - Talk to laboratory instruments from the command line.

Available commands:
  config    - Manage configuration and instrument aliases
  resource  - Parse and canonicalize VISA resource names
  query     - Send a command to an instrument and print the answer
  monitor   - Poll instrument features and serve updates over websocket
  version   - Show version information

Examples:
  lantz config show                              # Show current configuration
  lantz resource parse TCPIP::192.168.0.1::INSTR # Canonical form of a name
  lantz query -r TCPIP::192.168.0.1::50000::SOCKET "*IDN?"
  lantz monitor -r ASRL2::INSTR -f amplitude`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs. Keep config
		// show output clean of log lines.
		if cmd.Name() == "show" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(false, verbosityLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ResourceCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.MonitorCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

// verbosityLevel maps the -v count to a log level.
func verbosityLevel(n int) zapcore.Level {
	if n > 0 {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
