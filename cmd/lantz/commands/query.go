package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LabPy/lantz-core/backends/message"
	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/driver"
)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use:   "query <command>...",
	Short: "Send commands to an instrument and print the answers",
	Long: `query — Talk to an instrument directly

Commands ending in "?" are queries and their answer is printed;
anything else is written without reading back.

Examples:
  lantz query -r TCPIP::192.168.0.1::50000::SOCKET "*IDN?"
  lantz query -r fungen "VOLT 2.5" "VOLT?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	queryResource string
	queryTimeout  time.Duration
)

func init() {
	QueryCmd.Flags().StringVarP(&queryResource, "resource", "r", "", "Resource name or alias (required)")
	QueryCmd.Flags().DurationVarP(&queryTimeout, "timeout", "t", 2*time.Second, "Per-command timeout")
	QueryCmd.MarkFlagRequired("resource")
}

func runQuery(cmd *cobra.Command, args []string) error {
	d, err := message.ViaResource("cli", queryResource, nil,
		config.CommSettings{TimeoutMS: int(queryTimeout.Milliseconds())})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", queryResource, err)
	}
	defer driver.Release(d.ResourceName())

	ctx := context.Background()
	if err := d.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer d.Finalize()

	for _, command := range args {
		if strings.HasSuffix(command, "?") {
			answer, err := d.Query(ctx, command)
			if err != nil {
				pterm.Error.Printf("%s: %v\n", command, err)
				return err
			}
			fmt.Println(answer)
		} else {
			if err := d.Write(ctx, command); err != nil {
				pterm.Error.Printf("%s: %v\n", command, err)
				return err
			}
		}
	}
	return nil
}
