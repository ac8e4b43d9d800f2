package commands

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/resource"
)

// ResourceCmd represents the resource command
var ResourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Parse and canonicalize VISA resource names",
	Long: `resource — Work with VISA resource names

Examples:
  lantz resource parse TCPIP::192.168.0.1::INSTR
  lantz resource parse asrl2
  lantz resource ls`,
}

var resourceParseCmd = &cobra.Command{
	Use:   "parse <name>",
	Short: "Parse a resource name and show its canonical form",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourceParse,
}

var resourceLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List configured instrument aliases",
	RunE:  runResourceLs,
}

func init() {
	ResourceCmd.AddCommand(resourceParseCmd)
	ResourceCmd.AddCommand(resourceLsCmd)
}

func runResourceParse(cmd *cobra.Command, args []string) error {
	n, err := resource.Parse(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse resource name: %w", err)
	}

	pterm.Success.Printf("Canonical: %s\n", n.String())

	rows := [][]string{
		{"Interface", string(n.Interface)},
		{"Class", string(n.Class)},
		{"Board", fmt.Sprint(n.Board)},
	}
	switch n.Interface {
	case resource.TCPIP:
		rows = append(rows, []string{"Host", n.Host})
		if n.Class == resource.Socket {
			rows = append(rows, []string{"Port", fmt.Sprint(n.Port)})
		} else {
			rows = append(rows, []string{"LAN device", n.LANDevice})
		}
	case resource.USB:
		rows = append(rows,
			[]string{"Manufacturer", n.ManufacturerID},
			[]string{"Model", n.ModelCode},
			[]string{"Serial", n.SerialNumber})
	case resource.GPIB:
		rows = append(rows, []string{"Primary address", fmt.Sprint(n.PrimaryAddress)})
		if n.SecondaryAddress >= 0 {
			rows = append(rows, []string{"Secondary address", fmt.Sprint(n.SecondaryAddress)})
		}
	}

	return pterm.DefaultTable.WithData(rows).Render()
}

func runResourceLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(cfg.Aliases) == 0 {
		pterm.Info.Println("No instrument aliases configured")
		return nil
	}

	names := make([]string, 0, len(cfg.Aliases))
	for name := range cfg.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := [][]string{{"Alias", "Resource", "Driver"}}
	for _, name := range names {
		a := cfg.Aliases[name]
		rows = append(rows, []string{name, resource.Canonical(a.Resource), a.Driver})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
