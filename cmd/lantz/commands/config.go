package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/resource"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration and instrument aliases",
	Long: `config — Manage Lantz configuration

Display and manage communication defaults, instrument aliases and
monitor settings.

Configuration sources (in order of precedence):
1. Project config (./lantz.toml, searches up directories)
2. User config (~/.lantz/lantz.toml, ~/.lantz/aliases.toml)
3. System config (/etc/lantz/config.toml)
4. Environment variables (LANTZ_* prefix, for keys no file sets)
5. Default values

Examples:
  lantz config show                   # Show current configuration
  lantz config get comm.asrl.baud_rate
  lantz config validate
  lantz config alias set fungen TCPIP::192.168.0.1::50000::SOCKET
  lantz config alias rm fungen`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration merged from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., comm.asrl.baud_rate)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runConfigValidate,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runConfigWhere,
}

var configAliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage instrument aliases",
}

var configAliasListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List instrument aliases",
	RunE:  runAliasList,
}

var configAliasSetCmd = &cobra.Command{
	Use:   "set <name> <resource>",
	Short: "Persist an instrument alias",
	Args:  cobra.ExactArgs(2),
	RunE:  runAliasSet,
}

var configAliasRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove an instrument alias",
	Args:  cobra.ExactArgs(1),
	RunE:  runAliasRm,
}

var configFormat string
var aliasDriver string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")
	configAliasSetCmd.Flags().StringVar(&aliasDriver, "driver", "", "Driver name to associate with the alias")

	configAliasCmd.AddCommand(configAliasListCmd)
	configAliasCmd.AddCommand(configAliasSetCmd)
	configAliasCmd.AddCommand(configAliasRmCmd)

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configWhereCmd)
	ConfigCmd.AddCommand(configAliasCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# Lantz configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json)", configFormat)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := config.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	fmt.Println(config.Get(key))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	fmt.Println("✓ Configuration is valid")
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration cascade (later overrides earlier):")
	fmt.Println("  1. [DEFAULT]  Built-in defaults")
	fmt.Println("  2. [SYSTEM]   /etc/lantz/config.toml")
	fmt.Println("  3. [USER]     ~/.lantz/lantz.toml")
	fmt.Println("  4. [USER]     ~/.lantz/aliases.toml")
	fmt.Println("  5. [PROJECT]  ./lantz.toml (searches up directories)")
	fmt.Println("  6. [ENV]      LANTZ_* environment variables")
	fmt.Println()

	home, _ := os.UserHomeDir()
	paths := []string{
		"/etc/lantz/config.toml",
		filepath.Join(home, ".lantz", "lantz.toml"),
		filepath.Join(home, ".lantz", "aliases.toml"),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			fmt.Printf("  present  %s\n", p)
		} else {
			fmt.Printf("  missing  %s\n", p)
		}
	}
	return nil
}

func runAliasList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(cfg.Aliases) == 0 {
		fmt.Println("No aliases configured")
		return nil
	}

	names := make([]string, 0, len(cfg.Aliases))
	for name := range cfg.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		alias := cfg.Aliases[name]
		if alias.Driver != "" {
			fmt.Printf("%-16s %s (%s)\n", name, alias.Resource, alias.Driver)
		} else {
			fmt.Printf("%-16s %s\n", name, alias.Resource)
		}
	}
	return nil
}

func runAliasSet(cmd *cobra.Command, args []string) error {
	name, resourceName := args[0], args[1]

	canonical := resource.Canonical(resourceName)
	if err := config.SetAlias(name, config.Alias{
		Resource: canonical,
		Driver:   aliasDriver,
	}); err != nil {
		return fmt.Errorf("failed to persist alias: %w", err)
	}
	fmt.Printf("✓ %s -> %s\n", name, canonical)
	return nil
}

func runAliasRm(cmd *cobra.Command, args []string) error {
	if err := config.RemoveAlias(args[0]); err != nil {
		return fmt.Errorf("failed to remove alias: %w", err)
	}
	fmt.Printf("✓ removed %s\n", args[0])
	return nil
}
