package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/orbits/am"
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Manage orbits configuration",
	Long: sym.AM + ` am — Manage orbits configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags (--as, --db, --driver)
2. Environment variables (ORBITS_* prefix)
3. Project config (./am.toml, searched up directories)
4. User config (~/.orbits/am.toml)
5. System config (/etc/orbits/am.toml)
6. Default values

Examples:
  orbits am show                    # Show current configuration
  orbits am show --format json      # Show configuration in JSON format
  orbits am get agent.name          # Get specific config value
  orbits am set agent.name alice    # Persist a value to ~/.orbits/am.toml
  orbits am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, agent.name)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Long:  "Write a configuration value to the user config file. The previous file is kept as a .back1 backup.",
	Args:  cobra.ExactArgs(2),
	RunE:  runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var (
	configFormat string
	configFile   string
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", formatTOML, "Output format: toml, json, yaml")
	amSetCmd.Flags().StringVar(&configFile, "file", "", "Config file to write (default: ~/.orbits/am.toml)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	w := cmd.OutOrStdout()
	switch configFormat {
	case formatTOML:
		fmt.Fprintf(w, "# orbits configuration\n%s", cfg.String())
		return nil
	case formatJSON, formatYAML:
		return writeStructured(w, configFormat, cfg)
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.NewNotFoundError("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = am.UserConfigPath()
	}
	if path == "" {
		return errors.WithHint(
			errors.New("no home directory to write configuration to"),
			"pass --file",
		)
	}

	if err := am.SetValue(path, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s (%s)\n", sym.AM, args[0], args[1], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}
