package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"segment-selector/domain/video"
	"segment-selector/infrastructure/config"

	"github.com/spf13/cobra"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput OutputWriter = os.Stdout

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration entries",
	Long: `Manage plan tiers in the configuration file.

Examples:
  segment-selector config list plans
  segment-selector config add plan --key team --name "Team" --max-span 1800
  segment-selector config default plan starter
  segment-selector config remove plan team`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	// Add subcommands
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configUpdateCmd)
	configCmd.AddCommand(configDefaultCmd)
}

func checkEntity(entityType, want string) error {
	if entityType != want {
		return fmt.Errorf("unknown entity type %q. Use %s", entityType, want)
	}
	return nil
}

// --- ADD command ---

var (
	addKey     string
	addName    string
	addMaxSpan float64
)

var configAddCmd = &cobra.Command{
	Use:   "add plan",
	Short: "Add a new plan tier",
	Long: `Add a new plan tier to the configuration.

Examples:
  segment-selector config add plan --key team --name "Team" --max-span 1800`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigAdd,
}

func init() {
	configAddCmd.Flags().StringVar(&addKey, "key", "", "Unique key for the plan (required)")
	configAddCmd.Flags().StringVar(&addName, "name", "", "Display name (required)")
	configAddCmd.Flags().Float64Var(&addMaxSpan, "max-span", 0, "Maximum selection length in seconds (required)")
	configAddCmd.MarkFlagRequired("key")
	configAddCmd.MarkFlagRequired("name")
	configAddCmd.MarkFlagRequired("max-span")
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfigFile()
	if err != nil {
		return err
	}

	return RunConfigAddWithDependencies(cfg, cfgFile, args[0], addKey, addName, addMaxSpan, DefaultOutput)
}

// RunConfigAddWithDependencies runs the add command with injected dependencies
func RunConfigAddWithDependencies(cfg *config.Config, configPath, entityType, key, name string, maxSpan float64, out OutputWriter) error {
	if err := checkEntity(entityType, "plan"); err != nil {
		return err
	}

	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.AddPlan(key, name, maxSpan); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added plan %q: %s (max %s)\n", key, name, video.FormatClock(maxSpan))
	return nil
}

// --- LIST command ---

var configListCmd = &cobra.Command{
	Use:   "list plans",
	Short: "List plan tiers",
	Long: `List all plan tiers ordered by their maximum selection length.
The default plan is marked with *.

Examples:
  segment-selector config list plans`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigList,
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	return RunConfigListWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
}

// RunConfigListWithDependencies runs the list command with injected dependencies
func RunConfigListWithDependencies(cfg *config.Config, configPath, entityType string, out OutputWriter) error {
	if err := checkEntity(entityType, "plans"); err != nil {
		return err
	}

	mgr := config.NewConfigManager(cfg, configPath)
	plans := mgr.ListPlans()
	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans configured.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tMAX SPAN\tDEFAULT")
	for _, p := range plans {
		isDefault := ""
		if p.Default {
			isDefault = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Key, p.Name, video.FormatClock(p.MaxSpanSeconds), isDefault)
	}
	return w.Flush()
}

// --- REMOVE command ---

var configRemoveCmd = &cobra.Command{
	Use:   "remove plan <key>",
	Short: "Remove a plan tier",
	Long: `Remove a plan tier from the configuration. The default plan cannot be removed.

Examples:
  segment-selector config remove plan team`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigRemove,
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfigFile()
	if err != nil {
		return err
	}

	return RunConfigRemoveWithDependencies(cfg, cfgFile, args[0], args[1], DefaultOutput)
}

// RunConfigRemoveWithDependencies runs the remove command with injected dependencies
func RunConfigRemoveWithDependencies(cfg *config.Config, configPath, entityType, key string, out OutputWriter) error {
	if err := checkEntity(entityType, "plan"); err != nil {
		return err
	}

	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.RemovePlan(key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed plan %q\n", key)
	return nil
}

// --- UPDATE command ---

var (
	updateName    string
	updateMaxSpan float64
)

var configUpdateCmd = &cobra.Command{
	Use:   "update plan <key>",
	Short: "Update a plan tier",
	Long: `Update the name or maximum selection length of an existing plan tier.
Running servers pick up the new limit when the file changes.

Examples:
  segment-selector config update plan free --max-span 120
  segment-selector config update plan starter --name "Starter (annual)"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigUpdate,
}

func init() {
	configUpdateCmd.Flags().StringVar(&updateName, "name", "", "New display name")
	configUpdateCmd.Flags().Float64Var(&updateMaxSpan, "max-span", 0, "New maximum selection length in seconds")
}

func runConfigUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfigFile()
	if err != nil {
		return err
	}

	if updateName == "" && updateMaxSpan == 0 {
		return fmt.Errorf("at least one of --name or --max-span is required")
	}

	return RunConfigUpdateWithDependencies(cfg, cfgFile, args[0], args[1], updateName, updateMaxSpan, DefaultOutput)
}

// RunConfigUpdateWithDependencies runs the update command with injected dependencies
func RunConfigUpdateWithDependencies(cfg *config.Config, configPath, entityType, key, name string, maxSpan float64, out OutputWriter) error {
	if err := checkEntity(entityType, "plan"); err != nil {
		return err
	}

	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.UpdatePlan(key, name, maxSpan); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated plan %q\n", key)
	return nil
}

// --- DEFAULT command ---

var configDefaultCmd = &cobra.Command{
	Use:   "default plan <key>",
	Short: "Set the default plan tier",
	Long: `Set the plan used when a command or API request names none.

Examples:
  segment-selector config default plan starter`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigDefault,
}

func runConfigDefault(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfigFile()
	if err != nil {
		return err
	}

	return RunConfigDefaultWithDependencies(cfg, cfgFile, args[0], args[1], DefaultOutput)
}

// RunConfigDefaultWithDependencies runs the default command with injected dependencies
func RunConfigDefaultWithDependencies(cfg *config.Config, configPath, entityType, key string, out OutputWriter) error {
	if err := checkEntity(entityType, "plan"); err != nil {
		return err
	}

	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.SetDefaultPlan(key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Default plan is now %q\n", key)
	return nil
}
