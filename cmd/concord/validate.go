package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides,
and run full validation without starting the bus.

Exits non-zero when the configuration is invalid, printing every
violation found.

Examples:
  # Validate the default configuration
  concord validate

  # Validate a specific file
  concord validate --config /etc/concord/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("configuration is valid")
	fmt.Printf("  constitutional hash: %s\n", message.SanitizeHash(cfg.ConstitutionalHash))
	fmt.Printf("  workers: %d, queue capacity: %d\n", cfg.Bus.WorkerCount, cfg.Bus.QueueCapacity)
	fmt.Printf("  policy mode: %s\n", policyModeName(cfg))
	fmt.Printf("  deliberation threshold: %.2f\n", cfg.Deliberation.Threshold)
	fmt.Printf("  audit backend: %s\n", cfg.Audit.Backend)
	if cfg.Telemetry.Metrics.ListenAddress != "" {
		fmt.Printf("  ops listener: %s\n", cfg.Telemetry.Metrics.ListenAddress)
	}
	return nil
}

// loadConfig resolves the configuration for every subcommand: the
// --config file when given, built-in defaults otherwise.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadWithEnvOverrides(cfgFile)
}

func policyModeName(cfg *config.Config) string {
	if cfg.Policy.Mode == "" {
		return "auto"
	}
	return cfg.Policy.Mode
}
