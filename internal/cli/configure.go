package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoangnp/careerpilot/internal/config"
)

var (
	configureProvider string
	configureModel    string
	configureAPIKeys  []string
	configureDBURL    string
	configurePort     int
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the careerpilot configuration file",
	Long: `Write the careerpilot configuration file. Existing settings are kept
unless overridden by a flag; API keys can also be supplied via the
GEMINI_API_KEYS environment variable instead of being stored on disk.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureProvider, "provider", "", "AI provider (gemini, openai, anthropic)")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "model name")
	configureCmd.Flags().StringSliceVar(&configureAPIKeys, "api-key", nil, "API key (repeatable)")
	configureCmd.Flags().StringVar(&configureDBURL, "database-url", "", "PostgreSQL connection URL")
	configureCmd.Flags().IntVar(&configurePort, "gateway-port", 0, "gateway listen port")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	if configureProvider != "" {
		cfg.AI.Provider = configureProvider
	}
	if configureModel != "" {
		cfg.AI.Model = configureModel
	}
	if len(configureAPIKeys) > 0 {
		cfg.AI.APIKeys = configureAPIKeys
	}
	if configureDBURL != "" {
		cfg.Database.URL = configureDBURL
	}
	if configurePort > 0 {
		cfg.Gateway.Port = configurePort
	}

	validator := config.NewValidator()
	if errs := validator.ValidateConfig(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %v\n", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(cmd.OutOrStdout(), "Start the gateway with: careerpilot serve")
	return nil
}
