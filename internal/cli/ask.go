package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question",
	Long: `Ask the career advisor a single question and print the response
envelope as JSON. Pass --session to continue an existing conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "existing session id to continue")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	svcLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer svcLogger.Close()

	rt, err := buildRuntime(cmd.Context(), cfg, svcLogger.GetZerolog())
	if err != nil {
		return err
	}
	defer rt.close()

	raw := map[string]interface{}{
		"message": []interface{}{
			map[string]interface{}{"role": "user", "content": strings.Join(args, " ")},
		},
		"metadata": map[string]interface{}{"source": "cli"},
	}
	if askSessionID != "" {
		raw["sessionId"] = askSessionID
	}

	result := rt.formatter.Process(cmd.Context(), raw)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render response: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
