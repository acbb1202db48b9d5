package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoangnp/careerpilot/pkg/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}

		summaries, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}
		for _, s := range summaries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d messages\n",
				s.SessionID, s.CreatedAt.Format(time.RFC3339), s.MessageCount)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session transcript as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}

		doc, err := store.Load(args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats [session-id]",
	Short: "Print per-role message counts and duration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}

		stats, err := store.Stats(args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render stats: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var sessionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Archive sessions older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		store, err := session.NewStore(cfg.Sessions.Dir)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}

		archiver := session.NewArchiver(store, cfg.Sessions.ArchiveDir,
			time.Duration(cfg.Sessions.RetentionDays)*24*time.Hour)

		moved, err := archiver.Sweep()
		if err != nil {
			return fmt.Errorf("archive sweep failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %d session(s).\n", moved)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsStatsCmd)
	sessionsCmd.AddCommand(sessionsSweepCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openSessionStore() (*session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := session.NewStore(cfg.Sessions.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}
