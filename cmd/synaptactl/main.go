package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	apiFlag string
	rootCmd = &cobra.Command{
		Use:   "synaptactl",
		Short: "CLI client for the synapta REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "synapta service base URL")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-provider connection and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/api/v1/sync/status")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(statusCmd)

	syncCmd := &cobra.Command{
		Use:   "sync PROVIDER",
		Short: "Start a sync for a provider (gmail or hubspot)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(fmt.Sprintf("%s/api/v1/sync/%s", apiFlag, args[0]), nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(syncCmd)

	jobCmd := &cobra.Command{
		Use:   "job JOB_ID",
		Short: "Show one sync job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/v1/sync/jobs/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(jobCmd)

	chatCmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Ask a question against the synced data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"message": strings.Join(args, " ")}
			data, err := doPostJSON(apiFlag+"/api/v1/agent/chat", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(chatCmd)

	connectTokenCmd := &cobra.Command{
		Use:   "connect-token",
		Short: "Mint an OAuth connect token",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(apiFlag+"/api/v1/auth/connect-token", nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(connectTokenCmd)

	saveCmd := &cobra.Command{
		Use:   "save PROVIDER",
		Short: "Persist a freshly connected provider account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(fmt.Sprintf("%s/api/v1/integrations/%s/save", apiFlag, args[0]), nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(saveCmd)

	disconnectCmd := &cobra.Command{
		Use:   "disconnect PROVIDER",
		Short: "Disconnect a provider account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doDelete(fmt.Sprintf("%s/api/v1/integrations/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			if len(data) > 0 {
				_, _ = fmt.Fprintln(os.Stdout, string(data))
			}
			return nil
		},
	}
	rootCmd.AddCommand(disconnectCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
