package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fsm-intake/internal/client"
	"fsm-intake/internal/config"
)

var (
	apiFlag     string
	sessionFlag string
	jsonFlag    bool
	rootCmd     = &cobra.Command{
		Use:           "intakectl",
		Short:         "CLI client for the email intake API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func newClient() *client.Client {
	return client.New(apiFlag, sessionFlag)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", config.GetEnv("INTAKE_API_URL", client.DefaultBaseURL), "Intake API base URL")
	rootCmd.PersistentFlags().StringVarP(&sessionFlag, "session", "s", config.GetEnv("INTAKE_SESSION", ""), "Viewing session id for server-side review")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print raw JSON")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
