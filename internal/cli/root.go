package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

type Dependencies struct {
	Client *Client
}

func NewRootCmd(version string) *cobra.Command {
	var addr string
	deps := &Dependencies{}

	rootCmd := &cobra.Command{
		Use:           "minutectl",
		Short:         "Control a running minuted instance",
		Long:          "Command-line client for the minuted meeting assistant daemon: manage sessions, recording, AI meeting updates, and model downloads over its local API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if env := os.Getenv("MINUTE_ADDR"); env != "" && !cmd.Flags().Changed("addr") {
				addr = env
			}
			deps.Client = NewClient(addr)
		},
	}
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8995", "Base URL of the minuted API")

	rootCmd.AddCommand(NewSessionsCmd(deps))
	rootCmd.AddCommand(NewConsentCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewStateCmd(deps))
	rootCmd.AddCommand(NewUpdateCmd(deps))
	rootCmd.AddCommand(NewModelsCmd(deps))

	return rootCmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
