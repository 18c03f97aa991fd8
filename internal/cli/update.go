package cli

import (
	"github.com/spf13/cobra"
)

func NewUpdateCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "AI meeting updates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run <session-id>",
		Short: "Generate a fresh summary and agenda for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd map[string]any
			if err := deps.Client.Post(cmd.Context(), "/v1/sessions/"+args[0]+"/update", nil, &upd); err != nil {
				return err
			}
			return printJSON(upd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the latest stored meeting update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd map[string]any
			if err := deps.Client.Get(cmd.Context(), "/v1/sessions/"+args[0]+"/update", &upd); err != nil {
				return err
			}
			return printJSON(upd)
		},
	})

	return cmd
}
