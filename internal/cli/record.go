package cli

import (
	"github.com/spf13/cobra"
)

func NewConsentCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "consent <session-id>",
		Short: "Confirm all participants consented to recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap map[string]any
			if err := deps.Client.Post(cmd.Context(), "/v1/sessions/"+args[0]+"/consent", nil, &snap); err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "record <session-id>",
		Short: "Toggle recording for the open session",
		Long:  "Starts recording if the session is idle, stops it if recording is in progress. Starting requires prior consent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap map[string]any
			body := map[string]string{"input_device_id": device}
			if err := deps.Client.Post(cmd.Context(), "/v1/sessions/"+args[0]+"/record", body, &snap); err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Input device identifier to pass to the transcription engine")
	return cmd
}

func NewStateCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current recording state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap map[string]any
			if err := deps.Client.Get(cmd.Context(), "/v1/recording", &snap); err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}
