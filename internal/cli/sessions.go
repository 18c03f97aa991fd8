package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func NewSessionsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage meeting sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sessions []map[string]any
			if err := deps.Client.Get(cmd.Context(), "/v1/sessions", &sessions); err != nil {
				return err
			}
			return printJSON(sessions)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create [title...]",
		Short: "Create a session and open it for recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sess map[string]any
			body := map[string]string{"title": strings.Join(args, " ")}
			if err := deps.Client.Post(cmd.Context(), "/v1/sessions", body, &sess); err != nil {
				return err
			}
			return printJSON(sess)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sess map[string]any
			if err := deps.Client.Get(cmd.Context(), "/v1/sessions/"+args[0], &sess); err != nil {
				return err
			}
			return printJSON(sess)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "open <session-id>",
		Short: "Open an existing session for recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap map[string]any
			if err := deps.Client.Post(cmd.Context(), "/v1/sessions/"+args[0]+"/open", nil, &snap); err != nil {
				return err
			}
			return printJSON(snap)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "segments <session-id>",
		Short: "List transcript segments for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var segs []map[string]any
			if err := deps.Client.Get(cmd.Context(), "/v1/sessions/"+args[0]+"/segments", &segs); err != nil {
				return err
			}
			return printJSON(segs)
		},
	})

	var speakerID string
	rename := &cobra.Command{
		Use:   "rename-speaker <session-id> <name>",
		Short: "Assign a display name to a diarized speaker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			body := map[string]string{"speaker_id": speakerID, "name": args[1]}
			if err := deps.Client.Post(cmd.Context(), "/v1/sessions/"+args[0]+"/speakers", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	rename.Flags().StringVar(&speakerID, "speaker", "", "Engine speaker identifier to rename")
	_ = rename.MarkFlagRequired("speaker")
	cmd.AddCommand(rename)

	cmd.AddCommand(&cobra.Command{
		Use:   "notes <session-id> <text...>",
		Short: "Replace the user notes for a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"notes": strings.Join(args[1:], " ")}
			return deps.Client.Put(cmd.Context(), "/v1/sessions/"+args[0]+"/notes", body, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "agenda <session-id> <text...>",
		Short: "Replace the agenda for a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"agenda": strings.Join(args[1:], " ")}
			return deps.Client.Put(cmd.Context(), "/v1/sessions/"+args[0]+"/agenda", body, nil)
		},
	})

	return cmd
}
