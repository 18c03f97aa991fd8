package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewModelsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage local transcription models",
	}

	var (
		repoID string
		dest   string
		token  string
	)
	download := &cobra.Command{
		Use:   "download",
		Short: "Download a model from its hub repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res map[string]any
			body := map[string]string{"repo_id": repoID, "dest": dest, "token": token}
			if err := deps.Client.Post(cmd.Context(), "/v1/models/download", body, &res); err != nil {
				return err
			}
			if err := printJSON(res); err != nil {
				return err
			}
			if ok, _ := res["ok"].(bool); !ok {
				return fmt.Errorf("download failed")
			}
			return nil
		},
	}
	download.Flags().StringVar(&repoID, "repo-id", "", "Hub repository identifier of the model")
	download.Flags().StringVar(&dest, "dest", "", "Destination directory for the model files")
	download.Flags().StringVar(&token, "token", "", "Optional hub access token")
	_ = download.MarkFlagRequired("repo-id")
	_ = download.MarkFlagRequired("dest")
	cmd.AddCommand(download)

	var path string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate a downloaded model on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res map[string]any
			body := map[string]string{"path": path}
			if err := deps.Client.Post(cmd.Context(), "/v1/models/validate", body, &res); err != nil {
				return err
			}
			if err := printJSON(res); err != nil {
				return err
			}
			if ok, _ := res["ok"].(bool); !ok {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
	validate.Flags().StringVar(&path, "path", "", "Model directory to validate")
	_ = validate.MarkFlagRequired("path")
	cmd.AddCommand(validate)

	return cmd
}
