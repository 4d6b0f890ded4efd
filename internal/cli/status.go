package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

type statusOutput struct {
	JobID      string     `json:"job_id"`
	Found      bool       `json:"found"`
	LastFolder string     `json:"last_folder,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func newStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status <staging_path> <table_path>",
		Short:         "Show the stored watermark of a job",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			jobID := model.JobID(args[0], args[1])
			record, err := rootOpts.runner.Status(cmd.Context(), cfg, jobID)
			if err != nil {
				return WrapExitError("failed to read watermark", err)
			}

			out := statusOutput{JobID: jobID}
			if record != nil {
				out.Found = true
				out.LastFolder = record.LastFolder
				out.RunID = record.RunID
				out.UpdatedAt = &record.UpdatedAt
			}

			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
				return nil
			}
			if !out.Found {
				fmt.Fprintf(w, "job %s: no watermark stored\n", jobID)
				return nil
			}
			fmt.Fprintf(w, "job %s: last folder %q (run %s, updated %s)\n",
				jobID, out.LastFolder, out.RunID, out.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}
