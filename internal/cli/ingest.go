package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/serialization"
)

// IngestOptions holds the flags of an ingestion run.
type IngestOptions struct {
	StagingFormat       string
	WriteType           string
	PrimaryKey          string
	OverwriteLatestOnly bool
}

func newIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "deltaloader <staging_bucket> <staging_path> <table_bucket> <table_path>",
		Short: "Incrementally load new staged folders into a table",
		Long: `Load every staging folder newer than the job's watermark into the destination table,
oldest first, advancing the watermark after each folder.

The job is identified by the (staging_path, table_path) pair. A failed run can simply be
started again: it resumes at the first folder that was not completed.`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.StagingFormat, "staging-format", "parquet", "format of the staged files (parquet|csv|json)")
	cmd.Flags().StringVar(&opts.WriteType, "write-type", "merge", "write policy for an existing table (append|overwrite|merge)")
	cmd.Flags().StringVar(&opts.PrimaryKey, "primary-key", "", "merge key column, required with --write-type merge")
	cmd.Flags().BoolVar(&opts.OverwriteLatestOnly, "overwrite-latest-only", false, "with overwrite, apply only the newest of several pending folders")
	return cmd
}

// jobParameters combines the positional arguments, the flags and the job section of the
// configuration. Flags set on the command line win. Paths are kept exactly as given because
// the job id hashes them.
func jobParameters(cmd *cobra.Command, cfg *config.Config, opts *IngestOptions, args []string) (model.JobParameters, error) {
	job := cfg.Loader.Job
	format, policy, key := opts.StagingFormat, opts.WriteType, opts.PrimaryKey
	if !cmd.Flags().Changed("staging-format") && job.StagingFormat != "" {
		format = job.StagingFormat
	}
	if !cmd.Flags().Changed("write-type") && job.WriteType != "" {
		policy = job.WriteType
	}
	if !cmd.Flags().Changed("primary-key") {
		key = job.PrimaryKey
	}

	stagingFormat, err := model.ParseStagingFormat(format)
	if err != nil {
		return model.JobParameters{}, err
	}
	writePolicy, err := model.ParseWritePolicy(policy)
	if err != nil {
		return model.JobParameters{}, err
	}
	params := model.JobParameters{
		StagingBucket:       args[0],
		StagingPath:         args[1],
		TableBucket:         args[2],
		TablePath:           args[3],
		StagingFormat:       stagingFormat,
		WritePolicy:         writePolicy,
		PrimaryKey:          key,
		OverwriteLatestOnly: opts.OverwriteLatestOnly || job.OverwriteLatestOnly,
	}
	return params, params.Validate()
}

func runIngest(cmd *cobra.Command, rootOpts *RootOptions, opts *IngestOptions, args []string) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	params, err := jobParameters(cmd, cfg, opts, args)
	if err != nil {
		return WrapExitError("invalid arguments", err)
	}

	report, runErr := rootOpts.runner.Run(cmd.Context(), cfg, params)
	if report != nil {
		if err := writeReport(cmd.OutOrStdout(), rootOpts.Format, report); err != nil {
			return &ExitError{Code: ExitFailure, Message: "failed to write report", Err: err}
		}
	}
	if runErr != nil {
		return WrapExitError("ingestion failed", runErr)
	}
	return nil
}

func writeReport(w io.Writer, format string, report *model.RunReport) error {
	if format == "json" {
		data, err := serialization.MarshalRunReport(report)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	status := "succeeded"
	if !report.Succeeded() {
		status = "failed"
	}
	fmt.Fprintf(w, "job %s (run %s) %s in %s\n", report.JobID, report.RunID, status, report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  watermark: %q -> %q\n", report.Watermark, report.FinalWatermark)
	fmt.Fprintf(w, "  folders:   %d listed, %d pending, %d processed\n", report.Candidates, len(report.Pending), len(report.Processed))
	for _, f := range report.Processed {
		fmt.Fprintf(w, "    + %s\n", f)
	}
	for _, f := range report.Skipped {
		fmt.Fprintf(w, "    ~ %s (skipped)\n", f)
	}
	if report.Error != "" {
		fmt.Fprintf(w, "  error:     %s\n", report.Error)
	}
	return nil
}
