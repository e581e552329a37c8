package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
)

type anonymizeResult struct {
	Path string
	Rows int
}

type anonymizeRunner func(ctx context.Context, e *env) (anonymizeResult, error)

// NewAnonymizeCommand creates the anonymize sub-command.
func NewAnonymizeCommand(opts *Options) *cobra.Command {
	return newAnonymizeCommandWithDeps(opts, runAnonymize)
}

func newAnonymizeCommandWithDeps(opts *Options, run anonymizeRunner) *cobra.Command {
	var tablePath string

	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Replace profile names with Dev <n> in the profile table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, jobSpec[anonymizeResult]{
				job: observability.JobTool,
				override: func(cfg *config.Config) {
					if tablePath != "" {
						cfg.Paths.Profiles = tablePath
					}
				},
				run: run,
				render: func(out io.Writer, res anonymizeResult) {
					success(out, "Anonymized %d profiles in %s", res.Rows, res.Path)
				},
			})
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "profile table path (default from config)")

	return cmd
}

func runAnonymize(ctx context.Context, e *env) (anonymizeResult, error) {
	path := e.cfg.Paths.Profiles

	rows, err := profile.Anonymize(path)
	if err != nil {
		return anonymizeResult{}, fmt.Errorf("anonymize profiles: %w", err)
	}

	e.logger.InfoContext(ctx, "profile table anonymized", "path", path, "rows", rows)

	return anonymizeResult{Path: path, Rows: rows}, nil
}
