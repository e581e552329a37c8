package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

// jobSpec ties a pipeline job to its command: optional flag overrides on
// the loaded configuration, the job itself, and its summary renderer.
type jobSpec[R any] struct {
	job      observability.Job
	override func(cfg *config.Config)
	run      func(ctx context.Context, e *env) (R, error)
	render   func(out io.Writer, res R)
}

func runJob[R any](cmd *cobra.Command, opts *Options, spec jobSpec[R]) error {
	e, err := opts.setup(cmd, spec.job)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	defer e.close(ctx)

	if spec.override != nil {
		spec.override(e.cfg)

		err = e.cfg.Validate()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	ctx, span := e.tracer.Start(ctx, "freelaudit."+string(spec.job))
	defer span.End()

	res, err := spec.run(ctx, e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	span.SetAttributes(attribute.String("freelaudit.job", string(spec.job)))

	if !opts.Quiet {
		spec.render(e.out, res)
	}

	return nil
}

func newTable(out io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)

	return tw
}

func success(out io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(out, format+"\n", args...)
}

func warning(out io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(out, format+"\n", args...)
}

func failure(out io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprintf(out, format+"\n", args...)
}
