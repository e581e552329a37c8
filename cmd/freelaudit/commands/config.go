package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
)

// NewConfigCommand prints the effective configuration with secrets redacted.
func NewConfigCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}
}
