package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/fanin/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without contacting any service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (policy %s, %d services)\n", path, cfg.Policy, len(cfg.Services))
			return nil
		},
	}
}
