package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/testcases"
)

func newListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available test cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				// descriptions do not depend on the config
				cfg = config.CreateDefaultConfig()
			}
			for _, name := range testcases.Names() {
				fmt.Fprintf(os.Stdout, "  %-15s %s\n", name, testcases.Describe(name, cfg))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "fixtest.yaml", "Path to the YAML configuration file")
	return cmd
}
