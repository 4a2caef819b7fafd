package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ruleminer/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration to ~/.config/ruleminer/config.yaml, or to
--path. An existing file is left alone unless --force is given.

Examples:
  ruleminer init
  ruleminer init --path ./ruleminer.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			err := config.WriteDefault(path, force)
			if errors.Is(err, config.ErrConfigExists) {
				cmd.Printf("Config already exists at %s\n", path)
				cmd.Println("Use --force to overwrite.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			cmd.Printf("Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "config file to write (default ~/.config/ruleminer/config.yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
