package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/azagal258/objektdl/internal/config"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the objektdl configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(stdout))
	return cmd
}

func newConfigInitCmd(stdout io.Writer) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Long: `Write the built-in defaults as TOML.

The file goes to ./` + config.DefaultFileName + ` unless a path is given. An existing
file is only replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
