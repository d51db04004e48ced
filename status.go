package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/azagal258/objektdl/internal/config"
	"github.com/azagal258/objektdl/internal/hostenv"
	"github.com/azagal258/objektdl/internal/output"
	"github.com/azagal258/objektdl/internal/store"
)

type statusReport struct {
	Version        string `json:"version" yaml:"version"`
	Repo           string `json:"repo" yaml:"repo"`
	InstallDir     string `json:"install_dir" yaml:"install_dir"`
	ConfigFile     string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	StoreFile      string `json:"store_file" yaml:"store_file"`
	UpdateFinished string `json:"update_finished" yaml:"update_finished"`
	StagingDir     string `json:"staging_dir" yaml:"staging_dir"`
	StagingFiles   int    `json:"staging_files" yaml:"staging_files"`
	NoExec         bool   `json:"noexec_mount" yaml:"noexec_mount"`
}

func (s statusReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version:          %s\n", s.Version)
	fmt.Fprintf(&b, "repo:             %s\n", s.Repo)
	fmt.Fprintf(&b, "install dir:      %s\n", s.InstallDir)
	if s.ConfigFile != "" {
		fmt.Fprintf(&b, "config file:      %s\n", s.ConfigFile)
	}
	fmt.Fprintf(&b, "store file:       %s\n", s.StoreFile)
	fmt.Fprintf(&b, "update finished:  %s\n", s.UpdateFinished)
	fmt.Fprintf(&b, "staging files:    %d (%s)\n", s.StagingFiles, s.StagingDir)
	if s.NoExec {
		b.WriteString("\nWarning: the install dir is on a noexec mount.\n")
	}
	if s.UpdateFinished == "false" {
		b.WriteString("\nThe last update did not complete. Run with --update to retry.\n")
	}
	return b.String()
}

func newStatusCmd(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the installed version and the state of the last update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := output.ParseFormat(format)
			if err != nil {
				return fmt.Errorf("%w: %v", config.ErrInvalid, err)
			}
			e, err := setup(cmd, flags, stderr)
			if err != nil {
				return err
			}

			report := statusReport{
				Version:        version,
				Repo:           e.cfg.Repo,
				InstallDir:     e.install.Root,
				ConfigFile:     e.configPath,
				StoreFile:      e.store.Path(),
				UpdateFinished: "unknown",
				StagingDir:     e.install.Join(e.cfg.StagingDir),
				NoExec:         hostenv.NoExec(e.install.Root),
			}
			finished, ok, err := e.store.Get(store.KeyUpdateFinished)
			if err != nil {
				return fmt.Errorf("read update flag: %w", err)
			}
			if ok {
				report.UpdateFinished = finished
			}
			if report.StagingFiles, err = countFiles(report.StagingDir); err != nil {
				return fmt.Errorf("inspect staging area: %w", err)
			}

			return output.NewWriter(stdout, outFormat).Write(report)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text, json, yaml")
	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// countFiles returns the number of regular files under dir. A missing dir
// counts as empty.
func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return n, err
}
