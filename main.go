package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azagal258/objektdl/internal/cli"
	"github.com/azagal258/objektdl/internal/config"
	"github.com/azagal258/objektdl/internal/host/github"
	"github.com/azagal258/objektdl/internal/hostenv"
	"github.com/azagal258/objektdl/internal/install"
	"github.com/azagal258/objektdl/internal/logutil"
	"github.com/azagal258/objektdl/internal/pipeline"
	"github.com/azagal258/objektdl/internal/selfupdate"
	"github.com/azagal258/objektdl/internal/store"
)

// version is compared against the latest release tag. Release builds set it
// with -ldflags "-X main.version=<tag>".
var version = "v.0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	installDir string
	repo       string
	apiBase    string
	logLevel   string
	logFormat  string
	verbose    bool
}

// env is what every command needs after flags are parsed.
type env struct {
	cfg        *config.Config
	configPath string
	log        *logrus.Logger
	install    selfupdate.Install
	store      *store.File
}

// reportedError marks an error that was already logged with its stage.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return cli.ExitOK
	}
	var reported reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return pipeline.ExitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		flags      globalFlags
		updateFlag bool
		forceFlag  bool
	)

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Download objekt media and keep objektdl itself up to date",
		Long: `objektdl checks its GitHub repository for a newer release.

With --update it downloads the release package, verifies its digest, unpacks it
into a staging area and installs it over the current files. --force-update skips
the version comparison and takes any package*.zip asset.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if updateFlag && forceFlag {
				return &pipeline.Error{
					Kind:  pipeline.KindConfiguration,
					Stage: pipeline.StageConfig,
					Err:   errors.New("--update and --force-update are mutually exclusive"),
				}
			}
			e, err := setup(cmd, &flags, stderr)
			if err != nil {
				return err
			}
			return runUpdate(cmd.Context(), e, updateFlag, forceFlag, stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(config.AppName + " {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "path to config file (default: ./"+config.DefaultFileName+" when present)")
	pf.StringVar(&flags.installDir, "install-dir", "", "install root (default: directory of the running executable)")
	pf.StringVar(&flags.repo, "repo", "", "GitHub repository to update from (owner/name)")
	pf.StringVar(&flags.apiBase, "api-base", "", "GitHub API base URL")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text, json")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging (same as --log-level debug)")

	f := root.Flags()
	f.BoolVar(&updateFlag, "update", false, "install the latest release when it differs from this version")
	f.BoolVar(&forceFlag, "force-update", false, "install the first package*.zip of the latest release without comparing versions")

	root.AddCommand(newStatusCmd(&flags, stdout, stderr))
	root.AddCommand(newConfigCmd(stdout))
	return root
}

// setup loads configuration, builds the logger and locates the install.
func setup(cmd *cobra.Command, flags *globalFlags, stderr io.Writer) (*env, error) {
	cfg, path, err := config.Load(config.LoadOptions{ConfigFile: flags.configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	log, err := logutil.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if path != "" {
		log.WithField("file", path).Debug("config loaded")
	}

	inst, err := selfupdate.ResolveInstall(cfg.InstallDir)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:        cfg,
		configPath: path,
		log:        log,
		install:    inst,
		store:      store.Open(inst.Join(cfg.StoreFile), log),
	}, nil
}

// token prefers the environment and falls back to the store.
func (e *env) token() string {
	if tok := github.TokenFromEnv(); tok != "" {
		return tok
	}
	tok, ok, err := e.store.Get(e.cfg.TokenKey)
	if err != nil {
		e.log.WithError(err).Warn("could not read token from store")
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(tok)
}

func runUpdate(ctx context.Context, e *env, updateRequested, forceRequested bool, stdout io.Writer) error {
	log := e.log
	if finished, ok, err := e.store.Get(store.KeyUpdateFinished); err == nil && ok && finished == "false" {
		log.Warnf("the previous update did not finish; leftover files may remain in %s", e.install.Join(e.cfg.StagingDir))
	}
	if (updateRequested || forceRequested) && hostenv.NoExec(e.install.Root) {
		log.Warnf("%s is on a noexec mount; the updated executable may not start", e.install.Root)
	}

	client := github.NewClient(e.cfg.APIBase, e.cfg.Repo, e.token(), github.UserAgent(version))
	client.MetadataTimeout = e.cfg.MetadataTimeout
	client.DownloadTimeout = e.cfg.DownloadTimeout

	p, err := pipeline.New(pipeline.Options{
		LocalVersion:      version,
		UpdateRequested:   updateRequested,
		ForceRequested:    forceRequested,
		InstallRoot:       e.install.Root,
		StagingDir:        e.cfg.StagingDir,
		MinisignPublicKey: e.cfg.MinisignPublicKey,
		RequireImmutable:  e.cfg.RequireImmutable,
	}, pipeline.Deps{
		Releases:   client,
		Downloader: client,
		Store:      e.store,
		Installer:  install.New(e.install.Root, e.install.Executable),
		Logger:     log,
		Out:        stdout,
	})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"repo": e.cfg.Repo, "install_dir": e.install.Root}).Debug("checking for updates")
	if _, err := p.Run(ctx); err != nil {
		entry := log.WithError(err)
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			entry = log.WithFields(logrus.Fields{"stage": pe.Stage, "kind": pe.Kind}).WithError(pe.Err)
		}
		entry.Error("update failed")
		return reportedError{err: err}
	}
	return nil
}
