// Package pipeline runs one self-update attempt: fetch release metadata,
// decide, select, download, verify, extract and install.
//
// Stages run strictly in order and the first failure aborts the rest. Only
// the installer keeps going past a per-file error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/azagal258/objektdl/internal/archive"
	"github.com/azagal258/objektdl/internal/host/github"
	"github.com/azagal258/objektdl/internal/install"
	"github.com/azagal258/objektdl/internal/logutil"
	"github.com/azagal258/objektdl/internal/model"
	"github.com/azagal258/objektdl/internal/store"
	"github.com/azagal258/objektdl/internal/verify"
	"github.com/azagal258/objektdl/pkg/update"
)

type ReleaseSource interface {
	FetchLatestRelease(ctx context.Context) (*model.Release, error)
}

type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

type FlagStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

type Committer interface {
	Commit(staging string) (install.Outcome, error)
}

// Options are fixed for the lifetime of a Pipeline.
type Options struct {
	LocalVersion    string
	UpdateRequested bool
	ForceRequested  bool
	// InstallRoot receives the downloaded package and the installed files.
	InstallRoot string
	// StagingDir is where the package is extracted. Relative paths are
	// resolved against InstallRoot.
	StagingDir        string
	MinisignPublicKey string
	RequireImmutable  bool
}

type Deps struct {
	Releases   ReleaseSource
	Downloader Downloader
	Store      FlagStore
	Installer  Committer
	Logger     logrus.FieldLogger
	// Out receives the user-facing status lines.
	Out io.Writer
}

// Report summarises a run.
type Report struct {
	Decision      update.Decision  `json:"decision" yaml:"decision"`
	LocalVersion  string           `json:"local_version" yaml:"local_version"`
	RemoteVersion string           `json:"remote_version" yaml:"remote_version"`
	Asset         string           `json:"asset,omitempty" yaml:"asset,omitempty"`
	Downloaded    int64            `json:"downloaded_bytes,omitempty" yaml:"downloaded_bytes,omitempty"`
	Outcome       *install.Outcome `json:"-" yaml:"-"`
}

type Pipeline struct {
	opts      Options
	deps      Deps
	removeAll func(string) error
}

// New validates opts and returns a Pipeline. Asking for both a normal and a
// forced update is a configuration error.
func New(opts Options, deps Deps) (*Pipeline, error) {
	if opts.UpdateRequested && opts.ForceRequested {
		return nil, fail(KindConfiguration, StageConfig, errors.New("--update and --force-update are mutually exclusive"))
	}
	if strings.TrimSpace(opts.InstallRoot) == "" {
		return nil, fail(KindConfiguration, StageConfig, errors.New("install root is not set"))
	}
	if deps.Releases == nil || deps.Downloader == nil || deps.Store == nil || deps.Installer == nil {
		return nil, fail(KindConfiguration, StageConfig, errors.New("pipeline dependencies are incomplete"))
	}
	if deps.Logger == nil {
		deps.Logger = logutil.Discard()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Pipeline{opts: opts, deps: deps, removeAll: os.RemoveAll}, nil
}

func (p *Pipeline) stagingPath() string {
	if filepath.IsAbs(p.opts.StagingDir) {
		return p.opts.StagingDir
	}
	return filepath.Join(p.opts.InstallRoot, p.opts.StagingDir)
}

func (p *Pipeline) say(format string, args ...any) {
	fmt.Fprintf(p.deps.Out, format+"\n", args...)
}

// Run performs one update attempt.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	log := p.deps.Logger
	report := Report{LocalVersion: p.opts.LocalVersion}

	log.WithField("stage", StageMetadata).Debug("fetching latest release")
	rel, err := p.deps.Releases.FetchLatestRelease(ctx)
	if err != nil {
		if errors.Is(err, github.ErrParse) {
			return report, fail(KindParse, StageMetadata, err)
		}
		return report, fail(KindNetwork, StageMetadata, err)
	}
	report.RemoteVersion = rel.TagName

	decision := update.Resolve(rel.TagName, p.opts.LocalVersion, p.opts.UpdateRequested, p.opts.ForceRequested)
	report.Decision = decision
	log.WithFields(logrus.Fields{
		"local":    p.opts.LocalVersion,
		"remote":   rel.TagName,
		"decision": decision,
	}).Info(decision.Describe())
	p.say("%s", update.Message(decision, rel.TagName, p.opts.LocalVersion))
	if decision == update.DecisionVersionUnknown {
		log.Warn("latest release carries no version tag")
	}
	if !decision.Continues() {
		return report, nil
	}

	asset, err := p.selectAsset(rel, decision)
	if err != nil {
		return report, err
	}
	report.Asset = asset.Name

	if err := p.deps.Store.Set(store.KeyUpdateFinished, "false"); err != nil {
		return report, fail(KindIO, StageFlag, err)
	}

	archivePath := filepath.Join(p.opts.InstallRoot, asset.Name)
	n, err := p.download(ctx, asset.BrowserDownloadURL, archivePath)
	if err != nil {
		return report, err
	}
	report.Downloaded = n
	log.WithFields(logrus.Fields{"stage": StageDownload, "asset": asset.Name, "size": verify.FormatSize(n)}).Info("package downloaded")

	if err := p.verify(ctx, rel, asset, archivePath); err != nil {
		return report, err
	}

	staging := p.stagingPath()
	if _, statErr := os.Stat(staging); statErr == nil {
		log.WithField("stage", StageExtract).Warnf("removing leftover staging area %s from an earlier attempt", staging)
		if err := p.removeAll(staging); err != nil {
			return report, fail(KindIO, StageExtract, fmt.Errorf("remove stale staging: %w", err))
		}
	}
	if err := archive.Extract(archivePath, staging); err != nil {
		if archive.IsSecurityViolation(err) {
			if rmErr := p.removeAll(staging); rmErr != nil {
				log.WithField("stage", StageExtract).WithError(rmErr).Warnf("could not remove staging area %s", staging)
			}
			return report, fail(KindSecurity, StageExtract, err)
		}
		return report, fail(KindIO, StageExtract, err)
	}
	log.WithField("stage", StageExtract).Debugf("package extracted to %s", staging)

	outcome, err := p.deps.Installer.Commit(staging)
	if err != nil {
		return report, fail(KindIO, StageInstall, err)
	}
	report.Outcome = &outcome
	for _, file := range outcome.Failed() {
		log.WithFields(logrus.Fields{"stage": StageInstall, "file": file}).WithError(outcome.Results[file]).Error("file not installed")
	}
	if err := outcome.Err(); err != nil {
		return report, fail(KindIncompleteInstall, StageInstall, fmt.Errorf("%w; staging kept at %s", err, staging))
	}

	if err := p.deps.Store.Set(store.KeyUpdateFinished, "true"); err != nil {
		return report, fail(KindIO, StageFlag, err)
	}
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warnf("could not remove downloaded package %s", archivePath)
	}

	log.WithFields(logrus.Fields{"stage": StageInstall, "files": len(outcome.Results)}).Info("update installed")
	p.say("Update installed (%d files). Restart objektdl to use %s.", len(outcome.Results), displayTag(rel.TagName))
	return report, nil
}

// selectAsset picks the package and checks everything that can be checked
// before any file is touched.
func (p *Pipeline) selectAsset(rel *model.Release, decision update.Decision) (model.Asset, error) {
	log := p.deps.Logger.WithField("stage", StageSelect)

	if !rel.Immutable {
		if p.opts.RequireImmutable {
			return model.Asset{}, fail(KindIntegrity, StageSelect, fmt.Errorf("release %s is not immutable", displayTag(rel.TagName)))
		}
		log.Warn("release is not marked immutable; relying on the asset digest only")
	}

	asset, err := update.SelectAsset(*rel, decision.Forced())
	if err != nil {
		want := update.PackageName(rel.TagName)
		if decision.Forced() {
			want = "package*.zip"
		}
		return model.Asset{}, fail(KindNotFound, StageSelect, fmt.Errorf("%w: want %s, have %v", err, want, rel.AssetNames()))
	}

	if _, err := verify.ParseDigest(asset.Digest); err != nil {
		return model.Asset{}, fail(KindConfiguration, StageSelect, fmt.Errorf("asset %s: %w", asset.Name, err))
	}
	if !isPlainName(asset.Name) {
		return model.Asset{}, fail(KindSecurity, StageSelect, fmt.Errorf("asset name %q is not a plain file name", asset.Name))
	}

	log.WithField("asset", asset.Name).Debug("package selected")
	return asset, nil
}

func (p *Pipeline) download(ctx context.Context, url, dest string) (int64, error) {
	n, err := p.deps.Downloader.Download(ctx, url, dest)
	if err != nil {
		if errors.Is(err, github.ErrNetwork) {
			return 0, fail(KindNetwork, StageDownload, err)
		}
		return 0, fail(KindIO, StageDownload, err)
	}
	return n, nil
}

func (p *Pipeline) verify(ctx context.Context, rel *model.Release, asset model.Asset, archivePath string) error {
	log := p.deps.Logger.WithField("stage", StageVerify)

	ok, err := verify.Verify(asset.Digest, archivePath)
	if err != nil {
		if verify.IsFormatError(err) {
			return fail(KindConfiguration, StageVerify, err)
		}
		return fail(KindIO, StageVerify, err)
	}
	if !ok {
		return fail(KindIntegrity, StageVerify, fmt.Errorf("digest mismatch for %s; file kept at %s and not extracted", asset.Name, archivePath))
	}
	log.WithField("digest", asset.Digest).Info("package digest verified")

	if p.opts.MinisignPublicKey == "" {
		return nil
	}
	sigAsset := verify.FindSignatureAsset(rel, asset.Name)
	if sigAsset == nil {
		return fail(KindIntegrity, StageVerify, fmt.Errorf("minisign key configured but release has no %s", asset.Name+verify.SignatureSuffix))
	}
	sigPath := archivePath + verify.SignatureSuffix
	if _, err := p.download(ctx, sigAsset.BrowserDownloadURL, sigPath); err != nil {
		return err
	}
	defer func() { _ = os.Remove(sigPath) }()

	if err := verify.VerifyMinisignFile(archivePath, sigPath, p.opts.MinisignPublicKey); err != nil {
		return fail(KindIntegrity, StageVerify, err)
	}
	log.Info("package signature verified")
	return nil
}

func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, ":") {
		return false
	}
	return filepath.Base(name) == name
}

func displayTag(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return "(untagged)"
	}
	return tag
}
