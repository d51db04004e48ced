package pipeline

import (
	"errors"
	"fmt"

	"github.com/azagal258/objektdl/internal/cli"
	"github.com/azagal258/objektdl/internal/config"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindNetwork           Kind = "network"
	KindParse             Kind = "parse"
	KindNotFound          Kind = "not-found"
	KindIntegrity         Kind = "integrity"
	KindSecurity          Kind = "security"
	KindIncompleteInstall Kind = "incomplete-install"
	KindIO                Kind = "io"
)

// Stage names the step that failed.
type Stage string

const (
	StageConfig   Stage = "config"
	StageMetadata Stage = "metadata"
	StageSelect   Stage = "select"
	StageDownload Stage = "download"
	StageVerify   Stage = "verify"
	StageExtract  Stage = "extract"
	StageInstall  Stage = "install"
	StageFlag     Stage = "flag"
)

// Error is returned by Run for every stage failure.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s error): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// ExitCode maps an error returned by the CLI to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return cli.ExitOK
	}
	if kind, ok := KindOf(err); ok && kind == KindConfiguration {
		return cli.ExitConfig
	}
	if errors.Is(err, config.ErrInvalid) {
		return cli.ExitConfig
	}
	return cli.ExitFailure
}
