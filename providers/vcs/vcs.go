// Package vcs converges git checkout resources: a repository cloned at a
// path and pinned to a revision.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// Attributes:
//
//	repo     - clone URL (required)
//	revision - branch, tag or commit, defaults to "main"
//	path     - checkout directory, defaults to the resource name
//	identity - SSH private key used for the remote
type Provider struct {
	runner execx.Runner
}

func New(runner execx.Runner) *Provider {
	return &Provider{runner: runner}
}

func checkoutPath(res *ir.Resource) string {
	return res.StringAttrDefault("path", res.Name)
}

func revision(res *ir.Resource) string {
	return res.StringAttrDefault("revision", "main")
}

func sshEnv(res *ir.Resource) []string {
	identity := res.StringAttr("identity")
	if identity == "" {
		return nil
	}
	return []string{fmt.Sprintf("GIT_SSH_COMMAND=ssh -i %s -o IdentitiesOnly=yes", identity)}
}

func (p *Provider) git(ctx context.Context, res *ir.Resource, args ...string) (execx.Result, error) {
	argv := append([]string{"git"}, args...)
	out, err := p.runner.Run(ctx, execx.Cmd{Argv: argv, Env: sshEnv(res)})
	if err != nil {
		return out, err
	}
	if out.Failed() {
		return out, out.Err(argv)
	}
	return out, nil
}

// Check probes the working copy without touching the remote. A checkout
// whose HEAD does not match the locally known revision is out of sync;
// whether the remote moved is only discovered by Apply's fetch.
func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	path := checkoutPath(res)
	if _, err := os.Stat(filepath.Join(path, ".git")); errors.Is(err, fs.ErrNotExist) {
		return provider.State{Detail: fmt.Sprintf("no checkout at %s", path)}, nil
	} else if err != nil {
		return provider.State{}, err
	}

	head, err := p.git(ctx, res, "-C", path, "rev-parse", "HEAD")
	if err != nil {
		return provider.State{}, err
	}
	want, err := p.git(ctx, res, "-C", path, "rev-parse", "--verify", revision(res)+"^{commit}")
	if err != nil {
		// Unknown ref locally: a fetch is needed.
		return provider.State{Exists: true, Detail: fmt.Sprintf("revision %s not known locally", revision(res))}, nil
	}
	if strings.TrimSpace(head.Stdout) == strings.TrimSpace(want.Stdout) {
		return provider.State{Exists: true, InSync: true}, nil
	}
	return provider.State{Exists: true, Detail: fmt.Sprintf("HEAD is not at %s", revision(res))}, nil
}

func (p *Provider) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	repo := res.StringAttr("repo")
	if repo == "" {
		return ir.OutcomeFailed, fmt.Errorf("vcs_checkout %s: repo is required", res.Name)
	}
	path := checkoutPath(res)
	rev := revision(res)

	if _, err := os.Stat(filepath.Join(path, ".git")); errors.Is(err, fs.ErrNotExist) {
		if _, err := p.git(ctx, res, "clone", repo, path); err != nil {
			return ir.OutcomeFailed, err
		}
		if _, err := p.git(ctx, res, "-C", path, "checkout", "--quiet", rev); err != nil {
			return ir.OutcomeFailed, err
		}
		return ir.OutcomeChanged, nil
	} else if err != nil {
		return ir.OutcomeFailed, err
	}

	if _, err := p.git(ctx, res, "-C", path, "fetch", "--quiet", "origin"); err != nil {
		return ir.OutcomeFailed, err
	}

	head, err := p.git(ctx, res, "-C", path, "rev-parse", "HEAD")
	if err != nil {
		return ir.OutcomeFailed, err
	}
	target := rev
	// Prefer the freshly fetched remote ref when the revision is a branch.
	if remote, err := p.git(ctx, res, "-C", path, "rev-parse", "--verify", "--quiet", "origin/"+rev); err == nil {
		target = strings.TrimSpace(remote.Stdout)
	}
	want, err := p.git(ctx, res, "-C", path, "rev-parse", "--verify", target+"^{commit}")
	if err != nil {
		return ir.OutcomeFailed, fmt.Errorf("vcs_checkout %s: unknown revision %q", res.Name, rev)
	}

	if strings.TrimSpace(head.Stdout) == strings.TrimSpace(want.Stdout) {
		return ir.OutcomeUnchanged, nil
	}
	if _, err := p.git(ctx, res, "-C", path, "checkout", "--quiet", strings.TrimSpace(want.Stdout)); err != nil {
		return ir.OutcomeFailed, err
	}
	return ir.OutcomeChanged, nil
}

func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return nil
}
