// Package pkgmgr converges package resources against dpkg/apt.
package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// Attributes:
//
//	package - package name, defaults to the resource name
type Provider struct {
	runner execx.Runner
}

func New(runner execx.Runner) *Provider {
	return &Provider{runner: runner}
}

func pkgName(res *ir.Resource) string {
	return res.StringAttrDefault("package", res.Name)
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	name := pkgName(res)
	out, err := p.runner.Run(ctx, execx.Cmd{
		Argv: []string{"dpkg-query", "-W", "-f=${Status}", name},
	})
	if err != nil {
		return provider.State{}, err
	}
	if out.Failed() {
		// dpkg-query exits non-zero for unknown packages.
		return provider.State{Detail: fmt.Sprintf("package %s not installed", name)}, nil
	}
	if strings.Contains(out.Stdout, "install ok installed") {
		return provider.State{Exists: true, InSync: true}, nil
	}
	return provider.State{Exists: true, Detail: strings.TrimSpace(out.Stdout)}, nil
}

func (p *Provider) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	st, err := p.Check(ctx, res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if st.InSync {
		return ir.OutcomeUnchanged, nil
	}

	name := pkgName(res)
	argv := []string{"apt-get", "install", "-y", "--no-install-recommends", name}
	out, err := p.runner.Run(ctx, execx.Cmd{
		Argv: argv,
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	})
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if out.Failed() {
		return ir.OutcomeFailed, out.Err(argv)
	}
	return ir.OutcomeChanged, nil
}

// Refresh is a no-op: reinstalling a package on notification is never what
// the declaration means.
func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return nil
}
