// Package user converges system user resources via getent/useradd.
package user

import (
	"context"
	"fmt"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// Attributes:
//
//	home   - home directory, defaults to /home/<name>
//	shell  - login shell, defaults to /bin/bash
//	system - create as a system account
type Provider struct {
	runner execx.Runner
}

func New(runner execx.Runner) *Provider {
	return &Provider{runner: runner}
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	out, err := p.runner.Run(ctx, execx.Cmd{
		Argv: []string{"getent", "passwd", res.Name},
	})
	if err != nil {
		return provider.State{}, err
	}
	if out.Failed() {
		return provider.State{Detail: fmt.Sprintf("user %s does not exist", res.Name)}, nil
	}
	// An existing account is treated as converged; home/shell drift on a
	// pre-existing user is not reconciled.
	return provider.State{Exists: true, InSync: true}, nil
}

func (p *Provider) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	st, err := p.Check(ctx, res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if st.InSync {
		return ir.OutcomeUnchanged, nil
	}

	argv := []string{"useradd", "--create-home"}
	if home := res.StringAttr("home"); home != "" {
		argv = append(argv, "--home-dir", home)
	}
	argv = append(argv, "--shell", res.StringAttrDefault("shell", "/bin/bash"))
	if res.BoolAttr("system") {
		argv = append(argv, "--system")
	}
	argv = append(argv, res.Name)

	out, err := p.runner.Run(ctx, execx.Cmd{Argv: argv})
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if out.Failed() {
		return ir.OutcomeFailed, out.Err(argv)
	}
	return ir.OutcomeChanged, nil
}

func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return nil
}
