// Package execres converges exec resources: one-shot commands guarded into
// idempotence by creates/unless conditions.
package execres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// Attributes:
//
//	command     - shell command to run (required)
//	creates     - path; the command is skipped when it exists
//	unless      - shell command; the command is skipped when it exits 0
//	cwd         - working directory
//	environment - extra environment variables
//
// A resource with neither guard runs on every convergence and always
// reports Changed.
type Provider struct {
	runner execx.Runner
}

func New(runner execx.Runner) *Provider {
	return &Provider{runner: runner}
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	if creates := res.StringAttr("creates"); creates != "" {
		if _, err := os.Stat(creates); err == nil {
			return provider.State{Exists: true, InSync: true}, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return provider.State{}, err
		}
		return provider.State{Detail: fmt.Sprintf("%s does not exist", creates)}, nil
	}

	if unless := res.StringAttr("unless"); unless != "" {
		out, err := p.run(ctx, res, unless)
		if err != nil {
			return provider.State{}, err
		}
		if !out.Failed() {
			return provider.State{Exists: true, InSync: true}, nil
		}
		return provider.State{Detail: "unless guard reported divergence"}, nil
	}

	return provider.State{Detail: "unguarded command"}, nil
}

func (p *Provider) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	st, err := p.Check(ctx, res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if st.InSync {
		return ir.OutcomeUnchanged, nil
	}
	if err := p.execute(ctx, res); err != nil {
		return ir.OutcomeFailed, err
	}
	return ir.OutcomeChanged, nil
}

// Refresh re-runs the command regardless of guards; this is how notified
// exec resources (cache rebuilds, migrations) behave.
func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return p.execute(ctx, res)
}

func (p *Provider) execute(ctx context.Context, res *ir.Resource) error {
	command := res.StringAttr("command")
	if command == "" {
		return fmt.Errorf("exec %s: command is required", res.Name)
	}
	out, err := p.run(ctx, res, command)
	if err != nil {
		return err
	}
	if out.Failed() {
		return out.Err([]string{"sh", "-c", command})
	}
	return nil
}

func (p *Provider) run(ctx context.Context, res *ir.Resource, command string) (execx.Result, error) {
	var env []string
	for k, v := range res.MapAttr("environment") {
		env = append(env, k+"="+v)
	}
	return p.runner.Run(ctx, execx.Cmd{
		Argv: []string{"sh", "-c", command},
		Dir:  res.StringAttr("cwd"),
		Env:  env,
	})
}
