// Package service converges supervised long-running processes. Two
// supervisors are supported, selected by the "supervisor" attribute:
// systemd units and docker containers.
package service

import (
	"context"
	"fmt"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// Attributes common to both supervisors:
//
//	supervisor - "systemd" (default) or "docker"
//
// systemd:
//
//	unit   - unit name, defaults to <name>.service
//	enable - also enable the unit at boot
//
// docker:
//
//	image       - container image (required)
//	command     - command override
//	run_as      - user inside the container
//	environment - environment variables
//	ports       - host:container port pairs, e.g. ["8000:8000"]
type Provider struct {
	systemd *systemdBackend
	docker  *dockerBackend
}

func New(runner execx.Runner) *Provider {
	return &Provider{
		systemd: &systemdBackend{runner: runner},
		docker:  &dockerBackend{},
	}
}

type backend interface {
	Check(ctx context.Context, res *ir.Resource) (provider.State, error)
	Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error)
	Refresh(ctx context.Context, res *ir.Resource) error
}

func (p *Provider) backend(res *ir.Resource) (backend, error) {
	switch s := res.StringAttrDefault("supervisor", "systemd"); s {
	case "systemd":
		return p.systemd, nil
	case "docker":
		return p.docker, nil
	default:
		return nil, fmt.Errorf("service %s: unknown supervisor %q", res.Name, s)
	}
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	b, err := p.backend(res)
	if err != nil {
		return provider.State{}, err
	}
	return b.Check(ctx, res)
}

func (p *Provider) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	b, err := p.backend(res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	return b.Apply(ctx, res)
}

func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	b, err := p.backend(res)
	if err != nil {
		return err
	}
	return b.Refresh(ctx, res)
}
