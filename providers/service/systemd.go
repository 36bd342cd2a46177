package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

type systemdBackend struct {
	runner execx.Runner
}

func unitName(res *ir.Resource) string {
	unit := res.StringAttrDefault("unit", res.Name)
	if !strings.Contains(unit, ".") {
		unit += ".service"
	}
	return unit
}

func (b *systemdBackend) systemctl(ctx context.Context, args ...string) (execx.Result, error) {
	argv := append([]string{"systemctl"}, args...)
	return b.runner.Run(ctx, execx.Cmd{Argv: argv})
}

func (b *systemdBackend) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	unit := unitName(res)
	out, err := b.systemctl(ctx, "is-active", "--quiet", unit)
	if err != nil {
		return provider.State{}, err
	}
	if out.Failed() {
		return provider.State{Detail: fmt.Sprintf("unit %s is not active", unit)}, nil
	}
	if res.BoolAttr("enable") {
		out, err := b.systemctl(ctx, "is-enabled", "--quiet", unit)
		if err != nil {
			return provider.State{}, err
		}
		if out.Failed() {
			return provider.State{Exists: true, Detail: fmt.Sprintf("unit %s is not enabled", unit)}, nil
		}
	}
	return provider.State{Exists: true, InSync: true}, nil
}

func (b *systemdBackend) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	st, err := b.Check(ctx, res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if st.InSync {
		return ir.OutcomeUnchanged, nil
	}

	unit := unitName(res)
	// daemon-reload first: the unit file commonly arrives in the same run.
	if out, err := b.systemctl(ctx, "daemon-reload"); err != nil {
		return ir.OutcomeFailed, err
	} else if out.Failed() {
		return ir.OutcomeFailed, out.Err([]string{"systemctl", "daemon-reload"})
	}

	if res.BoolAttr("enable") {
		if out, err := b.systemctl(ctx, "enable", unit); err != nil {
			return ir.OutcomeFailed, err
		} else if out.Failed() {
			return ir.OutcomeFailed, out.Err([]string{"systemctl", "enable", unit})
		}
	}

	if out, err := b.systemctl(ctx, "start", unit); err != nil {
		return ir.OutcomeFailed, err
	} else if out.Failed() {
		return ir.OutcomeFailed, out.Err([]string{"systemctl", "start", unit})
	}
	return ir.OutcomeChanged, nil
}

func (b *systemdBackend) Refresh(ctx context.Context, res *ir.Resource) error {
	unit := unitName(res)
	out, err := b.systemctl(ctx, "restart", unit)
	if err != nil {
		return err
	}
	if out.Failed() {
		return out.Err([]string{"systemctl", "restart", unit})
	}
	return nil
}
