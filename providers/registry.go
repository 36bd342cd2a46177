// Package providers wires the built-in capability implementations to
// resource kinds. Providers are in-process: the kind set is closed, so
// there is no plugin loading.
package providers

import (
	"fmt"
	"sync"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
	"github.com/converge-sh/converge/providers/execres"
	"github.com/converge-sh/converge/providers/file"
	"github.com/converge-sh/converge/providers/nginx"
	"github.com/converge-sh/converge/providers/pkgmgr"
	"github.com/converge-sh/converge/providers/postgres"
	"github.com/converge-sh/converge/providers/service"
	"github.com/converge-sh/converge/providers/user"
	"github.com/converge-sh/converge/providers/vcs"
)

// Options configures provider construction. The zero value uses the real
// system runner and empty settings.
type Options struct {
	Runner   execx.Runner
	Settings ir.Settings
}

// Registry manages the lifecycle of providers, one per kind, constructed on
// first use.
type Registry struct {
	mu        sync.Mutex
	opts      Options
	providers map[ir.Kind]provider.Provider
}

func NewRegistry(opts Options) *Registry {
	if opts.Runner == nil {
		opts.Runner = execx.NewSystem()
	}
	return &Registry{
		opts:      opts,
		providers: make(map[ir.Kind]provider.Provider),
	}
}

// Get returns the provider for a kind, constructing it on first use.
func (r *Registry) Get(kind ir.Kind) (provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[kind]; ok {
		return p, nil
	}

	var p provider.Provider
	switch kind {
	case ir.KindPackage:
		p = pkgmgr.New(r.opts.Runner)
	case ir.KindFile:
		p = file.New()
	case ir.KindUser:
		p = user.New(r.opts.Runner)
	case ir.KindVcsCheckout:
		p = vcs.New(r.opts.Runner)
	case ir.KindExec:
		p = execres.New(r.opts.Runner)
	case ir.KindService:
		p = service.New(r.opts.Runner)
	case ir.KindDbDatabase:
		p = postgres.New(r.opts.Settings.PostgresDSN)
	case ir.KindReverseProxyUpstream:
		p = nginx.New(r.opts.Runner, r.opts.Settings.NginxConfDir)
	default:
		return nil, fmt.Errorf("no provider for resource kind %q", kind)
	}

	r.providers[kind] = p
	return p, nil
}
