// Package nginx converges proxy_upstream resources: an upstream block
// rendered into conf.d, validated, and loaded into the running server.
package nginx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
	"github.com/converge-sh/converge/internal/tmpl"
	"github.com/converge-sh/converge/providers/file"
)

const upstreamTemplate = `upstream {{.name}} {
{{- range .servers}}
    server {{.}};
{{- end}}
}
`

const defaultConfDir = "/etc/nginx/conf.d"

// Attributes:
//
//	server  - single upstream target, e.g. "127.0.0.1:8000"
//	servers - list of upstream targets (overrides server)
type Provider struct {
	runner  execx.Runner
	confDir string
}

func New(runner execx.Runner, confDir string) *Provider {
	if confDir == "" {
		confDir = defaultConfDir
	}
	return &Provider{runner: runner, confDir: confDir}
}

func (p *Provider) confPath(res *ir.Resource) string {
	return filepath.Join(p.confDir, "upstream-"+res.Name+".conf")
}

func (p *Provider) render(res *ir.Resource) (string, error) {
	servers := serverList(res)
	if len(servers) == 0 {
		return "", fmt.Errorf("proxy_upstream %s: server or servers is required", res.Name)
	}
	return tmpl.Render("upstream", upstreamTemplate, map[string]any{
		"name":    res.Name,
		"servers": servers,
	})
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	want, err := p.render(res)
	if err != nil {
		return provider.State{}, err
	}
	path := p.confPath(res)
	current, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return provider.State{Detail: fmt.Sprintf("%s does not exist", path)}, nil
	}
	if err != nil {
		return provider.State{}, err
	}
	if string(current) != want {
		return provider.State{Exists: true, Detail: fmt.Sprintf("%s content differs", path)}, nil
	}
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

	content, err := p.render(res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if err := file.WriteAtomic(p.confPath(res), []byte(content), 0o644); err != nil {
		return ir.OutcomeFailed, err
	}
	if err := p.reload(ctx); err != nil {
		return ir.OutcomeFailed, err
	}
	return ir.OutcomeChanged, nil
}

// Refresh reloads the server so a changed upstream definition is picked up.
func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return p.reload(ctx)
}

func (p *Provider) reload(ctx context.Context) error {
	check := []string{"nginx", "-t"}
	out, err := p.runner.Run(ctx, execx.Cmd{Argv: check})
	if err != nil {
		return err
	}
	if out.Failed() {
		return out.Err(check)
	}

	reload := []string{"nginx", "-s", "reload"}
	out, err = p.runner.Run(ctx, execx.Cmd{Argv: reload})
	if err != nil {
		return err
	}
	if out.Failed() {
		return out.Err(reload)
	}
	return nil
}

func serverList(res *ir.Resource) []string {
	if v, ok := res.Attributes["servers"]; ok {
		switch list := v.(type) {
		case []string:
			return list
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				out = append(out, fmt.Sprintf("%v", item))
			}
			return out
		}
	}
	if s := res.StringAttr("server"); s != "" {
		return []string{s}
	}
	return nil
}
