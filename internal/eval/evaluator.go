// Package eval loads declaration files into the resource model. Three wire
// formats are supported, dispatched by file extension: PKL, TOML and YAML.
// All of them decode into the same neutral shape and run through the same
// validation, so forward references and attribute semantics are identical
// across formats.
package eval

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/converge-sh/converge/internal/ir"
)

// fileDeclaration is the neutral wire shape shared by every format.
type fileDeclaration struct {
	Settings  ir.Settings    `toml:"settings" yaml:"settings" pkl:"settings"`
	Resources []fileResource `toml:"resources" yaml:"resources" pkl:"resources"`
}

type fileResource struct {
	Kind       string         `toml:"kind" yaml:"kind" pkl:"kind"`
	Name       string         `toml:"name" yaml:"name" pkl:"name"`
	Require    []string       `toml:"require" yaml:"require" pkl:"require"`
	Notify     []string       `toml:"notify" yaml:"notify" pkl:"notify"`
	Attributes map[string]any `toml:"attributes" yaml:"attributes" pkl:"attributes"`
}

// Load reads and validates a declaration file. Declaration order is
// preserved: it is the scheduler's tie-break.
func Load(ctx context.Context, path string) (*ir.Declaration, error) {
	var (
		fd  *fileDeclaration
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl":
		fd, err = loadPKL(ctx, path)
	case ".toml":
		fd, err = loadTOML(path)
	case ".yaml", ".yml":
		fd, err = loadYAML(path)
	default:
		return nil, fmt.Errorf("unsupported declaration format %q (want .pkl, .toml or .yaml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return convert(fd)
}

// convert turns the wire shape into the typed declaration, resolving string
// references into typed refs. All reference validation beyond syntax (does
// the target exist, is the graph acyclic) belongs to the graph builder.
func convert(fd *fileDeclaration) (*ir.Declaration, error) {
	decl := &ir.Declaration{Settings: fd.Settings}
	for i, fr := range fd.Resources {
		if fr.Name == "" {
			return nil, fmt.Errorf("resource %d: missing name", i)
		}
		kind := ir.Kind(fr.Kind)
		if !ir.ValidKind(kind) {
			return nil, fmt.Errorf("resource %s: unknown kind %q", fr.Name, fr.Kind)
		}
		res := &ir.Resource{
			Kind:       kind,
			Name:       fr.Name,
			Attributes: fr.Attributes,
		}
		for _, s := range fr.Require {
			ref, err := ir.ParseRef(s)
			if err != nil {
				return nil, fmt.Errorf("resource %s: require: %w", res.Ref(), err)
			}
			res.Require = append(res.Require, ref)
		}
		for _, s := range fr.Notify {
			ref, err := ir.ParseRef(s)
			if err != nil {
				return nil, fmt.Errorf("resource %s: notify: %w", res.Ref(), err)
			}
			res.Notify = append(res.Notify, ref)
		}
		decl.Resources = append(decl.Resources, res)
	}
	return decl, nil
}
