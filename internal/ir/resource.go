package ir

import (
	"fmt"
	"strings"
)

// Kind is a capability category. The set is closed: every declared resource
// maps to exactly one provider implementation.
type Kind string

const (
	KindPackage              Kind = "package"
	KindFile                 Kind = "file"
	KindUser                 Kind = "user"
	KindVcsCheckout          Kind = "vcs_checkout"
	KindExec                 Kind = "exec"
	KindService              Kind = "service"
	KindDbDatabase           Kind = "db_database"
	KindReverseProxyUpstream Kind = "proxy_upstream"
)

var allKinds = map[Kind]bool{
	KindPackage:              true,
	KindFile:                 true,
	KindUser:                 true,
	KindVcsCheckout:          true,
	KindExec:                 true,
	KindService:              true,
	KindDbDatabase:           true,
	KindReverseProxyUpstream: true,
}

// ValidKind reports whether k names a known resource kind.
func ValidKind(k Kind) bool {
	return allKinds[k]
}

// Ref identifies a declared resource: kind plus title, unique per declaration.
// References between resources are resolved against declared refs at build
// time, never by runtime string matching.
type Ref struct {
	Kind Kind   `toml:"kind" yaml:"kind" pkl:"kind"`
	Name string `toml:"name" yaml:"name" pkl:"name"`
}

func (r Ref) String() string {
	return string(r.Kind) + "." + r.Name
}

// ParseRef parses the wire form "kind.name", e.g. "user.alice".
func ParseRef(s string) (Ref, error) {
	kind, name, ok := strings.Cut(s, ".")
	if !ok || kind == "" || name == "" {
		return Ref{}, fmt.Errorf("malformed resource reference %q (want kind.name)", s)
	}
	k := Kind(kind)
	if !ValidKind(k) {
		return Ref{}, fmt.Errorf("unknown resource kind %q in reference %q", kind, s)
	}
	return Ref{Kind: k, Name: name}, nil
}

// Resource is a single unit of desired state. Attributes are kind-specific;
// the owning provider interprets them.
type Resource struct {
	Kind       Kind           `toml:"kind" yaml:"kind" pkl:"kind"`
	Name       string         `toml:"name" yaml:"name" pkl:"name"`
	Attributes map[string]any `toml:"attributes" yaml:"attributes" pkl:"attributes"`
	Require    []Ref          `toml:"-" yaml:"-" pkl:"-"`
	Notify     []Ref          `toml:"-" yaml:"-" pkl:"-"`
}

// Ref returns the resource's identifier.
func (r *Resource) Ref() Ref {
	return Ref{Kind: r.Kind, Name: r.Name}
}

// String attribute accessors. Missing keys return the zero value; providers
// validate required attributes themselves.

func (r *Resource) StringAttr(key string) string {
	if v, ok := r.Attributes[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func (r *Resource) StringAttrDefault(key, def string) string {
	if _, ok := r.Attributes[key]; !ok {
		return def
	}
	return r.StringAttr(key)
}

func (r *Resource) BoolAttr(key string) bool {
	v, ok := r.Attributes[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// MapAttr returns a nested string map attribute (e.g. service environment).
func (r *Resource) MapAttr(key string) map[string]string {
	v, ok := r.Attributes[key]
	if !ok {
		return nil
	}
	out := make(map[string]string)
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		for k, val := range m {
			out[k] = fmt.Sprintf("%v", val)
		}
	case map[any]any:
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// Declaration is the authored resource set, in declaration order, plus
// engine-level settings that providers may consult.
type Declaration struct {
	Resources []*Resource
	Settings  Settings
}

// Settings carries host-level connection details that are not themselves
// resources.
type Settings struct {
	// PostgresDSN is the admin connection string used by the db_database
	// provider, e.g. "postgres://postgres@localhost/postgres?sslmode=disable".
	PostgresDSN string `toml:"postgres_dsn" yaml:"postgres_dsn" pkl:"postgresDsn"`
	// NginxConfDir is where proxy_upstream resources render their blocks.
	NginxConfDir string `toml:"nginx_conf_dir" yaml:"nginx_conf_dir" pkl:"nginxConfDir"`
}
