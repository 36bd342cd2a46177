// Package file converges file resources: content, owner, group and mode.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
	"github.com/converge-sh/converge/internal/tmpl"
)

// Attributes:
//
//	path          - target path, defaults to the resource name
//	content       - literal file content
//	template      - inline template text rendered with vars
//	template_file - path to a template file rendered with vars
//	owner, group  - names resolved at apply time
//	mode          - octal string, e.g. "0644"
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	path := targetPath(res)
	want, err := DesiredContent(res)
	if err != nil {
		return provider.State{}, err
	}

	current, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return provider.State{Detail: fmt.Sprintf("%s does not exist", path)}, nil
	}
	if err != nil {
		return provider.State{}, err
	}

	if contentHash(current) != contentHash([]byte(want)) {
		return provider.State{Exists: true, Detail: fmt.Sprintf("%s content differs", path)}, nil
	}

	if mode, ok, err := desiredMode(res); err != nil {
		return provider.State{}, err
	} else if ok {
		info, err := os.Stat(path)
		if err != nil {
			return provider.State{}, err
		}
		if info.Mode().Perm() != mode {
			return provider.State{Exists: true, Detail: fmt.Sprintf("%s mode is %04o, want %04o", path, info.Mode().Perm(), mode)}, nil
		}
	}

	if insync, detail, err := ownerInSync(path, res); err != nil {
		return provider.State{}, err
	} else if !insync {
		return provider.State{Exists: true, Detail: detail}, nil
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

	path := targetPath(res)
	content, err := DesiredContent(res)
	if err != nil {
		return ir.OutcomeFailed, err
	}

	mode, hasMode, err := desiredMode(res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if !hasMode {
		mode = 0o644
	}

	if err := WriteAtomic(path, []byte(content), mode); err != nil {
		return ir.OutcomeFailed, err
	}

	if err := applyOwner(path, res); err != nil {
		return ir.OutcomeFailed, err
	}
	return ir.OutcomeChanged, nil
}

// Refresh is a no-op; files have no refresh action of their own.
func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return nil
}

func targetPath(res *ir.Resource) string {
	return res.StringAttrDefault("path", res.Name)
}

// DesiredContent resolves the declared file content: a literal, an inline
// template, or a template file, in that precedence order.
func DesiredContent(res *ir.Resource) (string, error) {
	if _, ok := res.Attributes["content"]; ok {
		return res.StringAttr("content"), nil
	}
	vars, _ := res.Attributes["vars"].(map[string]any)
	if text, ok := res.Attributes["template"]; ok {
		return tmpl.Render(res.Ref().String(), fmt.Sprintf("%v", text), vars)
	}
	if tf := res.StringAttr("template_file"); tf != "" {
		text, err := os.ReadFile(tf)
		if err != nil {
			return "", fmt.Errorf("template file: %w", err)
		}
		return tmpl.Render(filepath.Base(tf), string(text), vars)
	}
	return "", fmt.Errorf("file %s: one of content, template or template_file is required", res.Name)
}

// WriteAtomic writes content via a temp file and rename so readers never
// observe a partial file.
func WriteAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".converge-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func desiredMode(res *ir.Resource) (os.FileMode, bool, error) {
	s := res.StringAttr("mode")
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, false, fmt.Errorf("file %s: bad mode %q", res.Name, s)
	}
	return os.FileMode(n), true, nil
}

func desiredIDs(res *ir.Resource) (uid, gid int, set bool, err error) {
	uid, gid = -1, -1
	if owner := res.StringAttr("owner"); owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			return 0, 0, false, fmt.Errorf("file %s: %w", res.Name, err)
		}
		uid, _ = strconv.Atoi(u.Uid)
		set = true
	}
	if group := res.StringAttr("group"); group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return 0, 0, false, fmt.Errorf("file %s: %w", res.Name, err)
		}
		gid, _ = strconv.Atoi(g.Gid)
		set = true
	}
	return uid, gid, set, nil
}

func ownerInSync(path string, res *ir.Resource) (bool, string, error) {
	uid, gid, set, err := desiredIDs(res)
	if err != nil {
		return false, "", err
	}
	if !set {
		return true, "", nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, "", err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true, "", nil
	}
	if uid >= 0 && int(stat.Uid) != uid {
		return false, fmt.Sprintf("%s owner uid is %d, want %d", path, stat.Uid, uid), nil
	}
	if gid >= 0 && int(stat.Gid) != gid {
		return false, fmt.Sprintf("%s group gid is %d, want %d", path, stat.Gid, gid), nil
	}
	return true, "", nil
}

func applyOwner(path string, res *ir.Resource) error {
	uid, gid, set, err := desiredIDs(res)
	if err != nil {
		return err
	}
	if !set {
		return nil
	}
	return os.Chown(path, uid, gid)
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
