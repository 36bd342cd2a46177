package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// dockerBackend supervises the app process as a container: converged means
// a container with the declared name is running the declared image.
type dockerBackend struct {
	client *client.Client
}

func (b *dockerBackend) ensureClient() error {
	if b.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	b.client = cli
	return nil
}

func (b *dockerBackend) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	if err := b.ensureClient(); err != nil {
		return provider.State{}, err
	}

	inspect, err := b.client.ContainerInspect(ctx, res.Name)
	if client.IsErrNotFound(err) {
		return provider.State{Detail: fmt.Sprintf("container %s does not exist", res.Name)}, nil
	}
	if err != nil {
		return provider.State{}, err
	}

	if inspect.Config.Image != res.StringAttr("image") {
		return provider.State{Exists: true, Detail: fmt.Sprintf("container %s runs image %s", res.Name, inspect.Config.Image)}, nil
	}
	if inspect.State == nil || !inspect.State.Running {
		return provider.State{Exists: true, Detail: fmt.Sprintf("container %s is not running", res.Name)}, nil
	}
	return provider.State{Exists: true, InSync: true}, nil
}

func (b *dockerBackend) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	st, err := b.Check(ctx, res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if st.InSync {
		return ir.OutcomeUnchanged, nil
	}

	img := res.StringAttr("image")
	if img == "" {
		return ir.OutcomeFailed, fmt.Errorf("service %s: image is required for the docker supervisor", res.Name)
	}

	// Tear down any stale container (wrong image, stopped, crashed).
	if st.Exists {
		timeout := 10 // seconds
		_ = b.client.ContainerStop(ctx, res.Name, container.StopOptions{Timeout: &timeout})
		if err := b.client.ContainerRemove(ctx, res.Name, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			return ir.OutcomeFailed, fmt.Errorf("failed to remove container: %w", err)
		}
	}

	reader, err := b.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return ir.OutcomeFailed, fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	io.Copy(io.Discard, reader)
	reader.Close()

	portBindings, exposed, err := portBindings(res)
	if err != nil {
		return ir.OutcomeFailed, err
	}

	config := &container.Config{
		Image:        img,
		Env:          envList(res.MapAttr("environment")),
		User:         res.StringAttr("run_as"),
		ExposedPorts: exposed,
	}
	if cmd := res.StringAttr("command"); cmd != "" {
		config.Cmd = strings.Fields(cmd)
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	resp, err := b.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, &v1.Platform{}, res.Name)
	if err != nil {
		return ir.OutcomeFailed, fmt.Errorf("failed to create container: %w", err)
	}
	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return ir.OutcomeFailed, fmt.Errorf("failed to start container: %w", err)
	}
	return ir.OutcomeChanged, nil
}

func (b *dockerBackend) Refresh(ctx context.Context, res *ir.Resource) error {
	if err := b.ensureClient(); err != nil {
		return err
	}
	timeout := 10 // seconds
	if err := b.client.ContainerRestart(ctx, res.Name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to restart container: %w", err)
	}
	return nil
}

func portBindings(res *ir.Resource) (nat.PortMap, nat.PortSet, error) {
	v, ok := res.Attributes["ports"]
	if !ok {
		return nil, nil, nil
	}
	var specs []string
	switch list := v.(type) {
	case []string:
		specs = list
	case []any:
		for _, item := range list {
			specs = append(specs, fmt.Sprintf("%v", item))
		}
	default:
		return nil, nil, fmt.Errorf("service %s: ports must be a list of host:container pairs", res.Name)
	}

	exposed, bindings, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return nil, nil, fmt.Errorf("service %s: %w", res.Name, err)
	}
	return bindings, exposed, nil
}

func envList(env map[string]string) []string {
	var out []string
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
