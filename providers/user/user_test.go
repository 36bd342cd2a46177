package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-sh/converge/internal/execx"
	"github.com/converge-sh/converge/internal/ir"
)

func userRes(name string, attrs map[string]any) *ir.Resource {
	return &ir.Resource{Kind: ir.KindUser, Name: name, Attributes: attrs}
}

func TestCheckExistingUser(t *testing.T) {
	fake := execx.NewFake().
		On("getent passwd", execx.Result{Stdout: "alice:x:1000:1000::/home/alice:/bin/bash"})

	st, err := New(fake).Check(context.Background(), userRes("alice", nil))
	require.NoError(t, err)
	assert.True(t, st.InSync)
}

func TestCheckMissingUser(t *testing.T) {
	fake := execx.NewFake().
		On("getent passwd", execx.Result{ExitCode: 2})

	st, err := New(fake).Check(context.Background(), userRes("alice", nil))
	require.NoError(t, err)
	assert.False(t, st.InSync)
	assert.Contains(t, st.Detail, "does not exist")
}

func TestApplyCreatesUser(t *testing.T) {
	fake := execx.NewFake().
		On("getent passwd", execx.Result{ExitCode: 2}).
		On("useradd", execx.Result{})

	outcome, err := New(fake).Apply(context.Background(), userRes("deploy", map[string]any{
		"home":  "/srv/deploy",
		"shell": "/bin/sh",
	}))
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeChanged, outcome)

	lines := fake.CommandLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "useradd --create-home --home-dir /srv/deploy --shell /bin/sh deploy", lines[1])
}

func TestApplySystemAccount(t *testing.T) {
	fake := execx.NewFake().
		On("getent passwd", execx.Result{ExitCode: 2}).
		On("useradd", execx.Result{})

	_, err := New(fake).Apply(context.Background(), userRes("svc", map[string]any{"system": true}))
	require.NoError(t, err)
	assert.Equal(t, "useradd --create-home --shell /bin/bash --system svc", fake.CommandLines()[1])
}

func TestApplyExistingUserUnchanged(t *testing.T) {
	fake := execx.NewFake().
		On("getent passwd", execx.Result{Stdout: "alice:x:1000:1000::/home/alice:/bin/bash"})

	outcome, err := New(fake).Apply(context.Background(), userRes("alice", nil))
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeUnchanged, outcome)
	assert.Len(t, fake.CommandLines(), 1)
}

func TestApplyUseraddFailure(t *testing.T) {
	fake := execx.NewFake().
		On("getent passwd", execx.Result{ExitCode: 2}).
		On("useradd", execx.Result{ExitCode: 9, Stderr: "useradd: group deploy exists"})

	outcome, err := New(fake).Apply(context.Background(), userRes("deploy", nil))
	require.Error(t, err)
	assert.Equal(t, ir.OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "group deploy exists")
}
