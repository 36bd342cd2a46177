package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-sh/converge/internal/ir"
)

func TestRegistryCoversEveryKind(t *testing.T) {
	r := NewRegistry(Options{})
	for _, kind := range []ir.Kind{
		ir.KindPackage,
		ir.KindFile,
		ir.KindUser,
		ir.KindVcsCheckout,
		ir.KindExec,
		ir.KindService,
		ir.KindDbDatabase,
		ir.KindReverseProxyUpstream,
	} {
		p, err := r.Get(kind)
		require.NoError(t, err, "kind %s", kind)
		require.NotNil(t, p)
	}
}

func TestRegistryCachesProviders(t *testing.T) {
	r := NewRegistry(Options{})
	first, err := r.Get(ir.KindFile)
	require.NoError(t, err)
	second, err := r.Get(ir.KindFile)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistryUnknownKind(t *testing.T) {
	_, err := NewRegistry(Options{}).Get(ir.Kind("widget"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider")
}
