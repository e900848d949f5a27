package appid

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	identity, err := Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)

	require.NotEmpty(t, identity.Vendor)
	require.NotEmpty(t, identity.BinaryName)
	require.NotEmpty(t, identity.ConfigName)
	require.True(t, strings.HasSuffix(identity.EnvPrefix, "_"))
}

func TestGetReturnsCopy(t *testing.T) {
	first, err := Get(context.Background())
	require.NoError(t, err)
	first.BinaryName = "changed"

	second, err := Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "quotalens", second.BinaryName)
}
