package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderHonorsCallerCancellation(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer(RendererConfig{NavigationTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Render(ctx, "https://unreachable.invalid/")
	require.Error(t, err)
}
