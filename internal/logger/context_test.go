package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsInjectedLogger(t *testing.T) {
	t.Parallel()

	// Arrange
	var buf bytes.Buffer
	injected := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithContext(context.Background(), injected)

	// Act
	got := FromContext(ctx)
	got.Info("through context")

	// Assert
	assert.Same(t, injected, got)
	assert.Contains(t, buf.String(), "through context")
}

func TestFromContext_NeverReturnsNil(t *testing.T) {
	t.Parallel()

	got := FromContext(context.Background())

	require.NotNil(t, got, "a bare context must fall back to the default logger")
	assert.NotPanics(t, func() {
		got.Info("safe to use")
	})
}

func TestWithContext_ChildOverridesParent(t *testing.T) {
	t.Parallel()

	var parentBuf, childBuf bytes.Buffer
	parent := slog.New(slog.NewTextHandler(&parentBuf, nil))
	child := slog.New(slog.NewTextHandler(&childBuf, nil))

	ctx := WithContext(context.Background(), parent)
	ctx = WithContext(ctx, child)

	FromContext(ctx).Info("scoped")

	assert.Empty(t, parentBuf.String())
	assert.Contains(t, childBuf.String(), "scoped")
}
