package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	handle, err := s.Put(ctx, strings.NewReader("\x89PNG fake image"))
	require.NoError(t, err)
	require.Equal(t, Sum([]byte("\x89PNG fake image")), handle)

	again, err := s.Put(ctx, strings.NewReader("\x89PNG fake image"))
	require.NoError(t, err)
	require.Equal(t, handle, again)

	rc, err := s.Open(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "\x89PNG fake image", string(data))

	require.NoError(t, s.Delete(ctx, handle))
	_, err = s.Open(ctx, handle)
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, handle))
}

func TestFSStore_RejectsBadHandles(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	for _, h := range []string{"", "abc", "../../etc/passwd", strings.Repeat("z", handleLen)} {
		_, err := s.Open(context.Background(), h)
		require.ErrorIs(t, err, ErrInvalidHandle, h)
		require.ErrorIs(t, s.Delete(context.Background(), h), ErrInvalidHandle, h)
	}
}
