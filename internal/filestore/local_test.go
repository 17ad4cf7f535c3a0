package filestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studyrag/internal/config"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	loc, err := s.Save(ctx, "user-1", "../notes.pdf", strings.NewReader("%PDF-1.4 body"), 13)
	require.NoError(t, err)
	require.Equal(t, "user-1/notes.pdf", loc)

	obj, err := s.Open(ctx, loc)
	require.NoError(t, err)
	require.EqualValues(t, 13, obj.Size())
	buf := make([]byte, 4)
	_, err = obj.ReadAt(buf, 1)
	require.NoError(t, err)
	require.Equal(t, "PDF-", string(buf))
	require.NoError(t, obj.Close())

	require.NoError(t, s.Delete(ctx, loc))
	_, err = s.Open(ctx, loc)
	require.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, s.Delete(ctx, loc))
}

func TestLocalStoreOpenStaysInsideRoot(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Open(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreSaveRejectsParentOwner(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "..", "notes.pdf", strings.NewReader("%PDF"), 4)
	require.Error(t, err)
}

func TestOpenSelectsStore(t *testing.T) {
	s, err := Open(context.Background(), config.Config{FileStore: "local", DataInRoot: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &LocalStore{}, s)

	_, err = Open(context.Background(), config.Config{FileStore: "ftp"})
	require.Error(t, err)
}
