package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: filepath.Join(t.TempDir(), "paragony")}

	_, err := s.Get("openai")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(" OpenAI ", "sk-test-123"))
	got, err := s.Get("openai")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", got)

	raw, err := os.ReadFile(filepath.Join(s.Dir, fileName))
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "sk-test-123"), "key must not be stored in clear")

	fi, err := os.Stat(filepath.Join(s.Dir, fileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, s.Delete("openai"))
	_, err = s.Get("openai")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRequiresProvider(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: t.TempDir()}
	require.Error(t, s.Set("  ", "k"))
	_, err := s.Get("")
	require.Error(t, err)
}
