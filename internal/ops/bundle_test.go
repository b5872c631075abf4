package ops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ctxpack/internal/errors"
)

func TestSaveBundle(t *testing.T) {
	p := newTestProject(t)

	out, err := SaveBundle(p, SaveBundleInput{Task: "../commit/message", Content: "bundle"})
	require.NoError(t, err)
	require.Len(t, out.ID, 26)
	require.Equal(t, "llm_outputs/commit-message/"+out.ID+".txt", out.Path)

	data, err := os.ReadFile(filepath.Join(p.Layout.Root, filepath.FromSlash(out.Path)))
	require.NoError(t, err)
	require.Equal(t, "bundle", string(data))

	second, err := SaveBundle(p, SaveBundleInput{Task: "commit-message", Content: "again"})
	require.NoError(t, err)
	require.NotEqual(t, out.ID, second.ID)
	require.True(t, strings.HasPrefix(second.Path, "llm_outputs/commit-message/"))
}

func TestSaveBundle_RequiresTask(t *testing.T) {
	p := newTestProject(t)
	_, err := SaveBundle(p, SaveBundleInput{Content: "x"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
