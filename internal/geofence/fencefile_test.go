package geofence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFence(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fence.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFenceFileParsesVerticesAndComments(t *testing.T) {
	path := writeFence(t, `# test fence
47.0 8.0
47.0 8.1  # east corner

47.1 8.1
47.1 8.0
`)
	poly, err := LoadFenceFile(path)
	require.NoError(t, err)
	require.Len(t, poly.Vertices, 4)
	assert.InDelta(t, 47.0, poly.Vertices[0].Lat(), 1e-9)
	assert.InDelta(t, 8.1, poly.Vertices[1].Lng(), 1e-9)
}

func TestLoadFenceFileRejectsMalformedLine(t *testing.T) {
	path := writeFence(t, "47.0 8.0\n47.0\n47.1 8.1\n")
	_, err := LoadFenceFile(path)
	assert.ErrorIs(t, err, ErrMalformedFenceVertex)
}

func TestLoadFenceFileRejectsOutOfRangeVertex(t *testing.T) {
	path := writeFence(t, "47.0 8.0\n95.0 8.0\n47.1 8.1\n")
	_, err := LoadFenceFile(path)
	assert.ErrorIs(t, err, ErrFenceVertexOutOfRange)
}

func TestLoadFenceFileRequiresThreeVertices(t *testing.T) {
	path := writeFence(t, "47.0 8.0\n47.1 8.1\n")
	_, err := LoadFenceFile(path)
	assert.ErrorIs(t, err, ErrFenceTooFewVertices)
}

func TestLoadFenceFileMissingFile(t *testing.T) {
	_, err := LoadFenceFile(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
