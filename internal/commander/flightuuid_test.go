package commander

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightUUIDPersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight_uuid")

	f := LoadFlightUUID(path)
	assert.Equal(t, uint64(0), f.Value(), "expected a missing file to start the counter at zero")

	require.NoError(t, f.Increment())
	require.NoError(t, f.Increment())
	assert.Equal(t, uint64(2), f.Value())

	reloaded := LoadFlightUUID(path)
	assert.Equal(t, uint64(2), reloaded.Value())
}

func TestFlightUUIDCorruptFileRestartsAtZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight_uuid")
	require.NoError(t, os.WriteFile(path, []byte("not a number"), 0o644))

	f := LoadFlightUUID(path)
	assert.Equal(t, uint64(0), f.Value())
}
