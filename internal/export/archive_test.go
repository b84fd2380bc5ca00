package export

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/store"
)

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = data
	}
	return files
}

func TestBuildArchive_ContainsBothEncodingsAndManifest(t *testing.T) {
	payload := Payload{
		ExportedAt: time.Now().UTC(),
		Stats:      domain.DashboardStats{TotalAssessments: 9, HighRisk: 2},
		Recent:     []domain.AssessmentRecord{{ID: "P1"}},
	}

	path, err := BuildArchive(t.TempDir(), payload)
	require.NoError(t, err)

	files := readArchive(t, path)
	require.Contains(t, files, "state.json")
	require.Contains(t, files, "state.msgpack")
	require.Contains(t, files, "manifest.json")

	var fromJSON Payload
	require.NoError(t, json.Unmarshal(files["state.json"], &fromJSON))
	assert.Equal(t, 9, fromJSON.Stats.TotalAssessments)

	var fromPack Payload
	require.NoError(t, msgpack.Unmarshal(files["state.msgpack"], &fromPack))
	assert.Equal(t, 2, fromPack.Stats.HighRisk)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.Equal(t, digest(files["state.json"]), manifest.Files["state.json"])
	assert.Equal(t, digest(files["state.msgpack"]), manifest.Files["state.msgpack"])
}

func TestService_ExportWritesLocalArtifactWithoutUploader(t *testing.T) {
	st := store.New(5, zerolog.Nop())
	st.ApplySnapshot(store.Snapshot{
		Stats: domain.DashboardStats{TotalAssessments: 3, LowRisk: 3},
	})

	svc := NewService(st, t.TempDir(), nil, zerolog.Nop())
	path, err := svc.Export(context.Background())
	require.NoError(t, err)

	files := readArchive(t, path)
	var payload Payload
	require.NoError(t, json.Unmarshal(files["state.json"], &payload))
	assert.Equal(t, 3, payload.Stats.TotalAssessments)
	assert.Equal(t, []int{3, 0, 0}, payload.RiskChart.Counts)
}
