package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file name")

			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestSnapshot_CanonicalJSON(t *testing.T) {
	trace := []TraceEntry{
		{Type: TraceTypeTrigger, Seq: 1, Kind: "upgrade"},
		{Type: TraceTypeEvent, Seq: 1, Kind: "invalid", Relation: "service:1"},
		{
			Type:     TraceTypePublish,
			Seq:      1,
			Relation: "service:1",
			Data:     map[string]any{"value": "<a&b>", "field": "provider_data"},
		},
	}

	got, err := Snapshot("snap", trace)
	require.NoError(t, err)

	want := `{"scenario_name":"snap","trace":[` +
		`{"kind":"upgrade","seq":1,"type":"trigger"},` +
		`{"kind":"invalid","relation":"service:1","seq":1,"type":"event"},` +
		`{"data":{"field":"provider_data","value":"<a&b>"},"relation":"service:1","seq":1,"type":"publish"}]}`
	assert.Equal(t, want, string(got))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/consumer_revalidates_on_upgrade.yaml")
	require.NoError(t, err)

	var snapshots []string
	for range 3 {
		result, err := Run(scenario)
		require.NoError(t, err)
		require.True(t, result.Pass, result.Errors)
		data, err := Snapshot(scenario.Name, result.Trace)
		require.NoError(t, err)
		snapshots = append(snapshots, string(data))
	}
	assert.Equal(t, snapshots[0], snapshots[1])
	assert.Equal(t, snapshots[1], snapshots[2])
}
