package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfactory/designcore/internal/types"
)

func exportableProject() *types.ProjectConfig {
	return &types.ProjectConfig{
		ID:      "p-1",
		Name:    "Assembly line",
		Version: "1.0.0",
		IOConfigs: []types.IOConfig{
			{ID: "io-1", Name: "Part sensor", Type: types.IOTypeDI, Address: "DI0.0", Enabled: true},
		},
		AxisConfigs: []types.AxisConfig{
			{ID: "axis-1", Name: "X1", Type: types.AxisTypeX, MaxSpeed: 1000, Acceleration: 500, Deceleration: 500, Enabled: true},
		},
		StationConfigs: []types.StationConfig{
			{ID: "st-1", Name: "Feeder", Position: types.Position{X: 1, Y: 2},
				IOConfigs: []string{"io-1"}, AxisConfigs: []string{"axis-1"}, Enabled: true},
		},
		TaskConfigs: []types.TaskConfig{
			{ID: "task-1", Name: "Pick", StationID: "st-1", Priority: 1, Enabled: true,
				Sequence: []types.TaskStep{
					{ID: "s0", Type: types.StepTypeWait, Parameters: map[string]any{"durationMs": 100}},
				}},
		},
	}
}

func TestExportRoundTrip(t *testing.T) {
	e, err := NewExporter()
	require.NoError(t, err)

	data, err := e.Marshal(exportableProject())
	require.NoError(t, err)

	rebuilt, err := e.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "p-1", rebuilt.ID)
	assert.Equal(t, "Assembly line", rebuilt.Name)
	require.Len(t, rebuilt.TaskConfigs, 1)
	assert.Equal(t, "s0", rebuilt.TaskConfigs[0].Sequence[0].ID)
}

func TestUnmarshalRejectsInvalidJSON(t *testing.T) {
	e, err := NewExporter()
	require.NoError(t, err)

	_, err = e.Unmarshal([]byte("{not json"))
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestUnmarshalRejectsMissingCollections(t *testing.T) {
	e, err := NewExporter()
	require.NoError(t, err)

	_, err = e.Unmarshal([]byte(`{"id":"p-1","name":"Line","version":"1.0.0"}`))
	assert.ErrorContains(t, err, "schema validation failed")
}

func TestUnmarshalRejectsUnknownEnumValues(t *testing.T) {
	e, err := NewExporter()
	require.NoError(t, err)

	doc := `{
		"id": "p-1", "name": "Line", "version": "1.0.0",
		"ioConfigs": [{"id": "io-1", "name": "Sensor", "type": "RELAY", "address": "DI0.0", "enabled": true}],
		"axisConfigs": [], "stationConfigs": [], "taskConfigs": []
	}`
	_, err = e.Unmarshal([]byte(doc))
	assert.ErrorContains(t, err, "schema validation failed")
}
