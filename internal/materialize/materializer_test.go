package materialize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfactory/designcore/internal/types"
)

func sampleProject() *types.ProjectConfig {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &types.ProjectConfig{
		ID:        "p-1",
		Name:      "Assembly line",
		Version:   "1.0.0",
		CreatedAt: now,
		UpdatedAt: now,
		IOConfigs: []types.IOConfig{
			{ID: "io-1", Name: "Part sensor", Type: types.IOTypeDI, Address: "DI0.0", Enabled: true},
			{ID: "io-2", Name: "Gripper valve", Type: types.IOTypeDO, Address: "DO0.1", Enabled: true},
		},
		AxisConfigs: []types.AxisConfig{
			{ID: "axis-1", Name: "X1", Type: types.AxisTypeX, MaxSpeed: 1000, Acceleration: 500, Deceleration: 500, Enabled: true},
		},
		StationConfigs: []types.StationConfig{
			{
				ID:          "st-1",
				Name:        "Feeder",
				Position:    types.Position{X: 100, Y: 250},
				IOConfigs:   []string{"io-1", "io-2"},
				AxisConfigs: []string{"axis-1"},
				Enabled:     true,
			},
		},
		TaskConfigs: []types.TaskConfig{
			{
				ID:        "task-1",
				Name:      "Pick and place",
				StationID: "st-1",
				Priority:  1,
				Enabled:   true,
				Sequence: []types.TaskStep{
					{ID: "s0", Type: types.StepTypeMove, Parameters: map[string]any{"axisId": "axis-1", "target": 150.0}},
					{ID: "s1", Type: types.StepTypeIO, Parameters: map[string]any{"ioConfigId": "io-2", "value": true}},
					{ID: "s2", Type: types.StepTypeWait, Parameters: map[string]any{"durationMs": 500}},
				},
			},
		},
	}
}

func TestFlattenProducesRowModel(t *testing.T) {
	detail := Flatten(sampleProject(), "user-1")

	assert.Equal(t, "p-1", detail.Project.ID)
	assert.Equal(t, "user-1", detail.Project.UserID)

	require.Len(t, detail.IORows, 2)
	assert.Equal(t, "DI", detail.IORows[0].Type)
	assert.Equal(t, "DI0.0", detail.IORows[0].Address)

	require.Len(t, detail.AxisRows, 1)
	assert.Equal(t, 1000.0, detail.AxisRows[0].MaxSpeed)

	require.Len(t, detail.StationRows, 1)
	assert.Equal(t, 100.0, detail.StationRows[0].PositionX)
	assert.Equal(t, 250.0, detail.StationRows[0].PositionY)

	assert.Len(t, detail.StationIORows, 2)
	assert.Len(t, detail.StationAxisRows, 1)

	require.Len(t, detail.TaskRows, 1)
	assert.Equal(t, "st-1", detail.TaskRows[0].StationID)

	// Step order is the slice position at flatten time.
	require.Len(t, detail.StepRows, 3)
	for i, row := range detail.StepRows {
		assert.Equal(t, i, row.SequenceOrder)
	}
}

func TestFlattenPrunesDanglingReferences(t *testing.T) {
	project := sampleProject()
	project.StationConfigs[0].IOConfigs = []string{"io-1", "io-gone"}
	project.StationConfigs[0].AxisConfigs = []string{"axis-gone"}
	project.TaskConfigs[0].StationID = "st-gone"

	detail := Flatten(project, "user-1")

	require.Len(t, detail.StationIORows, 1)
	assert.Equal(t, "io-1", detail.StationIORows[0].IOConfigID)
	assert.Empty(t, detail.StationAxisRows)

	// The task survives, its dead station assignment does not.
	require.Len(t, detail.TaskRows, 1)
	assert.Equal(t, "", detail.TaskRows[0].StationID)
}

func TestRoundTripPreservesAggregate(t *testing.T) {
	original := sampleProject()
	rebuilt := Reconstitute(Flatten(original, "user-1"))

	assert.Equal(t, original.ID, rebuilt.ID)
	assert.Equal(t, original.Name, rebuilt.Name)
	assert.Equal(t, original.IOConfigs, rebuilt.IOConfigs)
	assert.Equal(t, original.AxisConfigs, rebuilt.AxisConfigs)
	assert.Equal(t, original.StationConfigs, rebuilt.StationConfigs)
	assert.Equal(t, original.TaskConfigs, rebuilt.TaskConfigs)
}

func TestReconstituteOrdersStepsBySequence(t *testing.T) {
	detail := Flatten(sampleProject(), "user-1")

	// Shuffle step rows; persisted order must not matter.
	detail.StepRows[0], detail.StepRows[2] = detail.StepRows[2], detail.StepRows[0]

	rebuilt := Reconstitute(detail)
	require.Len(t, rebuilt.TaskConfigs, 1)
	sequence := rebuilt.TaskConfigs[0].Sequence
	require.Len(t, sequence, 3)
	assert.Equal(t, "s0", sequence[0].ID)
	assert.Equal(t, "s1", sequence[1].ID)
	assert.Equal(t, "s2", sequence[2].ID)
}

func TestReconstituteSkipsOrphanJoinRows(t *testing.T) {
	detail := Flatten(sampleProject(), "user-1")
	detail.StationIORows = append(detail.StationIORows,
		StationIORow{StationID: "st-gone", IOConfigID: "io-1"},
		StationIORow{StationID: "st-1", IOConfigID: "io-gone"},
	)
	detail.StationAxisRows = append(detail.StationAxisRows,
		StationAxisRow{StationID: "st-1", AxisConfigID: "axis-gone"},
	)

	rebuilt := Reconstitute(detail)
	require.Len(t, rebuilt.StationConfigs, 1)
	assert.ElementsMatch(t, []string{"io-1", "io-2"}, rebuilt.StationConfigs[0].IOConfigs)
	assert.ElementsMatch(t, []string{"axis-1"}, rebuilt.StationConfigs[0].AxisConfigs)
}

func TestReconstituteEmptyStationRefsAreNotNil(t *testing.T) {
	detail := Flatten(sampleProject(), "user-1")
	detail.StationIORows = nil
	detail.StationAxisRows = nil

	rebuilt := Reconstitute(detail)
	require.Len(t, rebuilt.StationConfigs, 1)
	assert.NotNil(t, rebuilt.StationConfigs[0].IOConfigs)
	assert.Empty(t, rebuilt.StationConfigs[0].IOConfigs)
	assert.NotNil(t, rebuilt.StationConfigs[0].AxisConfigs)
}

func TestReconstituteEmptyDetail(t *testing.T) {
	detail := &ProjectDetail{Project: ProjectRow{ID: "p-2", Name: "Fresh", Version: "1.0.0"}}
	rebuilt := Reconstitute(detail)

	assert.Equal(t, "p-2", rebuilt.ID)
	assert.Empty(t, rebuilt.IOConfigs)
	assert.Empty(t, rebuilt.TaskConfigs)
}
