package materialize

import (
	"sort"

	"github.com/openfactory/designcore/internal/types"
)

// Flatten converts the nested aggregate into the normalized row model for a
// single-transaction write. Station references to IO/axis ids that no longer
// exist in the aggregate are silently dropped rather than errored: the UI
// cannot always react in time to cross-entity deletes, so pruning here is the
// consistency backstop. The same applies to a task's station assignment.
func Flatten(project *types.ProjectConfig, ownerID string) *ProjectDetail {
	detail := &ProjectDetail{
		Project: ProjectRow{
			ID:          project.ID,
			UserID:      ownerID,
			Name:        project.Name,
			Description: project.Description,
			Version:     project.Version,
			CreatedAt:   project.CreatedAt,
			UpdatedAt:   project.UpdatedAt,
		},
	}

	ioIDs := make(map[string]bool, len(project.IOConfigs))
	for _, io := range project.IOConfigs {
		ioIDs[io.ID] = true
		detail.IORows = append(detail.IORows, IORow{
			ID:          io.ID,
			ProjectID:   project.ID,
			Name:        io.Name,
			Type:        string(io.Type),
			Address:     io.Address,
			Description: io.Description,
			Enabled:     io.Enabled,
		})
	}

	axisIDs := make(map[string]bool, len(project.AxisConfigs))
	for _, axis := range project.AxisConfigs {
		axisIDs[axis.ID] = true
		detail.AxisRows = append(detail.AxisRows, AxisRow{
			ID:           axis.ID,
			ProjectID:    project.ID,
			Name:         axis.Name,
			Type:         string(axis.Type),
			MaxSpeed:     axis.MaxSpeed,
			Acceleration: axis.Acceleration,
			Deceleration: axis.Deceleration,
			HomePosition: axis.HomePosition,
			SoftLimitMin: axis.SoftLimitMin,
			SoftLimitMax: axis.SoftLimitMax,
			Enabled:      axis.Enabled,
		})
	}

	stationIDs := make(map[string]bool, len(project.StationConfigs))
	for _, station := range project.StationConfigs {
		stationIDs[station.ID] = true
		detail.StationRows = append(detail.StationRows, StationRow{
			ID:          station.ID,
			ProjectID:   project.ID,
			Name:        station.Name,
			PositionX:   station.Position.X,
			PositionY:   station.Position.Y,
			Description: station.Description,
			Enabled:     station.Enabled,
		})

		for _, ioID := range station.IOConfigs {
			if !ioIDs[ioID] {
				continue // dangling reference, prune
			}
			detail.StationIORows = append(detail.StationIORows, StationIORow{
				StationID:  station.ID,
				IOConfigID: ioID,
			})
		}
		for _, axisID := range station.AxisConfigs {
			if !axisIDs[axisID] {
				continue
			}
			detail.StationAxisRows = append(detail.StationAxisRows, StationAxisRow{
				StationID:    station.ID,
				AxisConfigID: axisID,
			})
		}
	}

	for _, task := range project.TaskConfigs {
		stationID := task.StationID
		if stationID != "" && !stationIDs[stationID] {
			stationID = "" // assigned station no longer exists
		}
		detail.TaskRows = append(detail.TaskRows, TaskRow{
			ID:        task.ID,
			ProjectID: project.ID,
			StationID: stationID,
			Name:      task.Name,
			Priority:  task.Priority,
			Enabled:   task.Enabled,
		})

		for i, step := range task.Sequence {
			detail.StepRows = append(detail.StepRows, StepRow{
				ID:            step.ID,
				TaskID:        task.ID,
				SequenceOrder: i,
				Type:          string(step.Type),
				Parameters:    step.Parameters,
				Description:   step.Description,
			})
		}
	}

	return detail
}

// Reconstitute rebuilds the nested aggregate from normalized rows. Join rows
// whose station or config side is missing are skipped; step rows are grouped
// per task and placed into the sequence in ascending SequenceOrder regardless
// of their order in the slice.
func Reconstitute(detail *ProjectDetail) *types.ProjectConfig {
	project := &types.ProjectConfig{
		ID:             detail.Project.ID,
		Name:           detail.Project.Name,
		Description:    detail.Project.Description,
		Version:        detail.Project.Version,
		CreatedAt:      detail.Project.CreatedAt,
		UpdatedAt:      detail.Project.UpdatedAt,
		IOConfigs:      make([]types.IOConfig, 0, len(detail.IORows)),
		AxisConfigs:    make([]types.AxisConfig, 0, len(detail.AxisRows)),
		StationConfigs: make([]types.StationConfig, 0, len(detail.StationRows)),
		TaskConfigs:    make([]types.TaskConfig, 0, len(detail.TaskRows)),
	}

	ioIDs := make(map[string]bool, len(detail.IORows))
	for _, row := range detail.IORows {
		ioIDs[row.ID] = true
		project.IOConfigs = append(project.IOConfigs, types.IOConfig{
			ID:          row.ID,
			Name:        row.Name,
			Type:        types.IOType(row.Type),
			Address:     row.Address,
			Description: row.Description,
			Enabled:     row.Enabled,
		})
	}

	axisIDs := make(map[string]bool, len(detail.AxisRows))
	for _, row := range detail.AxisRows {
		axisIDs[row.ID] = true
		project.AxisConfigs = append(project.AxisConfigs, types.AxisConfig{
			ID:           row.ID,
			Name:         row.Name,
			Type:         types.AxisType(row.Type),
			MaxSpeed:     row.MaxSpeed,
			Acceleration: row.Acceleration,
			Deceleration: row.Deceleration,
			HomePosition: row.HomePosition,
			SoftLimitMin: row.SoftLimitMin,
			SoftLimitMax: row.SoftLimitMax,
			Enabled:      row.Enabled,
		})
	}

	stationIDs := make(map[string]bool, len(detail.StationRows))
	ioByStation := make(map[string][]string)
	axisByStation := make(map[string][]string)
	for _, row := range detail.StationRows {
		stationIDs[row.ID] = true
	}
	for _, row := range detail.StationIORows {
		if !stationIDs[row.StationID] || !ioIDs[row.IOConfigID] {
			continue // orphan join row
		}
		ioByStation[row.StationID] = append(ioByStation[row.StationID], row.IOConfigID)
	}
	for _, row := range detail.StationAxisRows {
		if !stationIDs[row.StationID] || !axisIDs[row.AxisConfigID] {
			continue
		}
		axisByStation[row.StationID] = append(axisByStation[row.StationID], row.AxisConfigID)
	}

	for _, row := range detail.StationRows {
		ios := ioByStation[row.ID]
		if ios == nil {
			ios = []string{}
		}
		axes := axisByStation[row.ID]
		if axes == nil {
			axes = []string{}
		}
		project.StationConfigs = append(project.StationConfigs, types.StationConfig{
			ID:          row.ID,
			Name:        row.Name,
			Position:    types.Position{X: row.PositionX, Y: row.PositionY},
			IOConfigs:   ios,
			AxisConfigs: axes,
			Description: row.Description,
			Enabled:     row.Enabled,
		})
	}

	stepsByTask := make(map[string][]StepRow)
	for _, row := range detail.StepRows {
		stepsByTask[row.TaskID] = append(stepsByTask[row.TaskID], row)
	}

	for _, row := range detail.TaskRows {
		stepRows := stepsByTask[row.ID]
		sort.SliceStable(stepRows, func(i, j int) bool {
			return stepRows[i].SequenceOrder < stepRows[j].SequenceOrder
		})

		sequence := make([]types.TaskStep, 0, len(stepRows))
		for _, stepRow := range stepRows {
			sequence = append(sequence, types.TaskStep{
				ID:          stepRow.ID,
				Type:        types.StepType(stepRow.Type),
				Parameters:  stepRow.Parameters,
				Description: stepRow.Description,
			})
		}

		project.TaskConfigs = append(project.TaskConfigs, types.TaskConfig{
			ID:        row.ID,
			Name:      row.Name,
			StationID: row.StationID,
			Sequence:  sequence,
			Priority:  row.Priority,
			Enabled:   row.Enabled,
		})
	}

	return project
}
