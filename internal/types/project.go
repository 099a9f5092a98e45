package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProjectConfig is the aggregate root for a designer project. The project
// store owns the single live instance; everything else receives it for the
// duration of one operation.
type ProjectConfig struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Version        string          `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	IOConfigs      []IOConfig      `json:"ioConfigs"`
	AxisConfigs    []AxisConfig    `json:"axisConfigs"`
	StationConfigs []StationConfig `json:"stationConfigs"`
	TaskConfigs    []TaskConfig    `json:"taskConfigs"`
}

type IOType string

const (
	IOTypeDI     IOType = "DI"
	IOTypeDO     IOType = "DO"
	IOTypeAI     IOType = "AI"
	IOTypeAO     IOType = "AO"
	IOTypeSignal IOType = "SIGNAL"
)

type IOConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        IOType `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

type AxisType string

const (
	AxisTypeX AxisType = "X"
	AxisTypeY AxisType = "Y"
	AxisTypeZ AxisType = "Z"
	AxisTypeA AxisType = "A"
	AxisTypeB AxisType = "B"
	AxisTypeC AxisType = "C"
)

type AxisConfig struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         AxisType `json:"type"`
	MaxSpeed     float64  `json:"maxSpeed"`
	Acceleration float64  `json:"acceleration"`
	Deceleration float64  `json:"deceleration"`
	HomePosition float64  `json:"homePosition"`
	SoftLimitMin float64  `json:"softLimitMin"`
	SoftLimitMax float64  `json:"softLimitMax"`
	Enabled      bool     `json:"enabled"`
}

// Position is a 2D placement on the layout canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StationConfig groups IO points and axes into a physical station. IOConfigs
// and AxisConfigs hold ids only; the targets live in the aggregate's own
// collections and may have been deleted out from under a station.
type StationConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Position    Position `json:"position"`
	IOConfigs   []string `json:"ioConfigs"`
	AxisConfigs []string `json:"axisConfigs"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// TaskConfig is an ordered sequence of steps, optionally assigned to a
// station by id. An empty StationID means unassigned.
type TaskConfig struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StationID string     `json:"stationId"`
	Sequence  []TaskStep `json:"sequence"`
	Priority  int        `json:"priority"`
	Enabled   bool       `json:"enabled"`
}

type StepType string

const (
	StepTypeMove      StepType = "MOVE"
	StepTypeIO        StepType = "IO"
	StepTypeWait      StepType = "WAIT"
	StepTypeCondition StepType = "CONDITION"
)

// TaskStep is the one deliberately dynamic spot in the model: Parameters is a
// per-type dictionary. Typed views are available through DecodeParams.
type TaskStep struct {
	ID          string         `json:"id"`
	Type        StepType       `json:"type"`
	Parameters  map[string]any `json:"parameters"`
	Description string         `json:"description,omitempty"`
}

// Typed parameter shapes for the known step kinds. Unknown step types keep
// the raw map.
type MoveStepParams struct {
	AxisID   string  `json:"axisId"`
	Target   float64 `json:"target"`
	Speed    float64 `json:"speed,omitempty"`
	Relative bool    `json:"relative,omitempty"`
}

type IOStepParams struct {
	IOConfigID string `json:"ioConfigId"`
	Value      any    `json:"value"`
}

type WaitStepParams struct {
	DurationMs int `json:"durationMs"`
}

type ConditionStepParams struct {
	IOConfigID string `json:"ioConfigId"`
	Operator   string `json:"operator"`
	Expected   any    `json:"expected"`
	TimeoutMs  int    `json:"timeoutMs,omitempty"`
}

// DecodeParams interprets the free-form parameter map according to the step's
// type tag. For an unrecognized type the raw map is returned unchanged.
func (s *TaskStep) DecodeParams() (any, error) {
	raw, err := json.Marshal(s.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step parameters: %w", err)
	}

	switch s.Type {
	case StepTypeMove:
		var p MoveStepParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid MOVE parameters: %w", err)
		}
		return p, nil
	case StepTypeIO:
		var p IOStepParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid IO parameters: %w", err)
		}
		return p, nil
	case StepTypeWait:
		var p WaitStepParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid WAIT parameters: %w", err)
		}
		return p, nil
	case StepTypeCondition:
		var p ConditionStepParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid CONDITION parameters: %w", err)
		}
		return p, nil
	default:
		return s.Parameters, nil
	}
}

// Clone returns a deep copy of the aggregate so callers can hand out
// snapshots without exposing the store's live instance.
func (p *ProjectConfig) Clone() *ProjectConfig {
	out := *p

	out.IOConfigs = append([]IOConfig(nil), p.IOConfigs...)
	out.AxisConfigs = append([]AxisConfig(nil), p.AxisConfigs...)

	out.StationConfigs = make([]StationConfig, len(p.StationConfigs))
	for i, st := range p.StationConfigs {
		st.IOConfigs = append([]string(nil), st.IOConfigs...)
		st.AxisConfigs = append([]string(nil), st.AxisConfigs...)
		out.StationConfigs[i] = st
	}

	out.TaskConfigs = make([]TaskConfig, len(p.TaskConfigs))
	for i, task := range p.TaskConfigs {
		steps := make([]TaskStep, len(task.Sequence))
		for j, step := range task.Sequence {
			params := make(map[string]any, len(step.Parameters))
			for k, v := range step.Parameters {
				params[k] = v
			}
			step.Parameters = params
			steps[j] = step
		}
		task.Sequence = steps
		out.TaskConfigs[i] = task
	}

	return &out
}

// IOConfigByID looks up an IO point in the aggregate's own collection.
func (p *ProjectConfig) IOConfigByID(id string) (*IOConfig, bool) {
	for i := range p.IOConfigs {
		if p.IOConfigs[i].ID == id {
			return &p.IOConfigs[i], true
		}
	}
	return nil, false
}

// AxisConfigByID looks up an axis in the aggregate's own collection.
func (p *ProjectConfig) AxisConfigByID(id string) (*AxisConfig, bool) {
	for i := range p.AxisConfigs {
		if p.AxisConfigs[i].ID == id {
			return &p.AxisConfigs[i], true
		}
	}
	return nil, false
}

// StationConfigByID looks up a station in the aggregate's own collection.
func (p *ProjectConfig) StationConfigByID(id string) (*StationConfig, bool) {
	for i := range p.StationConfigs {
		if p.StationConfigs[i].ID == id {
			return &p.StationConfigs[i], true
		}
	}
	return nil, false
}
