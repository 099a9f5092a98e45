package materialize

import "time"

// Normalized row model mirroring the relational schema. Field names follow
// the column names so the storage layer can scan straight into them.

type ProjectRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type IORow struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

type AxisRow struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	MaxSpeed     float64 `json:"max_speed"`
	Acceleration float64 `json:"acceleration"`
	Deceleration float64 `json:"deceleration"`
	HomePosition float64 `json:"home_position"`
	SoftLimitMin float64 `json:"soft_limit_min"`
	SoftLimitMax float64 `json:"soft_limit_max"`
	Enabled      bool    `json:"enabled"`
}

type StationRow struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	PositionX   float64 `json:"position_x"`
	PositionY   float64 `json:"position_y"`
	Description string  `json:"description,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// StationIORow is one station↔IO association instance.
type StationIORow struct {
	StationID  string `json:"station_id"`
	IOConfigID string `json:"io_config_id"`
}

// StationAxisRow is one station↔axis association instance.
type StationAxisRow struct {
	StationID    string `json:"station_id"`
	AxisConfigID string `json:"axis_config_id"`
}

type TaskRow struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	StationID string `json:"station_id,omitempty"`
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	Enabled   bool   `json:"enabled"`
}

// StepRow carries an explicit SequenceOrder because the backing store gives
// no inherent list ordering guarantee.
type StepRow struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	SequenceOrder int            `json:"sequence_order"`
	Type          string         `json:"type"`
	Parameters    map[string]any `json:"parameters"`
	Description   string         `json:"description,omitempty"`
}

// ProjectDetail bundles every row set belonging to one project, as read from
// or written to the backing store in a single logical transaction.
type ProjectDetail struct {
	Project         ProjectRow
	IORows          []IORow
	AxisRows        []AxisRow
	StationRows     []StationRow
	StationIORows   []StationIORow
	StationAxisRows []StationAxisRow
	TaskRows        []TaskRow
	StepRows        []StepRow
}
