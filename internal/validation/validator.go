package validation

import (
	"math"
	"strings"

	"github.com/openfactory/designcore/internal/types"
)

// Pure structural checks, one per entity kind. Each fails on the first
// violated rule and never touches network or store state. The persistence
// gateway runs these before any write leaves the process.

const maxProjectNameLength = 100

// ValidateProjectName enforces the project-level naming rule shared by the
// store (defense in depth) and the gateway.
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return types.NewValidationError("name", "project name must not be empty")
	}
	if len(name) > maxProjectNameLength {
		return types.NewValidationError("name", "project name must not exceed 100 characters")
	}
	return nil
}

func ValidateIOConfig(cfg *types.IOConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return types.NewValidationError("name", "IO config name must not be empty")
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return types.NewValidationError("address", "IO address must not be empty")
	}
	switch cfg.Type {
	case types.IOTypeDI, types.IOTypeDO, types.IOTypeAI, types.IOTypeAO, types.IOTypeSignal:
	default:
		return types.NewValidationError("type", "invalid IO type")
	}
	return nil
}

func ValidateAxisConfig(cfg *types.AxisConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return types.NewValidationError("name", "axis config name must not be empty")
	}
	switch cfg.Type {
	case types.AxisTypeX, types.AxisTypeY, types.AxisTypeZ,
		types.AxisTypeA, types.AxisTypeB, types.AxisTypeC:
	default:
		return types.NewValidationError("type", "invalid axis type")
	}
	if cfg.MaxSpeed <= 0 {
		return types.NewValidationError("maxSpeed", "max speed must be greater than 0")
	}
	if cfg.Acceleration <= 0 {
		return types.NewValidationError("acceleration", "acceleration must be greater than 0")
	}
	if cfg.Deceleration <= 0 {
		return types.NewValidationError("deceleration", "deceleration must be greater than 0")
	}
	return nil
}

func ValidateStationConfig(cfg *types.StationConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return types.NewValidationError("name", "station config name must not be empty")
	}
	if math.IsNaN(cfg.Position.X) || math.IsNaN(cfg.Position.Y) {
		return types.NewValidationError("position", "station position must be a valid number")
	}
	return nil
}

func ValidateTaskConfig(cfg *types.TaskConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return types.NewValidationError("name", "task config name must not be empty")
	}
	if cfg.Priority < 0 {
		return types.NewValidationError("priority", "task priority must not be negative")
	}
	return nil
}

// ValidateProject runs every per-entity check over the aggregate, failing
// fast on the first violation.
func ValidateProject(project *types.ProjectConfig) error {
	if err := ValidateProjectName(project.Name); err != nil {
		return err
	}
	for i := range project.IOConfigs {
		if err := ValidateIOConfig(&project.IOConfigs[i]); err != nil {
			return err
		}
	}
	for i := range project.AxisConfigs {
		if err := ValidateAxisConfig(&project.AxisConfigs[i]); err != nil {
			return err
		}
	}
	for i := range project.StationConfigs {
		if err := ValidateStationConfig(&project.StationConfigs[i]); err != nil {
			return err
		}
	}
	for i := range project.TaskConfigs {
		if err := ValidateTaskConfig(&project.TaskConfigs[i]); err != nil {
			return err
		}
	}
	return nil
}
