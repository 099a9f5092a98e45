package interfaces

import (
	"context"

	"github.com/openfactory/designcore/internal/config"
	"github.com/openfactory/designcore/internal/gateway"
	"github.com/openfactory/designcore/internal/simulation"
	"github.com/openfactory/designcore/internal/storage"
	"github.com/openfactory/designcore/internal/store"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	CurrentProjectID string `json:"current_project_id,omitempty"`
	ProjectCount     int    `json:"project_count"`
	SimulationState  string `json:"simulation_state"`
	BackendOnline    bool   `json:"backend_online"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.PostgresClient
	Gateway() *gateway.Gateway
	Store() *store.Store
	Stepper() *simulation.Stepper
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
