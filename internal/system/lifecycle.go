package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openfactory/designcore/internal/api/rest"
	"github.com/openfactory/designcore/internal/api/websocket"
	"github.com/openfactory/designcore/internal/auth"
	"github.com/openfactory/designcore/internal/config"
	"github.com/openfactory/designcore/internal/gateway"
	"github.com/openfactory/designcore/internal/interfaces"
	"github.com/openfactory/designcore/internal/simulation"
	"github.com/openfactory/designcore/internal/storage"
	"github.com/openfactory/designcore/internal/store"
)

// healthInterval is the cadence of the background backend probe.
const healthInterval = 30 * time.Second

type LifecycleManager struct {
	config         *config.Config
	storage        *storage.PostgresClient
	authService    *auth.AuthService
	projectGateway *gateway.Gateway
	projectStore   *store.Store
	stepper        *simulation.Stepper
	logger         *zap.Logger

	restServer *rest.Server
	wsHub      *websocket.Hub

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    string

	listenersMu     sync.RWMutex
	statusListeners []chan SystemStatus

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(
	storage *storage.PostgresClient,
	cfg *config.Config,
	logger *zap.Logger,
) *LifecycleManager {
	authService := auth.NewAuthService(storage, cfg.Auth)

	retry := gateway.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
	}
	if retry.MaxAttempts <= 0 {
		retry = gateway.DefaultRetryPolicy()
	}
	projectGateway := gateway.New(storage, authService, retry, logger)
	projectStore := store.New(projectGateway, logger)

	stepper := simulation.NewStepper(logger, func() int {
		return len(projectStore.Project().TaskConfigs)
	})
	if speed := simulation.Speed(cfg.Simulation.DefaultInterval); speed.Valid() {
		if err := stepper.SetSpeed(speed); err != nil {
			logger.Warn("failed to apply configured simulation speed", zap.Error(err))
		}
	}

	wsHub := websocket.NewHub(logger, authService)

	return &LifecycleManager{
		config:          cfg,
		storage:         storage,
		authService:     authService,
		projectGateway:  projectGateway,
		projectStore:    projectStore,
		stepper:         stepper,
		logger:          logger,
		wsHub:           wsHub,
		currentState:    StateInitializing,
		shutdownChan:    make(chan struct{}),
		statusListeners: make([]chan SystemStatus, 0),
	}
}

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting design core")

	lm.setState(StateInitializing)
	lm.broadcastStatus()

	// Stepper events feed the live websocket channel
	lm.stepper.OnEvent(func(event simulation.Event) {
		lm.wsHub.Broadcast(websocket.NewSimulationMessage(event))
	})

	go lm.wsHub.Run()

	if err := lm.startRESTServer(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	go lm.healthLoop()

	lm.setState(StateRunning)
	lm.broadcastStatus()

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort))

	return nil
}

// healthLoop probes the persistence backend on a fixed cadence and pushes the
// verdict to connected clients. The store keeps its own online flag current.
func (lm *LifecycleManager) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			lm.projectStore.CheckHealth(ctx)
			health := lm.projectGateway.HealthCheck(ctx)
			cancel()

			lm.wsHub.Broadcast(websocket.NewMessage(
				websocket.MessageTypeBackendHealth,
				websocket.BackendHealthData{
					Status:       health.Status,
					ResponseTime: health.ResponseTime.String(),
				}))
		case <-lm.shutdownChan:
			return
		}
	}
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		lm.broadcastStatus()

		close(lm.shutdownChan)
		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		lm.broadcastStatus()
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. Stop a running simulation so no tick fires during teardown
	lm.stepper.Stop()

	// 2. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// Wait for all shutdowns
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lm.storage.Close()
		lm.logger.Info("Graceful shutdown completed")
		return nil
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub, lm.authService)
	return lm.restServer.Start()
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	if err := ValidateTransition(lm.currentState, state); err != nil && lm.currentState != state {
		lm.logger.Warn("Forcing state transition", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = StateError
	lm.lastError = err.Error()
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return interfaces.SystemStatus{
		State:            lm.currentState.String(),
		CurrentProjectID: lm.projectStore.CurrentProjectID(),
		ProjectCount:     len(lm.projectStore.Projects()),
		SimulationState:  string(lm.stepper.Status().State),
		BackendOnline:    lm.projectStore.Online(),
	}
}

func (lm *LifecycleManager) getStatusInternal() SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return SystemStatus{
		State:     lm.currentState,
		Timestamp: time.Now().Unix(),
		Error:     lm.lastError,
	}
}

func (lm *LifecycleManager) broadcastStatus() {
	status := lm.getStatusInternal()

	lm.listenersMu.RLock()
	defer lm.listenersMu.RUnlock()

	for _, listener := range lm.statusListeners {
		select {
		case listener <- status:
		default:
			// Channel full, skip
		}
	}
}

// SubscribeStatus subscribes to status updates
func (lm *LifecycleManager) SubscribeStatus() chan SystemStatus {
	ch := make(chan SystemStatus, 10)

	lm.listenersMu.Lock()
	lm.statusListeners = append(lm.statusListeners, ch)
	lm.listenersMu.Unlock()

	return ch
}

// UnsubscribeStatus unsubscribes from status updates
func (lm *LifecycleManager) UnsubscribeStatus(ch chan SystemStatus) {
	lm.listenersMu.Lock()
	defer lm.listenersMu.Unlock()

	for i, listener := range lm.statusListeners {
		if listener == ch {
			lm.statusListeners = append(lm.statusListeners[:i], lm.statusListeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Storage returns the storage client
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.storage
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

// Gateway returns the project persistence gateway
func (lm *LifecycleManager) Gateway() *gateway.Gateway {
	return lm.projectGateway
}

// Store returns the designer session store
func (lm *LifecycleManager) Store() *store.Store {
	return lm.projectStore
}

// Stepper returns the simulation stepper
func (lm *LifecycleManager) Stepper() *simulation.Stepper {
	return lm.stepper
}
