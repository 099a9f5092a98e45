package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openfactory/designcore/internal/gateway"
	"github.com/openfactory/designcore/internal/types"
	"github.com/openfactory/designcore/internal/validation"
	"go.uber.org/zap"
)

const successMessageTTL = 3 * time.Second

// ProjectGateway is the slice of the persistence gateway the store depends
// on; tests substitute fakes.
type ProjectGateway interface {
	List(ctx context.Context) ([]*types.ProjectConfig, error)
	Get(ctx context.Context, projectID string) (*types.ProjectConfig, error)
	Save(ctx context.Context, project *types.ProjectConfig) (*types.ProjectConfig, error)
	Delete(ctx context.Context, projectID string) (bool, error)
	HealthCheck(ctx context.Context) gateway.HealthStatus
}

// Store owns the single authoritative in-memory project aggregate. All
// collection mutations are synchronous local transforms; the network is only
// touched on the explicit load/save/delete operations, each guarded against
// re-entrant calls by the isLoading/isSaving flags. Errors never escape: they
// land in the error field together with a cleared busy flag.
type Store struct {
	gateway ProjectGateway
	logger  *zap.Logger

	mu               sync.Mutex
	project          *types.ProjectConfig
	projects         []*types.ProjectConfig
	currentProjectID string
	isLoading        bool
	isSaving         bool
	errMsg           string
	successMsg       string
	online           bool

	successTimer *time.Timer
	successTTL   time.Duration
}

func New(gw ProjectGateway, logger *zap.Logger) *Store {
	return &Store{
		gateway:    gw,
		logger:     logger,
		project:    NewDefaultProject(),
		projects:   make([]*types.ProjectConfig, 0),
		online:     true,
		successTTL: successMessageTTL,
	}
}

// NewDefaultProject builds the fresh "new project" aggregate the store starts
// with and resets to. Ids are generated client side so optimistic creation
// needs no round trip.
func NewDefaultProject() *types.ProjectConfig {
	now := time.Now()
	return &types.ProjectConfig{
		ID:             uuid.NewString(),
		Name:           "New Project",
		Version:        "1.0.0",
		CreatedAt:      now,
		UpdatedAt:      now,
		IOConfigs:      []types.IOConfig{},
		AxisConfigs:    []types.AxisConfig{},
		StationConfigs: []types.StationConfig{},
		TaskConfigs:    []types.TaskConfig{},
	}
}

// ---- snapshot accessors ----

// Project returns a deep copy of the current aggregate.
func (s *Store) Project() *types.ProjectConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Clone()
}

func (s *Store) Projects() []*types.ProjectConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.ProjectConfig, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.Clone()
	}
	return out
}

func (s *Store) CurrentProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentProjectID
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

func (s *Store) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSaving
}

func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Store) Success() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successMsg
}

// Online reports the last health-check verdict. It is distinct from the
// error field so the UI can tell "this action failed" from "the backend is
// unreachable".
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

func (s *Store) ClearSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successMsg = ""
}

// ---- project-level mutations ----

// SetProject replaces the aggregate wholesale, e.g. after an import.
func (s *Store) SetProject(project *types.ProjectConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = project.Clone()
	s.currentProjectID = project.ID
	s.errMsg = ""
	s.successMsg = ""
}

// UpdateProjectMeta changes name/description/version of the current project.
func (s *Store) UpdateProjectMeta(name, description, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.project.Name = name
	}
	s.project.Description = description
	if version != "" {
		s.project.Version = version
	}
	s.touch()
	s.errMsg = ""
	s.successMsg = ""
}

// touch stamps the aggregate's update time. Callers hold s.mu.
func (s *Store) touch() {
	s.project.UpdatedAt = time.Now()
}

// ---- IO collection ----

func (s *Store) AddIOConfig(cfg types.IOConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.IOConfigs = append(s.project.IOConfigs, cfg)
	s.touch()
}

func (s *Store) UpdateIOConfig(id string, cfg types.IOConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.IOConfigs {
		if s.project.IOConfigs[i].ID == id {
			cfg.ID = id
			s.project.IOConfigs[i] = cfg
			s.touch()
			return
		}
	}
}

func (s *Store) DeleteIOConfig(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.IOConfigs {
		if s.project.IOConfigs[i].ID == id {
			s.project.IOConfigs = append(s.project.IOConfigs[:i], s.project.IOConfigs[i+1:]...)
			s.touch()
			return
		}
	}
}

// ---- axis collection ----

func (s *Store) AddAxisConfig(cfg types.AxisConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.AxisConfigs = append(s.project.AxisConfigs, cfg)
	s.touch()
}

func (s *Store) UpdateAxisConfig(id string, cfg types.AxisConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.AxisConfigs {
		if s.project.AxisConfigs[i].ID == id {
			cfg.ID = id
			s.project.AxisConfigs[i] = cfg
			s.touch()
			return
		}
	}
}

func (s *Store) DeleteAxisConfig(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.AxisConfigs {
		if s.project.AxisConfigs[i].ID == id {
			s.project.AxisConfigs = append(s.project.AxisConfigs[:i], s.project.AxisConfigs[i+1:]...)
			s.touch()
			return
		}
	}
}

// ---- station collection ----

func (s *Store) AddStationConfig(cfg types.StationConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.StationConfigs = append(s.project.StationConfigs, cfg)
	s.touch()
}

func (s *Store) UpdateStationConfig(id string, cfg types.StationConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.StationConfigs {
		if s.project.StationConfigs[i].ID == id {
			cfg.ID = id
			s.project.StationConfigs[i] = cfg
			s.touch()
			return
		}
	}
}

func (s *Store) DeleteStationConfig(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.StationConfigs {
		if s.project.StationConfigs[i].ID == id {
			s.project.StationConfigs = append(s.project.StationConfigs[:i], s.project.StationConfigs[i+1:]...)
			s.touch()
			return
		}
	}
}

// ---- task collection ----

func (s *Store) AddTaskConfig(cfg types.TaskConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.TaskConfigs = append(s.project.TaskConfigs, cfg)
	s.touch()
}

func (s *Store) UpdateTaskConfig(id string, cfg types.TaskConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.TaskConfigs {
		if s.project.TaskConfigs[i].ID == id {
			cfg.ID = id
			s.project.TaskConfigs[i] = cfg
			s.touch()
			return
		}
	}
}

func (s *Store) DeleteTaskConfig(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.project.TaskConfigs {
		if s.project.TaskConfigs[i].ID == id {
			s.project.TaskConfigs = append(s.project.TaskConfigs[:i], s.project.TaskConfigs[i+1:]...)
			s.touch()
			return
		}
	}
}

// ---- network operations ----

// LoadProject replaces the aggregate with the stored copy of the given
// project. A second call while one is in flight is a no-op.
func (s *Store) LoadProject(ctx context.Context, id string) {
	s.mu.Lock()
	if s.isLoading {
		s.mu.Unlock()
		return
	}
	s.isLoading = true
	s.errMsg = ""
	s.successMsg = ""
	s.mu.Unlock()

	project, err := s.gateway.Get(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = false
	if err != nil {
		s.errMsg = MessageFor(err)
		s.logger.Error("Failed to load project", zap.String("project_id", id), zap.Error(err))
		return
	}
	if project == nil {
		s.errMsg = "Project not found or already deleted"
		return
	}
	s.project = project
	s.currentProjectID = id
}

// SaveProject pushes the current aggregate through the gateway and replaces
// the cache with the server-confirmed copy. Re-entrant calls while a save is
// pending are dropped, so back-to-back invocations produce exactly one
// transaction.
func (s *Store) SaveProject(ctx context.Context) {
	s.mu.Lock()
	if s.isSaving {
		s.mu.Unlock()
		return
	}
	// Defense in depth: the gateway validates the full aggregate, but a
	// nameless project should not even start a network call.
	if err := validation.ValidateProjectName(s.project.Name); err != nil {
		s.errMsg = MessageFor(err)
		s.mu.Unlock()
		return
	}
	s.isSaving = true
	s.errMsg = ""
	snapshot := s.project.Clone()
	s.mu.Unlock()

	saved, err := s.gateway.Save(ctx, snapshot)

	s.mu.Lock()
	s.isSaving = false
	if err != nil {
		s.errMsg = MessageFor(err)
		s.successMsg = ""
		s.mu.Unlock()
		s.logger.Error("Failed to save project", zap.String("project_id", snapshot.ID), zap.Error(err))
		return
	}
	s.project = saved
	s.currentProjectID = saved.ID
	s.errMsg = ""
	s.successMsg = "Project saved"
	s.scheduleSuccessClear()
	s.mu.Unlock()

	// Refresh the project list in the background to reflect the save.
	go s.LoadProjects(context.WithoutCancel(ctx))
}

// CreateNewProject saves a fresh aggregate under the given name and makes it
// current.
func (s *Store) CreateNewProject(ctx context.Context, name string) {
	s.mu.Lock()
	if s.isLoading {
		s.mu.Unlock()
		return
	}
	if err := validation.ValidateProjectName(name); err != nil {
		s.errMsg = MessageFor(err)
		s.mu.Unlock()
		return
	}
	s.isLoading = true
	s.errMsg = ""
	s.mu.Unlock()

	project := NewDefaultProject()
	project.Name = name

	saved, err := s.gateway.Save(ctx, project)

	s.mu.Lock()
	s.isLoading = false
	if err != nil {
		s.errMsg = MessageFor(err)
		s.successMsg = ""
		s.mu.Unlock()
		s.logger.Error("Failed to create project", zap.String("name", name), zap.Error(err))
		return
	}
	s.project = saved
	s.currentProjectID = saved.ID
	s.errMsg = ""
	s.successMsg = "Project created"
	s.scheduleSuccessClear()
	s.mu.Unlock()

	go s.LoadProjects(context.WithoutCancel(ctx))
}

// DeleteProject removes a project. Deleting the currently loaded project
// resets the store to a fresh default aggregate so the UI never points at a
// dead id.
func (s *Store) DeleteProject(ctx context.Context, id string) {
	s.mu.Lock()
	if s.isLoading {
		s.mu.Unlock()
		return
	}
	s.isLoading = true
	s.errMsg = ""
	s.mu.Unlock()

	deleted, err := s.gateway.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = false
	if err != nil {
		s.errMsg = MessageFor(err)
		s.logger.Error("Failed to delete project", zap.String("project_id", id), zap.Error(err))
		return
	}
	if !deleted {
		s.errMsg = "Failed to delete project"
		return
	}

	if id == s.currentProjectID {
		s.project = NewDefaultProject()
		s.currentProjectID = ""
	}
	kept := s.projects[:0]
	for _, p := range s.projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.projects = kept
}

// LoadProjects refreshes the user's project list, newest update first.
func (s *Store) LoadProjects(ctx context.Context) {
	projects, err := s.gateway.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = MessageFor(err)
		s.logger.Error("Failed to load projects", zap.Error(err))
		return
	}
	s.projects = projects
}

// CheckHealth flips the online flag from the gateway's verdict without
// touching the operation-level error field.
func (s *Store) CheckHealth(ctx context.Context) {
	status := s.gateway.HealthCheck(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = status.Healthy()
	if !status.Healthy() {
		s.logger.Warn("Backend health check failed",
			zap.String("detail", status.Detail),
			zap.Duration("response_time", status.ResponseTime))
	}
}

// scheduleSuccessClear arms the timed clear of the transient success message.
// Callers hold s.mu.
func (s *Store) scheduleSuccessClear() {
	if s.successTimer != nil {
		s.successTimer.Stop()
	}
	s.successTimer = time.AfterFunc(s.successTTL, func() {
		s.mu.Lock()
		s.successMsg = ""
		s.mu.Unlock()
	})
}
