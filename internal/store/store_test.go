package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfactory/designcore/internal/gateway"
	"github.com/openfactory/designcore/internal/types"
)

// fakeGateway is an in-memory ProjectGateway. saveGate, when set, blocks Save
// until released so tests can hold a save in flight.
type fakeGateway struct {
	mu        sync.Mutex
	projects  map[string]*types.ProjectConfig
	saveCalls int
	saveErr   error
	getErr    error
	deleteErr error
	healthy   bool
	saveGate  chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{projects: make(map[string]*types.ProjectConfig), healthy: true}
}

func (f *fakeGateway) List(ctx context.Context) ([]*types.ProjectConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.ProjectConfig, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (f *fakeGateway) Get(ctx context.Context, projectID string) (*types.ProjectConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.projects[projectID]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (f *fakeGateway) Save(ctx context.Context, project *types.ProjectConfig) (*types.ProjectConfig, error) {
	f.mu.Lock()
	gate := f.saveGate
	f.saveCalls++
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.projects[project.ID] = project.Clone()
	return project.Clone(), nil
}

func (f *fakeGateway) Delete(ctx context.Context, projectID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	if _, ok := f.projects[projectID]; !ok {
		return false, nil
	}
	delete(f.projects, projectID)
	return true, nil
}

func (f *fakeGateway) HealthCheck(ctx context.Context) gateway.HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return gateway.HealthStatus{Status: "unhealthy", Detail: "connection refused"}
	}
	return gateway.HealthStatus{Status: "healthy"}
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

func newTestStore(gw ProjectGateway) *Store {
	return New(gw, zap.NewNop())
}

func TestNewDefaultProject(t *testing.T) {
	p := NewDefaultProject()
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "New Project", p.Name)
	assert.Equal(t, "1.0.0", p.Version)
	assert.Empty(t, p.IOConfigs)
	assert.Empty(t, p.TaskConfigs)

	// Ids must be unique across calls.
	assert.NotEqual(t, p.ID, NewDefaultProject().ID)
}

func TestProjectReturnsSnapshot(t *testing.T) {
	s := newTestStore(newFakeGateway())

	snapshot := s.Project()
	snapshot.Name = "mutated"

	assert.Equal(t, "New Project", s.Project().Name)
}

func TestCollectionMutationsStampUpdatedAt(t *testing.T) {
	s := newTestStore(newFakeGateway())
	before := s.Project().UpdatedAt

	time.Sleep(2 * time.Millisecond)
	s.AddIOConfig(types.IOConfig{ID: "io-1", Name: "Sensor", Type: types.IOTypeDI, Address: "DI0.0"})

	after := s.Project()
	require.Len(t, after.IOConfigs, 1)
	assert.True(t, after.UpdatedAt.After(before))
}

func TestUpdateAndDeleteByID(t *testing.T) {
	s := newTestStore(newFakeGateway())
	s.AddAxisConfig(types.AxisConfig{ID: "axis-1", Name: "X1", Type: types.AxisTypeX, MaxSpeed: 100, Acceleration: 10, Deceleration: 10})
	s.AddAxisConfig(types.AxisConfig{ID: "axis-2", Name: "Y1", Type: types.AxisTypeY, MaxSpeed: 100, Acceleration: 10, Deceleration: 10})

	// Update replaces by id; the id in the payload cannot hijack another entry.
	s.UpdateAxisConfig("axis-1", types.AxisConfig{ID: "other", Name: "X1 fast", Type: types.AxisTypeX, MaxSpeed: 200, Acceleration: 20, Deceleration: 20})
	p := s.Project()
	require.Len(t, p.AxisConfigs, 2)
	assert.Equal(t, "axis-1", p.AxisConfigs[0].ID)
	assert.Equal(t, "X1 fast", p.AxisConfigs[0].Name)

	// Unknown ids are a no-op.
	s.UpdateAxisConfig("nope", types.AxisConfig{Name: "ghost"})
	s.DeleteAxisConfig("nope")
	assert.Len(t, s.Project().AxisConfigs, 2)

	s.DeleteAxisConfig("axis-1")
	p = s.Project()
	require.Len(t, p.AxisConfigs, 1)
	assert.Equal(t, "axis-2", p.AxisConfigs[0].ID)
}

func TestSaveProjectRoundTrip(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)
	s.UpdateProjectMeta("Line 1", "", "")

	s.SaveProject(context.Background())

	assert.Equal(t, 1, gw.callCount())
	assert.Empty(t, s.Error())
	assert.Equal(t, "Project saved", s.Success())
	assert.Equal(t, s.Project().ID, s.CurrentProjectID())
	assert.False(t, s.IsSaving())
}

func TestSaveProjectRejectsEmptyNameLocally(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)
	s.SetProject(&types.ProjectConfig{ID: "p-1", Name: "", Version: "1.0.0"})

	s.SaveProject(context.Background())

	assert.Equal(t, 0, gw.callCount())
	assert.Equal(t, "project name must not be empty", s.Error())
}

func TestSaveProjectDropsReentrantCalls(t *testing.T) {
	gw := newFakeGateway()
	gw.saveGate = make(chan struct{})
	s := newTestStore(gw)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SaveProject(context.Background())
	}()

	// Wait until the first save is in flight, then hammer it.
	require.Eventually(t, s.IsSaving, time.Second, time.Millisecond)
	s.SaveProject(context.Background())
	s.SaveProject(context.Background())

	close(gw.saveGate)
	wg.Wait()

	assert.Equal(t, 1, gw.callCount())
	assert.Equal(t, "Project saved", s.Success())
}

func TestSaveProjectSurfacesTransactionError(t *testing.T) {
	gw := newFakeGateway()
	gw.saveErr = &types.TransactionError{Operation: "saveProject", Cause: errors.New("connection reset")}
	s := newTestStore(gw)

	s.SaveProject(context.Background())

	assert.Equal(t, "The operation failed after several attempts, please try again", s.Error())
	assert.Empty(t, s.Success())
	assert.False(t, s.IsSaving())
}

func TestLoadProjectReplacesAggregate(t *testing.T) {
	gw := newFakeGateway()
	gw.projects["p-9"] = &types.ProjectConfig{ID: "p-9", Name: "Stored", Version: "2.0.0"}
	s := newTestStore(gw)

	s.LoadProject(context.Background(), "p-9")

	assert.Empty(t, s.Error())
	assert.Equal(t, "p-9", s.CurrentProjectID())
	assert.Equal(t, "Stored", s.Project().Name)
	assert.False(t, s.IsLoading())
}

func TestLoadProjectMissing(t *testing.T) {
	s := newTestStore(newFakeGateway())
	before := s.Project().ID

	s.LoadProject(context.Background(), "nope")

	assert.Equal(t, "Project not found or already deleted", s.Error())
	assert.Equal(t, before, s.Project().ID)
}

func TestCreateNewProject(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)

	s.CreateNewProject(context.Background(), "Line 2")

	assert.Empty(t, s.Error())
	assert.Equal(t, "Project created", s.Success())
	assert.Equal(t, "Line 2", s.Project().Name)
	assert.Equal(t, 1, gw.callCount())
}

func TestCreateNewProjectValidatesName(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)

	s.CreateNewProject(context.Background(), "  ")

	assert.Equal(t, 0, gw.callCount())
	assert.Equal(t, "project name must not be empty", s.Error())
}

func TestDeleteCurrentProjectResetsToDefault(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)
	s.SaveProject(context.Background())
	savedID := s.CurrentProjectID()
	require.NotEmpty(t, savedID)

	s.DeleteProject(context.Background(), savedID)

	assert.Empty(t, s.Error())
	assert.Empty(t, s.CurrentProjectID())
	assert.NotEqual(t, savedID, s.Project().ID)
	assert.Equal(t, "New Project", s.Project().Name)
}

func TestDeleteOtherProjectKeepsCurrent(t *testing.T) {
	gw := newFakeGateway()
	gw.projects["p-other"] = &types.ProjectConfig{ID: "p-other", Name: "Other", Version: "1.0.0"}
	s := newTestStore(gw)
	s.LoadProjects(context.Background())
	require.Len(t, s.Projects(), 1)
	current := s.Project().ID

	s.DeleteProject(context.Background(), "p-other")

	assert.Empty(t, s.Error())
	assert.Equal(t, current, s.Project().ID)
	assert.Empty(t, s.Projects())
}

func TestDeleteMissingProject(t *testing.T) {
	s := newTestStore(newFakeGateway())

	s.DeleteProject(context.Background(), "nope")

	assert.Equal(t, "Failed to delete project", s.Error())
}

func TestCheckHealthDoesNotTouchError(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)
	s.LoadProject(context.Background(), "nope")
	require.NotEmpty(t, s.Error())

	gw.healthy = false
	s.CheckHealth(context.Background())
	assert.False(t, s.Online())
	assert.Equal(t, "Project not found or already deleted", s.Error())

	gw.healthy = true
	s.CheckHealth(context.Background())
	assert.True(t, s.Online())
}

func TestSuccessMessageClearsAfterTTL(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw)
	s.successTTL = 10 * time.Millisecond

	s.SaveProject(context.Background())
	require.Equal(t, "Project saved", s.Success())

	assert.Eventually(t, func() bool { return s.Success() == "" }, time.Second, 5*time.Millisecond)
}
