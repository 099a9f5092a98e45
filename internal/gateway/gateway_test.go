package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfactory/designcore/internal/materialize"
	"github.com/openfactory/designcore/internal/types"
)

type fakeBackend struct {
	details    map[string]*materialize.ProjectDetail
	saveCalls  int
	saveErrs   []error
	detailErrs []error
	pingErr    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{details: make(map[string]*materialize.ProjectDetail)}
}

func (f *fakeBackend) ListProjects(ctx context.Context, ownerID string) ([]materialize.ProjectRow, error) {
	rows := make([]materialize.ProjectRow, 0)
	for _, d := range f.details {
		if d.Project.UserID == ownerID {
			rows = append(rows, d.Project)
		}
	}
	return rows, nil
}

func (f *fakeBackend) GetProjectDetail(ctx context.Context, projectID string) (*materialize.ProjectDetail, error) {
	if len(f.detailErrs) > 0 {
		err := f.detailErrs[0]
		f.detailErrs = f.detailErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.details[projectID], nil
}

func (f *fakeBackend) SaveProjectTransaction(ctx context.Context, detail *materialize.ProjectDetail) error {
	f.saveCalls++
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	// Mirrors the upsert's user_id guard: a conflicting id owned by someone
	// else is rejected, never overwritten.
	if existing, ok := f.details[detail.Project.ID]; ok && existing.Project.UserID != detail.Project.UserID {
		return types.NewValidationError("", "project is owned by another user")
	}
	f.details[detail.Project.ID] = detail
	return nil
}

func (f *fakeBackend) GetProjectOwner(ctx context.Context, projectID string) (string, error) {
	d, ok := f.details[projectID]
	if !ok {
		return "", nil
	}
	return d.Project.UserID, nil
}

func (f *fakeBackend) DeleteProject(ctx context.Context, projectID, ownerID string) (bool, error) {
	d, ok := f.details[projectID]
	if !ok || d.Project.UserID != ownerID {
		return false, nil
	}
	delete(f.details, projectID)
	return true, nil
}

func (f *fakeBackend) Ping(ctx context.Context) error {
	return f.pingErr
}

type fakeIdentity struct {
	user *types.User
}

func (f *fakeIdentity) CurrentUser(ctx context.Context) (*types.User, error) {
	return f.user, nil
}

func testGateway(backend Backend, user *types.User) *Gateway {
	retry := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	return New(backend, &fakeIdentity{user: user}, retry, zap.NewNop())
}

func testProject() *types.ProjectConfig {
	return &types.ProjectConfig{
		ID:      "p-1",
		Name:    "Assembly line",
		Version: "1.0.0",
		IOConfigs: []types.IOConfig{
			{ID: "io-1", Name: "Part sensor", Type: types.IOTypeDI, Address: "DI0.0", Enabled: true},
		},
		TaskConfigs: []types.TaskConfig{
			{ID: "task-1", Name: "Pick", Priority: 1, Enabled: true,
				Sequence: []types.TaskStep{
					{ID: "s0", Type: types.StepTypeWait, Parameters: map[string]any{"durationMs": 100}},
				}},
		},
	}
}

func TestSaveRejectsInvalidProjectBeforeAnyWrite(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})

	project := testProject()
	project.Name = ""

	_, err := g.Save(context.Background(), project)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, backend.saveCalls)
}

func TestSaveRequiresAuthentication(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, nil)

	_, err := g.Save(context.Background(), testProject())
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "not authenticated")
	assert.Equal(t, 0, backend.saveCalls)
}

func TestSaveReturnsServerCopy(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})

	saved, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "p-1", saved.ID)
	assert.Equal(t, "Assembly line", saved.Name)
	require.Len(t, saved.TaskConfigs, 1)
	assert.Equal(t, "s0", saved.TaskConfigs[0].Sequence[0].ID)
	assert.Equal(t, 1, backend.saveCalls)
}

func TestSaveRetriesTransientBackendFailures(t *testing.T) {
	backend := newFakeBackend()
	backend.saveErrs = []error{errors.New("connection reset"), errors.New("connection reset")}
	g := testGateway(backend, &types.User{ID: "user-1"})

	saved, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)
	assert.NotNil(t, saved)
	assert.Equal(t, 3, backend.saveCalls)
}

func TestSaveWrapsExhaustedRetries(t *testing.T) {
	backend := newFakeBackend()
	cause := errors.New("connection reset")
	backend.saveErrs = []error{cause, cause, cause}
	g := testGateway(backend, &types.User{ID: "user-1"})

	_, err := g.Save(context.Background(), testProject())
	var txErr *types.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "saveProject", txErr.Operation)
	assert.Equal(t, 3, backend.saveCalls)
}

func TestSaveRejectsForeignProject(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})
	_, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)

	takeover := testProject()
	takeover.Name = "Production takeover"
	other := testGateway(backend, &types.User{ID: "user-2"})
	_, err = other.Save(context.Background(), takeover)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "owned by another user")
	assert.Equal(t, 1, backend.saveCalls)

	// The owner's content is untouched.
	project, err := g.Get(context.Background(), "p-1")
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, "Assembly line", project.Name)
	assert.Equal(t, "user-1", backend.details["p-1"].Project.UserID)
}

func TestSaveRetriesReloadAfterCommit(t *testing.T) {
	backend := newFakeBackend()
	backend.detailErrs = []error{errors.New("connection reset")}
	g := testGateway(backend, &types.User{ID: "user-1"})

	saved, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "p-1", saved.ID)
	assert.Equal(t, 1, backend.saveCalls)
}

func TestListRetriesDetailFetch(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})
	_, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)

	backend.detailErrs = []error{errors.New("connection reset")}
	projects, err := g.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestGetMissingProjectIsNilNil(t *testing.T) {
	g := testGateway(newFakeBackend(), &types.User{ID: "user-1"})

	project, err := g.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, project)
}

func TestDeleteMissingProjectIsFalseNil(t *testing.T) {
	g := testGateway(newFakeBackend(), &types.User{ID: "user-1"})

	deleted, err := g.Delete(context.Background(), "nope")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteRejectsForeignProject(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})
	_, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)

	other := testGateway(backend, &types.User{ID: "user-2"})
	deleted, err := other.Delete(context.Background(), "p-1")
	assert.False(t, deleted)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "owned by another user")

	// The project is still there for its owner.
	project, err := g.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.NotNil(t, project)
}

func TestDeleteOwnProject(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})
	_, err := g.Save(context.Background(), testProject())
	require.NoError(t, err)

	deleted, err := g.Delete(context.Background(), "p-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	project, err := g.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Nil(t, project)
}

func TestListScopesByOwner(t *testing.T) {
	backend := newFakeBackend()
	g1 := testGateway(backend, &types.User{ID: "user-1"})
	g2 := testGateway(backend, &types.User{ID: "user-2"})

	_, err := g1.Save(context.Background(), testProject())
	require.NoError(t, err)

	mine, err := g1.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := g2.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestHealthCheckVerdicts(t *testing.T) {
	backend := newFakeBackend()
	g := testGateway(backend, &types.User{ID: "user-1"})

	status := g.HealthCheck(context.Background())
	assert.True(t, status.Healthy())
	assert.Equal(t, "healthy", status.Status)

	backend.pingErr = errors.New("connection refused")
	status = g.HealthCheck(context.Background())
	assert.False(t, status.Healthy())
	assert.Contains(t, status.Detail, "connection refused")
}
