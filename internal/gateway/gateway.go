package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/openfactory/designcore/internal/materialize"
	"github.com/openfactory/designcore/internal/types"
	"github.com/openfactory/designcore/internal/validation"
	"go.uber.org/zap"
)

// Backend is the required surface of the external relational service. The
// Postgres client implements it; tests substitute fakes.
type Backend interface {
	ListProjects(ctx context.Context, ownerID string) ([]materialize.ProjectRow, error)
	GetProjectDetail(ctx context.Context, projectID string) (*materialize.ProjectDetail, error)
	SaveProjectTransaction(ctx context.Context, detail *materialize.ProjectDetail) error
	GetProjectOwner(ctx context.Context, projectID string) (string, error)
	DeleteProject(ctx context.Context, projectID, ownerID string) (bool, error)
	Ping(ctx context.Context) error
}

// IdentityProvider resolves the acting user. Returning (nil, nil) means no
// authenticated user; the gateway turns that into a ValidationError.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*types.User, error)
}

// Gateway mediates every read and write between the project store and the
// backing relational service: it validates before writing, retries with
// backoff, classifies failures, and scopes all access by the acting user.
type Gateway struct {
	backend  Backend
	identity IdentityProvider
	retry    RetryPolicy
	logger   *zap.Logger
}

func New(backend Backend, identity IdentityProvider, retry RetryPolicy, logger *zap.Logger) *Gateway {
	return &Gateway{
		backend:  backend,
		identity: identity,
		retry:    retry,
		logger:   logger,
	}
}

func (g *Gateway) currentUserID(ctx context.Context) (string, error) {
	user, err := g.identity.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return "", types.NewValidationError("", "user is not authenticated")
	}
	return user.ID, nil
}

// CurrentUser returns the acting user, or nil when unauthenticated.
func (g *Gateway) CurrentUser(ctx context.Context) (*types.User, error) {
	return g.identity.CurrentUser(ctx)
}

// List returns all projects owned by the acting user as full aggregates,
// newest update first.
func (g *Gateway) List(ctx context.Context) ([]*types.ProjectConfig, error) {
	ownerID, err := g.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var rows []materialize.ProjectRow
	err = g.retry.Execute(ctx, g.logger, "listProjects", func(ctx context.Context) error {
		var listErr error
		rows, listErr = g.backend.ListProjects(ctx, ownerID)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	projects := make([]*types.ProjectConfig, 0, len(rows))
	for _, row := range rows {
		var detail *materialize.ProjectDetail
		err := g.retry.Execute(ctx, g.logger, "getProject", func(ctx context.Context) error {
			var getErr error
			detail, getErr = g.backend.GetProjectDetail(ctx, row.ID)
			return getErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load project %s: %w", row.ID, err)
		}
		if detail == nil {
			continue // deleted between list and detail fetch
		}
		projects = append(projects, materialize.Reconstitute(detail))
	}

	return projects, nil
}

// Get loads one project by id. Returns (nil, nil) when it does not exist.
func (g *Gateway) Get(ctx context.Context, projectID string) (*types.ProjectConfig, error) {
	var detail *materialize.ProjectDetail
	err := g.retry.Execute(ctx, g.logger, "getProject", func(ctx context.Context) error {
		var getErr error
		detail, getErr = g.backend.GetProjectDetail(ctx, projectID)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, nil
	}
	return materialize.Reconstitute(detail), nil
}

// Save validates the aggregate, verifies that an existing project with the
// same id belongs to the acting user, flattens it, and submits it as one
// atomic transaction. On success the project is re-fetched from the store: the
// server, not the client, is the source of truth immediately after a save.
func (g *Gateway) Save(ctx context.Context, project *types.ProjectConfig) (*types.ProjectConfig, error) {
	if err := validation.ValidateProject(project); err != nil {
		return nil, err
	}

	ownerID, err := g.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	detail := materialize.Flatten(project, ownerID)

	err = g.retry.Execute(ctx, g.logger, "saveProject", func(ctx context.Context) error {
		actualOwner, ownerErr := g.backend.GetProjectOwner(ctx, project.ID)
		if ownerErr != nil {
			return ownerErr
		}
		if actualOwner != "" && actualOwner != ownerID {
			return types.NewValidationError("", "project is owned by another user")
		}
		return g.backend.SaveProjectTransaction(ctx, detail)
	})
	if err != nil {
		return nil, err
	}

	var saved *materialize.ProjectDetail
	err = g.retry.Execute(ctx, g.logger, "reloadProject", func(ctx context.Context) error {
		var getErr error
		saved, getErr = g.backend.GetProjectDetail(ctx, project.ID)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("saved project %s disappeared on reload", project.ID)
	}

	g.logger.Info("Project saved",
		zap.String("project_id", project.ID),
		zap.Int("io_configs", len(detail.IORows)),
		zap.Int("axis_configs", len(detail.AxisRows)),
		zap.Int("station_configs", len(detail.StationRows)),
		zap.Int("task_configs", len(detail.TaskRows)))

	return materialize.Reconstitute(saved), nil
}

// Delete removes a project after verifying the acting user owns it. A
// missing project yields (false, nil); an ownership mismatch is a
// ValidationError, not a silent no-op.
func (g *Gateway) Delete(ctx context.Context, projectID string) (bool, error) {
	ownerID, err := g.currentUserID(ctx)
	if err != nil {
		return false, err
	}

	var deleted bool
	err = g.retry.Execute(ctx, g.logger, "deleteProject", func(ctx context.Context) error {
		actualOwner, ownerErr := g.backend.GetProjectOwner(ctx, projectID)
		if ownerErr != nil {
			return ownerErr
		}
		if actualOwner == "" {
			deleted = false
			return nil
		}
		if actualOwner != ownerID {
			return types.NewValidationError("", "project is owned by another user")
		}

		var delErr error
		deleted, delErr = g.backend.DeleteProject(ctx, projectID, ownerID)
		return delErr
	})
	if err != nil {
		return false, err
	}

	if deleted {
		g.logger.Info("Project deleted", zap.String("project_id", projectID))
	}
	return deleted, nil
}

// HealthStatus is the gateway's two-state backend verdict.
type HealthStatus struct {
	Status       string        `json:"status"` // "healthy" | "unhealthy"
	ResponseTime time.Duration `json:"response_time"`
	Detail       string        `json:"detail,omitempty"`
}

func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// HealthCheck issues a cheap read and measures the round trip. It never
// returns an error; unreachability is a verdict, not a failure.
func (g *Gateway) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	err := g.backend.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return HealthStatus{
			Status:       "unhealthy",
			ResponseTime: elapsed,
			Detail:       err.Error(),
		}
	}
	return HealthStatus{
		Status:       "healthy",
		ResponseTime: elapsed,
	}
}
