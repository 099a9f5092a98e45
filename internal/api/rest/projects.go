package rest

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openfactory/designcore/internal/api/websocket"
	"github.com/openfactory/designcore/internal/types"
	"github.com/openfactory/designcore/internal/validation"
)

// StoreState mirrors the designer session for clients: the current aggregate,
// the known project list and the store's transient flags.
type StoreState struct {
	Project          *types.ProjectConfig   `json:"project"`
	Projects         []*types.ProjectConfig `json:"projects"`
	CurrentProjectID string                 `json:"current_project_id,omitempty"`
	IsLoading        bool                   `json:"is_loading"`
	IsSaving         bool                   `json:"is_saving"`
	Error            string                 `json:"error,omitempty"`
	Success          string                 `json:"success,omitempty"`
	BackendOnline    bool                   `json:"backend_online"`
}

func (s *Server) storeState() StoreState {
	st := s.lm.Store()
	return StoreState{
		Project:          st.Project(),
		Projects:         st.Projects(),
		CurrentProjectID: st.CurrentProjectID(),
		IsLoading:        st.IsLoading(),
		IsSaving:         st.IsSaving(),
		Error:            st.Error(),
		Success:          st.Success(),
		BackendOnline:    st.Online(),
	}
}

// respondState reports the store snapshot. Store operations surface failures
// as presentation messages, so a non-empty error downgrades the status code.
func (s *Server) respondState(c *gin.Context) {
	state := s.storeState()
	status := http.StatusOK
	if state.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, state)
}

// GET /api/v1/projects
func (s *Server) listProjects(c *gin.Context) {
	s.lm.Store().LoadProjects(c.Request.Context())
	s.respondState(c)
}

// POST /api/v1/projects
func (s *Server) createProject(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PROJECT_400", "Invalid request body", err.Error()))
		return
	}

	s.lm.Store().CreateNewProject(c.Request.Context(), req.Name)
	s.respondState(c)
}

// POST /api/v1/projects/:id/load
func (s *Server) loadProject(c *gin.Context) {
	st := s.lm.Store()
	st.LoadProject(c.Request.Context(), c.Param("id"))
	if st.Error() == "" {
		s.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeProjectLoaded, websocket.ProjectData{
			ProjectID: st.CurrentProjectID(),
			Name:      st.Project().Name,
		}))
	}
	s.respondState(c)
}

// POST /api/v1/projects/save
func (s *Server) saveProject(c *gin.Context) {
	st := s.lm.Store()
	st.SaveProject(c.Request.Context())
	if st.Error() == "" {
		s.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeProjectSaved, websocket.ProjectData{
			ProjectID: st.CurrentProjectID(),
			Name:      st.Project().Name,
		}))
	}
	s.respondState(c)
}

// DELETE /api/v1/projects/:id
func (s *Server) deleteProject(c *gin.Context) {
	id := c.Param("id")
	st := s.lm.Store()
	st.DeleteProject(c.Request.Context(), id)
	if st.Error() == "" {
		s.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeProjectDeleted, websocket.ProjectData{
			ProjectID: id,
		}))
	}
	s.respondState(c)
}

// GET /api/v1/projects/current
func (s *Server) getCurrentProject(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// PATCH /api/v1/projects/current/meta
func (s *Server) updateProjectMeta(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Version     string `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PROJECT_400", "Invalid request body", err.Error()))
		return
	}

	s.lm.Store().UpdateProjectMeta(req.Name, req.Description, req.Version)
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// GET /api/v1/projects/current/export
func (s *Server) exportProject(c *gin.Context) {
	data, err := s.exporter.Marshal(s.lm.Store().Project())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("EXPORT_500", "Failed to export project", err.Error()))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=project-export.json")
	c.Data(http.StatusOK, "application/json", data)
}

// POST /api/v1/projects/import
func (s *Server) importProject(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IMPORT_400", "Failed to read request body", err.Error()))
		return
	}

	project, err := s.exporter.Unmarshal(data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("IMPORT_422", "Invalid project document", err.Error()))
		return
	}

	s.lm.Store().SetProject(project)
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// Collection mutations. Each add/update validates the single config up front
// so clients get a field-level error instead of a deferred save failure.

// POST /api/v1/projects/current/io-configs
func (s *Server) addIOConfig(c *gin.Context) {
	var cfg types.IOConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IO_400", "Invalid request body", err.Error()))
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := validation.ValidateIOConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IO_400", "Invalid IO config", err.Error()))
		return
	}

	s.lm.Store().AddIOConfig(cfg)
	c.JSON(http.StatusCreated, gin.H{"project": s.lm.Store().Project()})
}

// PUT /api/v1/projects/current/io-configs/:id
func (s *Server) updateIOConfig(c *gin.Context) {
	var cfg types.IOConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IO_400", "Invalid request body", err.Error()))
		return
	}
	cfg.ID = c.Param("id")
	if err := validation.ValidateIOConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IO_400", "Invalid IO config", err.Error()))
		return
	}

	s.lm.Store().UpdateIOConfig(cfg.ID, cfg)
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// DELETE /api/v1/projects/current/io-configs/:id
func (s *Server) deleteIOConfig(c *gin.Context) {
	s.lm.Store().DeleteIOConfig(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// POST /api/v1/projects/current/axis-configs
func (s *Server) addAxisConfig(c *gin.Context) {
	var cfg types.AxisConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("AXIS_400", "Invalid request body", err.Error()))
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := validation.ValidateAxisConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("AXIS_400", "Invalid axis config", err.Error()))
		return
	}

	s.lm.Store().AddAxisConfig(cfg)
	c.JSON(http.StatusCreated, gin.H{"project": s.lm.Store().Project()})
}

// PUT /api/v1/projects/current/axis-configs/:id
func (s *Server) updateAxisConfig(c *gin.Context) {
	var cfg types.AxisConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("AXIS_400", "Invalid request body", err.Error()))
		return
	}
	cfg.ID = c.Param("id")
	if err := validation.ValidateAxisConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("AXIS_400", "Invalid axis config", err.Error()))
		return
	}

	s.lm.Store().UpdateAxisConfig(cfg.ID, cfg)
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// DELETE /api/v1/projects/current/axis-configs/:id
func (s *Server) deleteAxisConfig(c *gin.Context) {
	s.lm.Store().DeleteAxisConfig(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// POST /api/v1/projects/current/station-configs
func (s *Server) addStationConfig(c *gin.Context) {
	var cfg types.StationConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STATION_400", "Invalid request body", err.Error()))
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := validation.ValidateStationConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STATION_400", "Invalid station config", err.Error()))
		return
	}

	s.lm.Store().AddStationConfig(cfg)
	c.JSON(http.StatusCreated, gin.H{"project": s.lm.Store().Project()})
}

// PUT /api/v1/projects/current/station-configs/:id
func (s *Server) updateStationConfig(c *gin.Context) {
	var cfg types.StationConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STATION_400", "Invalid request body", err.Error()))
		return
	}
	cfg.ID = c.Param("id")
	if err := validation.ValidateStationConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STATION_400", "Invalid station config", err.Error()))
		return
	}

	s.lm.Store().UpdateStationConfig(cfg.ID, cfg)
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// DELETE /api/v1/projects/current/station-configs/:id
func (s *Server) deleteStationConfig(c *gin.Context) {
	s.lm.Store().DeleteStationConfig(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// POST /api/v1/projects/current/task-configs
func (s *Server) addTaskConfig(c *gin.Context) {
	var cfg types.TaskConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TASK_400", "Invalid request body", err.Error()))
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := validation.ValidateTaskConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TASK_400", "Invalid task config", err.Error()))
		return
	}

	s.lm.Store().AddTaskConfig(cfg)
	c.JSON(http.StatusCreated, gin.H{"project": s.lm.Store().Project()})
}

// PUT /api/v1/projects/current/task-configs/:id
func (s *Server) updateTaskConfig(c *gin.Context) {
	var cfg types.TaskConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TASK_400", "Invalid request body", err.Error()))
		return
	}
	cfg.ID = c.Param("id")
	if err := validation.ValidateTaskConfig(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TASK_400", "Invalid task config", err.Error()))
		return
	}

	s.lm.Store().UpdateTaskConfig(cfg.ID, cfg)
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}

// DELETE /api/v1/projects/current/task-configs/:id
func (s *Server) deleteTaskConfig(c *gin.Context) {
	s.lm.Store().DeleteTaskConfig(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"project": s.lm.Store().Project()})
}
