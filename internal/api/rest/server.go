package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openfactory/designcore/internal/api/websocket"
	"github.com/openfactory/designcore/internal/auth"
	"github.com/openfactory/designcore/internal/config"
	"github.com/openfactory/designcore/internal/export"
	"github.com/openfactory/designcore/internal/interfaces"
)

type Server struct {
	router      *gin.Engine
	lm          interfaces.LifecycleManager
	logger      *zap.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
	exporter    *export.Exporter
	accessTTL   time.Duration
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, authService *auth.AuthService) *Server {
	gin.SetMode(gin.ReleaseMode)

	exporter, err := export.NewExporter()
	if err != nil {
		// The schema is embedded; a compile failure here is a packaging bug.
		logger.Fatal("failed to build project exporter", zap.Error(err))
	}

	s := &Server{
		router:      gin.Default(),
		lm:          lm,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
		exporter:    exporter,
		accessTTL:   cfg.Auth.AccessTokenTTL,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ENDPOINTS (PUBLIC) ====================
		authPublic := v1.Group("/auth")
		{
			authPublic.POST("/register", s.register)
			authPublic.POST("/login", s.login)
			authPublic.POST("/refresh", s.refreshToken)
		}

		// ==================== AUTH ENDPOINTS (AUTHENTICATED) ====================
		authProtected := v1.Group("/auth")
		authProtected.Use(s.authService.AuthMiddleware())
		{
			authProtected.POST("/logout", s.logout)
			authProtected.GET("/me", s.getCurrentUser)
		}

		// ==================== PROJECTS ====================
		projects := v1.Group("/projects")
		projects.Use(s.authService.AuthMiddleware())
		{
			projects.GET("", s.listProjects)
			projects.POST("", s.createProject)
			projects.POST("/import", s.importProject)
			projects.POST("/save", s.saveProject)
			projects.POST("/:id/load", s.loadProject)
			projects.DELETE("/:id", s.deleteProject)

			// The current in-memory project and its collections
			current := projects.Group("/current")
			{
				current.GET("", s.getCurrentProject)
				current.PATCH("/meta", s.updateProjectMeta)
				current.GET("/export", s.exportProject)

				current.POST("/io-configs", s.addIOConfig)
				current.PUT("/io-configs/:id", s.updateIOConfig)
				current.DELETE("/io-configs/:id", s.deleteIOConfig)

				current.POST("/axis-configs", s.addAxisConfig)
				current.PUT("/axis-configs/:id", s.updateAxisConfig)
				current.DELETE("/axis-configs/:id", s.deleteAxisConfig)

				current.POST("/station-configs", s.addStationConfig)
				current.PUT("/station-configs/:id", s.updateStationConfig)
				current.DELETE("/station-configs/:id", s.deleteStationConfig)

				current.POST("/task-configs", s.addTaskConfig)
				current.PUT("/task-configs/:id", s.updateTaskConfig)
				current.DELETE("/task-configs/:id", s.deleteTaskConfig)
			}
		}

		// ==================== SIMULATION ====================
		sim := v1.Group("/simulation")
		sim.Use(s.authService.AuthMiddleware())
		{
			sim.GET("/status", s.getSimulationStatus)
			sim.POST("/start", s.startSimulation)
			sim.POST("/pause", s.pauseSimulation)
			sim.POST("/stop", s.stopSimulation)
			sim.POST("/reset", s.resetSimulation)
			sim.PUT("/speed", s.setSimulationSpeed)
		}

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		{
			system.GET("/status", s.getSystemStatus)
			system.POST("/shutdown", s.shutdown)
		}

		// ==================== WEBSOCKET (PUBLIC - Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public). Probes the persistence backend and reports both
// service and backend verdicts.
func (s *Server) healthCheck(c *gin.Context) {
	health := s.lm.Gateway().HealthCheck(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"backend":   health.Status,
		"timestamp": time.Now().Unix(),
	})
}
