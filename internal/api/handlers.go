package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"fleet-alert-service/internal/lifecycle"
	"fleet-alert-service/internal/monitor"
	"fleet-alert-service/pkg/config"
	"fleet-alert-service/pkg/logger"
	"fleet-alert-service/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Server struct {
	config       *config.Config
	orchestrator *monitor.Orchestrator
	router       *gin.Engine
}

func NewServer(cfg *config.Config, orch *monitor.Orchestrator) *Server {
	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:       cfg,
		orchestrator: orch,
		router:       gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery middleware recovers from any panics
	s.router.Use(gin.Recovery())

	// Custom logging middleware
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	s.router.Use(s.corsMiddleware())

	// Request timeout middleware
	s.router.Use(s.timeoutMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// API group
	api := s.router.Group("/api")
	{
		api.POST("/refresh", s.handleRefresh)
		api.GET("/stats", s.handleGetStats)

		alerts := api.Group("/alerts")
		{
			alerts.GET("", s.handleGetAlerts)
			alerts.POST("/:alertId/acknowledge", s.validateAlertID(), s.handleAcknowledgeAlert)
			alerts.POST("/:alertId/promote", s.validateAlertID(), s.handlePromoteAlert)
		}

		history := api.Group("/history")
		{
			history.GET("", s.handleGetHistory)
			history.POST("/:alertId/status", s.validateAlertID(), s.handleUpdateStatus)
			history.DELETE("/:alertId", s.validateAlertID(), s.handleDeleteSaved)
			history.POST("/:alertId/plans", s.validateAlertID(), s.handleAddActionPlan)
			history.PATCH("/:alertId/plans/:planId", s.validateAlertID(), s.handleUpdateActionPlan)
			history.DELETE("/:alertId/plans/:planId", s.validateAlertID(), s.handleDeleteActionPlan)
		}

		retention := api.Group("/retention")
		{
			retention.POST("/sweep", s.handleManualSweep)
		}
	}

	ws := s.router.Group("/ws")
	{
		ws.GET("/alerts", s.handleWebSocketAlerts)
	}
}

func (s *Server) validateAlertID() gin.HandlerFunc {
	return func(c *gin.Context) {
		alertID := c.Param("alertId")
		if !isValidID(alertID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID format"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func isValidID(id string) bool {
	matched, _ := regexp.MatchString("^[a-zA-Z0-9_-]{1,100}$", id)
	return matched
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":  "healthy",
		"time":    time.Now().Format(time.RFC3339),
		"version": "1.0.0",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.orchestrator.GetDB().PingContext(ctx); err != nil {
		health["status"] = "unhealthy"
		health["database"] = "disconnected"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["database"] = "connected"

	// Check Redis connection
	if err := s.orchestrator.GetRedis().HealthCheck(ctx); err != nil {
		health["status"] = "degraded"
		health["redis"] = "disconnected"
	} else {
		health["redis"] = "connected"
	}

	c.JSON(http.StatusOK, health)
}

// Trigger a refresh cycle manually
func (s *Server) handleRefresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	if err := s.orchestrator.RunCycle(ctx); err != nil {
		if errors.Is(err, monitor.ErrCycleInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "A refresh cycle is already running"})
			return
		}
		logger.Error("Manual refresh failed", logger.Err(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Refresh cycle failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

// Get the active (unsaved) alert queue together with the quality of the
// telemetry fetch that produced it
func (s *Server) handleGetAlerts(c *gin.Context) {
	alerts := s.orchestrator.GetStore().Active()

	fetchStatus := models.FetchUnknown
	if cycle := s.orchestrator.LastCycle(); cycle != nil {
		fetchStatus = cycle.FetchStatus
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":       alerts,
		"count":        len(alerts),
		"fetch_status": fetchStatus,
	})
}

// Acknowledge (copy) an alert; it stays in the active queue
func (s *Server) handleAcknowledgeAlert(c *gin.Context) {
	alertID := c.Param("alertId")

	var req struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.orchestrator.GetLifecycle().Acknowledge(ctx, alertID, req.Actor); err != nil {
		logger.Error("Failed to acknowledge alert",
			zap.String("alert_id", alertID), logger.Err(err))
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "alert_id": alertID})
}

// Promote an alert into the saved history
func (s *Server) handlePromoteAlert(c *gin.Context) {
	alertID := c.Param("alertId")

	var req struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := s.orchestrator.GetLifecycle().Promote(ctx, alertID, req.Actor)
	if err != nil {
		logger.Error("Failed to promote alert",
			zap.String("alert_id", alertID), logger.Err(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get the saved alert history
func (s *Server) handleGetHistory(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	saved, err := s.orchestrator.GetLifecycle().ListSaved(ctx, 100)
	if err != nil {
		logger.Error("Failed to query saved alerts", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": saved,
		"count":  len(saved),
	})
}

// Update a saved alert's workflow status
func (s *Server) handleUpdateStatus(c *gin.Context) {
	alertID := c.Param("alertId")

	var req struct {
		Status models.SavedAlertStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.orchestrator.GetLifecycle().UpdateStatus(ctx, alertID, req.Status); err != nil {
		logger.Error("Failed to update saved alert status",
			zap.String("alert_id", alertID), logger.Err(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status, "alert_id": alertID})
}

// Delete a saved alert and its action plans
func (s *Server) handleDeleteSaved(c *gin.Context) {
	alertID := c.Param("alertId")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.orchestrator.GetLifecycle().DeleteSaved(ctx, alertID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "alert_id": alertID})
}

// Attach an action plan to a saved alert
func (s *Server) handleAddActionPlan(c *gin.Context) {
	alertID := c.Param("alertId")

	var req struct {
		Description string `json:"description" binding:"required"`
		Responsible string `json:"responsible" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description and responsible are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	planID, err := s.orchestrator.GetLifecycle().AddActionPlan(ctx, models.ActionPlan{
		SavedAlertID: alertID,
		Description:  req.Description,
		Responsible:  req.Responsible,
		Status:       models.PlanStatusPending,
	})
	if err != nil {
		logger.Error("Failed to add action plan",
			zap.String("alert_id", alertID), logger.Err(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"plan_id": planID, "alert_id": alertID})
}

// Edit an action plan; fields omitted from the body are left untouched
func (s *Server) handleUpdateActionPlan(c *gin.Context) {
	alertID := c.Param("alertId")

	planID, ok := parsePlanID(c)
	if !ok {
		return
	}

	var req struct {
		Description  *string                  `json:"description"`
		Responsible  *string                  `json:"responsible"`
		Status       *models.ActionPlanStatus `json:"status"`
		Observations *string                  `json:"observations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	update := lifecycle.ActionPlanUpdate{
		Description:  req.Description,
		Responsible:  req.Responsible,
		Status:       req.Status,
		Observations: req.Observations,
	}
	if err := s.orchestrator.GetLifecycle().UpdateActionPlan(ctx, alertID, planID, update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated", "plan_id": planID})
}

// Remove an action plan
func (s *Server) handleDeleteActionPlan(c *gin.Context) {
	alertID := c.Param("alertId")

	planID, ok := parsePlanID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.orchestrator.GetLifecycle().DeleteActionPlan(ctx, alertID, planID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "plan_id": planID})
}

// Trigger a retention sweep manually. A failed sweep reports zero deletions
// for the failed categories together with the reason.
func (s *Server) handleManualSweep(c *gin.Context) {
	// Sweeps outlive the request timeout middleware, so the deadline is
	// derived from the background context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.orchestrator.RunRetentionSweep(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Engine counters for operators
func (s *Server) handleGetStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.Stats())
}

// WebSocket push of the active queue
func (s *Server) handleWebSocketAlerts(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket connection for alerts", logger.Err(err))
		return
	}
	defer conn.Close()

	logger.Info("WebSocket alert stream started", zap.String("client_ip", c.ClientIP()))

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alerts := s.orchestrator.GetStore().Active()
			if err := conn.WriteJSON(gin.H{"alerts": alerts, "count": len(alerts)}); err != nil {
				logger.Error("Failed to write alerts to WebSocket", logger.Err(err))
				return
			}
		}
	}
}

func parsePlanID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("planId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID format"})
		return 0, false
	}
	return id, true
}

// Middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log after request
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func (s *Server) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Set a default timeout of 30 seconds for all requests
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
