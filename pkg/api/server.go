// Package api exposes the HTTP surface: sensor ingestion, human decision
// submission, maintenance views, reports, and the health endpoint.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/coordinator"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/orchestrator"
	"github.com/predictix/maintflow/pkg/storage"
	"github.com/predictix/maintflow/pkg/version"
)

// Server is the HTTP API over the running system.
type Server struct {
	cfg   *config.APIConfig
	coord *coordinator.Coordinator
	orch  *orchestrator.Agent
	store storage.Store
	idem  *idempotencyCache
	log   *slog.Logger
}

// NewServer creates the API server.
func NewServer(cfg *config.APIConfig, coord *coordinator.Coordinator, orch *orchestrator.Agent, store storage.Store) (*Server, error) {
	if cfg == nil || coord == nil || orch == nil || store == nil {
		return nil, fmt.Errorf("api server requires config, coordinator, orchestrator, and store")
	}
	return &Server{
		cfg:   cfg,
		coord: coord,
		orch:  orch,
		store: store,
		idem:  newIdempotencyCache(cfg.IdempotencyTTL),
		log:   slog.With("component", "api"),
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1", apiKeyAuth(s.cfg.APIKey))
	{
		v1.POST("/data/ingest", s.ingest)
		v1.POST("/decisions/submit", s.submitDecision)
		v1.POST("/maintenance/schedule", s.manualSchedule)
		v1.POST("/maintenance/complete", s.completeMaintenance)
		v1.GET("/maintenance/scheduled", s.listScheduled)
		v1.POST("/reports/generate", s.generateReport)
		v1.GET("/system/capabilities", s.capabilities)
	}
	return r
}

// health reports bus and agent health. A stopped bus is unhealthy.
func (s *Server) health(c *gin.Context) {
	stats := s.coord.Bus().Stats()
	body := gin.H{
		"status":  "healthy",
		"version": version.Full(),
		"bus":     stats,
		"agents":  s.coord.AgentHealth(),
	}
	if !stats.Running {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// ingest handles POST /api/v1/data/ingest.
func (s *Server) ingest(c *gin.Context) {
	// 1. Bind and validate the request.
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. Replay detection: a repeated Idempotency-Key within the TTL
	// returns the originally assigned event ID without re-publishing.
	idemKey := c.GetHeader(IdempotencyHeader)
	if idemKey != "" {
		if eventID, seen := s.idem.Lookup(idemKey); seen {
			c.JSON(http.StatusOK, IngestResponse{Status: "duplicate_ignored", EventID: eventID})
			return
		}
	}

	// 3. Publish the raw reading onto the bus.
	event := &events.SensorDataReceived{
		BaseEvent: events.NewBase(events.TypeSensorDataReceived, ""),
		SensorID:  req.SensorID,
		RawData:   req.Raw,
	}
	if err := s.coord.Bus().Publish(event); err != nil {
		s.log.Error("Ingest publish failed", "sensor_id", req.SensorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event bus unavailable"})
		return
	}

	// 4. Record the key only after a successful publish.
	if idemKey != "" {
		s.idem.Record(idemKey, event.EventID)
	}

	c.JSON(http.StatusOK, IngestResponse{
		Status:        "accepted",
		EventID:       event.EventID,
		CorrelationID: event.CorrelationID,
		SensorID:      req.SensorID,
	})
}

// submitDecision handles POST /api/v1/decisions/submit.
func (s *Server) submitDecision(c *gin.Context) {
	var req DecisionSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response := models.DecisionResponse{
		RequestID:     req.RequestID,
		Decision:      req.Decision,
		DecidedBy:     req.DecidedBy,
		Justification: req.Justification,
		Modifications: req.Modifications,
		DecidedAt:     time.Now().UTC(),
	}
	if err := s.store.SaveDecision(c.Request.Context(), response); err != nil {
		s.log.Error("Failed to persist decision", "request_id", req.RequestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist decision"})
		return
	}

	event := &events.HumanDecisionResponse{
		BaseEvent: events.NewBase(events.TypeHumanDecisionResponse, ""),
		Payload:   response,
	}
	if err := s.coord.Bus().Publish(event); err != nil {
		s.log.Error("Decision publish failed", "request_id", req.RequestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event bus unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "accepted",
		"request_id": req.RequestID,
		"event_id":   event.EventID,
	})
}

// manualSchedule handles POST /api/v1/maintenance/schedule: an operator
// books maintenance directly, bypassing the prediction flow.
func (s *Server) manualSchedule(c *gin.Context) {
	var req ManualScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	urgency := req.UrgencyLevel
	if urgency == "" {
		urgency = models.UrgencyMedium
	}

	command := &events.ScheduleMaintenanceCommand{
		BaseEvent: events.NewBase(events.TypeScheduleMaintenanceCommand, ""),
		MaintenanceData: map[string]any{
			"equipment_id":     req.EquipmentID,
			"maintenance_type": string(req.MaintenanceType),
			"notes":            req.Notes,
			"origin":           "manual",
		},
		UrgencyLevel:  urgency,
		HumanApproved: true,
	}
	if err := s.coord.Bus().Publish(command); err != nil {
		s.log.Error("Manual schedule publish failed", "equipment_id", req.EquipmentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event bus unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":       "accepted",
		"equipment_id": req.EquipmentID,
		"event_id":     command.EventID,
	})
}

// completeMaintenance handles POST /api/v1/maintenance/complete.
func (s *Server) completeMaintenance(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := &events.MaintenanceCompleted{
		BaseEvent: events.NewBase(events.TypeMaintenanceCompleted, ""),
		Completion: models.MaintenanceCompletion{
			TaskID:              req.TaskID,
			EquipmentID:         req.EquipmentID,
			TechnicianID:        req.TechnicianID,
			CompletionDate:      time.Now().UTC(),
			Status:              req.Status,
			Notes:               req.Notes,
			ActualDurationHours: req.ActualDurationHours,
		},
	}
	if err := s.coord.Bus().Publish(event); err != nil {
		s.log.Error("Completion publish failed", "task_id", req.TaskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event bus unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"task_id":  req.TaskID,
		"event_id": event.EventID,
	})
}

// listScheduled handles GET /api/v1/maintenance/scheduled.
func (s *Server) listScheduled(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	schedules, err := s.store.RecentSchedules(c.Request.Context(), limit)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("Failed to list schedules", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}
	if schedules == nil {
		schedules = []models.MaintenanceSchedule{}
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "count": len(schedules)})
}

// generateReport handles POST /api/v1/reports/generate: a point-in-time
// operational report over the decision log, pending approvals, schedules,
// and system health.
func (s *Server) generateReport(c *gin.Context) {
	schedules, err := s.store.RecentSchedules(c.Request.Context(), 50)
	if err != nil {
		s.log.Warn("Report: schedule lookup failed", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at":      time.Now().UTC(),
		"bus":               s.coord.Bus().Stats(),
		"agents":            s.coord.AgentHealth(),
		"pending_approvals": s.orch.PendingApprovals(),
		"decision_log":      s.orch.DecisionLog(),
		"recent_schedules":  schedules,
	})
}

// capabilities handles GET /api/v1/system/capabilities.
func (s *Server) capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.coord.Capabilities()})
}
