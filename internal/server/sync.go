package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/delinquency/internal/observability/logger"
	"go.uber.org/zap"
)

type triggerSyncResponse struct {
	Message  string          `json:"message"`
	Services map[string]bool `json:"services_triggered"`
}

func (s *Server) TriggerSync(c *gin.Context) {
	if s.syncTrigger == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	raw := c.DefaultQuery("services", "all")
	services, err := s.syncTrigger.Trigger(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	logger.WithContext(c.Request.Context(), s.log).Info("manual sync triggered", zap.Strings("services", services.Names()))

	c.JSON(http.StatusAccepted, triggerSyncResponse{
		Message: "Sync started in background",
		Services: map[string]bool{
			"customers": services.Customers,
			"contracts": services.ContractsAndBills,
			"bills":     services.ContractsAndBills,
		},
	})
}

func (s *Server) ListSyncRuns(c *gin.Context) {
	if s.syncRuns == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"), 20)
	if err != nil || limit <= 0 || limit > 200 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 200"))
		return
	}

	runs, err := s.syncRuns.ListSyncRuns(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}
