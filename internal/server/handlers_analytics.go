package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudsight/internal/insights"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// statsHandler handles GET /v1/stats: the dashboard headline numbers.
func (s *Server) statsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.store.Transactions().Count(ctx)
	if err != nil {
		logging.L(ctx).Error("failed to count transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute stats",
		})
		return
	}

	fraud := true
	_, fraudTotal, err := s.store.Transactions().List(ctx, transaction.ListOptions{
		FraudOnly: &fraud,
		Limit:     1,
	})
	if err != nil {
		logging.L(ctx).Error("failed to count frauds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute stats",
		})
		return
	}

	_, clientTotal, err := s.store.Profiles().ListClients(ctx, profiles.ClientListOptions{Limit: 1})
	if err != nil {
		logging.L(ctx).Error("failed to count clients", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute stats",
		})
		return
	}

	banks, err := s.store.Profiles().ListBanks(ctx)
	if err != nil {
		logging.L(ctx).Error("failed to list banks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute stats",
		})
		return
	}

	fraudRate := 0.0
	if total > 0 {
		fraudRate = float64(fraudTotal) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"totalTransactions": total,
		"fraudCount":        fraudTotal,
		"fraudRate":         fraudRate,
		"clientCount":       clientTotal,
		"bankCount":         len(banks),
		"realtime":          s.realtimeHub.Stats(),
	})
}

// analyticsSummaryHandler handles GET /v1/analytics/summary.
//
// Distributions over the committed transaction history: counts by type
// and status, hourly activity, fraud amount, and the top risk clients.
func (s *Server) analyticsSummaryHandler(c *gin.Context) {
	ctx := c.Request.Context()

	txns, total, err := s.store.Transactions().List(ctx, transaction.ListOptions{})
	if err != nil {
		logging.L(ctx).Error("failed to load transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to build analytics summary",
		})
		return
	}

	typeDist := make(map[string]int)
	statusDist := make(map[string]int)
	hourly := make([]int, 24)
	fraudByType := make(map[string]int)
	fraudAmount := "0.00"
	fraudCount := 0

	for _, t := range txns {
		typeDist[string(t.Type)]++
		statusDist[string(t.Status)]++
		if t.Hour != nil && *t.Hour >= 0 && *t.Hour < 24 {
			hourly[*t.Hour]++
		}
		if t.IsFraud {
			fraudCount++
			fraudByType[string(t.Type)]++
			fraudAmount = money.Add(fraudAmount, t.Amount)
		}
	}

	risky, _, err := s.store.Profiles().ListClients(ctx, profiles.ClientListOptions{
		MinFraudRate: 5,
		Limit:        5,
	})
	if err != nil {
		logging.L(ctx).Warn("top risk clients unavailable", "error", err)
		risky = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"totalTransactions":  total,
		"typeDistribution":   typeDist,
		"statusDistribution": statusDist,
		"hourlyActivity":     hourly,
		"fraudCount":         fraudCount,
		"fraudAmount":        fraudAmount,
		"fraudByType":        fraudByType,
		"topRiskClients":     risky,
	})
}

// listInsightsHandler handles GET /v1/insights
func (s *Server) listInsightsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if limit <= 0 || limit > 365 {
		limit = 30
	}

	list, err := s.insightGen.Store().List(c.Request.Context(), limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list insights", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list daily insights",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insights": list,
		"count":    len(list),
	})
}

// getInsightHandler handles GET /v1/insights/:date (YYYY-MM-DD)
func (s *Server) getInsightHandler(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_date",
			"message": "date must be YYYY-MM-DD",
		})
		return
	}

	ins, err := s.insightGen.Store().Get(c.Request.Context(), date)
	if err == insights.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No insight generated for that day",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load insight", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load daily insight",
		})
		return
	}

	c.JSON(http.StatusOK, ins)
}

// generateInsightHandler handles POST /v1/insights/generate?date=YYYY-MM-DD.
//
// Generates the digest for the given day (default: today). Idempotent:
// an existing digest is returned unchanged.
func (s *Server) generateInsightHandler(c *gin.Context) {
	at := time.Now().UTC()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_date",
				"message": "date must be YYYY-MM-DD",
			})
			return
		}
		at = parsed
	}

	ins, err := s.insightGen.Generate(c.Request.Context(), at)
	if err != nil {
		logging.L(c.Request.Context()).Error("insight generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Insight generation failed",
		})
		return
	}

	c.JSON(http.StatusOK, ins)
}
