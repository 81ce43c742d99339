package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudsight/internal/analysis"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/profiles"
)

// listClientsHandler handles GET /v1/clients.
//
// Supported filters: riskLevel (NORMAL/WATCH/SUSPECT), minFraudRate,
// limit, offset. Results are ordered highest fraud rate first.
func (s *Server) listClientsHandler(c *gin.Context) {
	opts := profiles.ClientListOptions{}

	if rl := c.Query("riskLevel"); rl != "" {
		level := profiles.RiskLevel(rl)
		if level != profiles.RiskNormal && level != profiles.RiskWatch && level != profiles.RiskSuspect {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_risk_level",
				"message": "riskLevel must be NORMAL, WATCH, or SUSPECT",
			})
			return
		}
		opts.RiskLevel = level
	}
	if mfr := c.Query("minFraudRate"); mfr != "" {
		rate, err := strconv.ParseFloat(mfr, 64)
		if err != nil || rate < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_min_fraud_rate",
				"message": "minFraudRate must be a non-negative number",
			})
			return
		}
		opts.MinFraudRate = rate
	}

	opts.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	opts.Offset, _ = strconv.Atoi(c.Query("offset"))
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	clients, total, err := s.store.Profiles().ListClients(c.Request.Context(), opts)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list clients", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list client profiles",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"total":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// getClientHandler handles GET /v1/clients/:partyId
func (s *Server) getClientHandler(c *gin.Context) {
	client, err := s.store.Profiles().GetClient(c.Request.Context(), c.Param("partyId"))
	if err == profiles.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No client profile for that party",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load client", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load client profile",
		})
		return
	}

	c.JSON(http.StatusOK, client)
}

// clientVelocityHandler handles GET /v1/clients/:partyId/velocity?hours=24
func (s *Server) clientVelocityHandler(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 || hours > 24*30 {
		hours = 24
	}

	v, err := s.insightGen.ComputeVelocity(c.Request.Context(), c.Param("partyId"), hours)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to compute velocity", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute transaction velocity",
		})
		return
	}

	c.JSON(http.StatusOK, v)
}

// assessClientHandler handles POST /v1/clients/:partyId/assess.
//
// Runs the behavioral assessment reasoner over the client's aggregate
// profile and persists the result on the profile record.
func (s *Server) assessClientHandler(c *gin.Context) {
	ctx := c.Request.Context()
	partyID := c.Param("partyId")

	client, err := s.store.Profiles().GetClient(ctx, partyID)
	if err == profiles.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No client profile for that party",
		})
		return
	}
	if err != nil {
		logging.L(ctx).Error("failed to load client", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load client profile",
		})
		return
	}

	summary := &analysis.ClientSummary{
		PartyID:      client.PartyID,
		Transactions: client.TxnCount,
		TotalAmount:  client.TotalAmount,
		FraudCount:   client.FraudCount,
		FraudRate:    client.FraudRate,
		LastActivity: client.LastActivity,
	}

	assessment := s.dispatcher.AssessClient(ctx, summary)

	updated, err := s.profileSvc.Assess(ctx, partyID,
		assessment.RiskLevel, assessment.Assessment, assessment.BehavioralPatterns)
	if err != nil {
		logging.L(ctx).Error("failed to persist assessment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to persist assessment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client":     updated,
		"assessment": assessment,
	})
}

// listBanksHandler handles GET /v1/banks
func (s *Server) listBanksHandler(c *gin.Context) {
	banks, err := s.store.Profiles().ListBanks(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list banks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list bank profiles",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"banks": banks,
		"count": len(banks),
	})
}

// getBankHandler handles GET /v1/banks/:code
func (s *Server) getBankHandler(c *gin.Context) {
	bank, err := s.store.Profiles().GetBank(c.Request.Context(), c.Param("code"))
	if err == profiles.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No bank profile with that code",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load bank", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load bank profile",
		})
		return
	}

	c.JSON(http.StatusOK, bank)
}

// refreshProfilesHandler handles POST /v1/profiles/refresh.
//
// Rebuilds every client and bank profile from the committed transaction
// history. The repair path for profiles that drifted after partial
// staging failures.
func (s *Server) refreshProfilesHandler(c *gin.Context) {
	refreshed, err := s.profileSvc.RefreshAll(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("profile refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Profile refresh failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refreshed": refreshed,
	})
}
