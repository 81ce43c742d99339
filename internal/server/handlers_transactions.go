package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudsight/internal/idgen"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/transaction"
	"github.com/mbd888/fraudsight/internal/validation"
)

// listTransactionsHandler handles GET /v1/transactions.
//
// Supported filters: type, status, fraud (true/false), party, institution,
// minAmount, maxAmount, limit, offset.
func (s *Server) listTransactionsHandler(c *gin.Context) {
	opts := transaction.ListOptions{
		Party:       c.Query("party"),
		Institution: c.Query("institution"),
		MinAmount:   c.Query("minAmount"),
		MaxAmount:   c.Query("maxAmount"),
	}

	if t := c.Query("type"); t != "" {
		typ := transaction.Type(t)
		if !transaction.ValidTypes[typ] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_type",
				"message": "type must be one of TRF, RT, RCD, PF",
			})
			return
		}
		opts.Type = typ
	}
	if st := c.Query("status"); st != "" {
		status := transaction.Status(st)
		if !transaction.ValidStatuses[status] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_status",
				"message": "status must be one of OK, KO, ATT",
			})
			return
		}
		opts.Status = status
	}
	if f := c.Query("fraud"); f != "" {
		fraud, err := strconv.ParseBool(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_fraud",
				"message": "fraud must be true or false",
			})
			return
		}
		opts.FraudOnly = &fraud
	}

	opts.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	opts.Offset, _ = strconv.Atoi(c.Query("offset"))
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	txns, total, err := s.store.Transactions().List(c.Request.Context(), opts)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list transactions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"total":        total,
		"limit":        opts.Limit,
		"offset":       opts.Offset,
	})
}

// getTransactionHandler handles GET /v1/transactions/:id
func (s *Server) getTransactionHandler(c *gin.Context) {
	t, err := s.store.Transactions().Get(c.Request.Context(), c.Param("id"))
	if err == transaction.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No transaction with that ID",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load transaction", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load transaction",
		})
		return
	}

	c.JSON(http.StatusOK, t)
}

// explainTransactionHandler handles POST /v1/transactions/:id/explain.
//
// Runs the explanation dispatcher on demand for a committed record and
// persists the resulting explanation block. Useful for records flagged
// before a model backend was configured.
func (s *Server) explainTransactionHandler(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := s.store.Transactions().Get(ctx, c.Param("id"))
	if err == transaction.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No transaction with that ID",
		})
		return
	}
	if err != nil {
		logging.L(ctx).Error("failed to load transaction", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load transaction",
		})
		return
	}

	if !t.IsFraud {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "not_flagged",
			"message": "Only transactions flagged as fraud can be explained",
		})
		return
	}

	expl := s.dispatcher.ExplainTransaction(ctx, t)
	now := time.Now().UTC()
	if err := s.store.Transactions().SetExplanation(ctx, t.ID,
		expl.Priority, expl.RiskFactors, expl.Explanation, expl.Recommendations, now); err != nil {
		logging.L(ctx).Error("failed to persist explanation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to persist explanation",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactionId": t.ID,
		"explanation":   expl,
	})
}

// addTransactionNoteHandler handles POST /v1/transactions/:id/notes.
//
// Attaches an investigator annotation to a committed record. The body is
// JSON with a required "note" field and an optional "createdBy".
func (s *Server) addTransactionNoteHandler(c *gin.Context) {
	var req struct {
		Note      string `json:"note"`
		CreatedBy string `json:"createdBy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Note) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_note",
			"message": "JSON body with a non-empty 'note' field is required",
		})
		return
	}

	ctx := c.Request.Context()
	createdBy := validation.SanitizeString(req.CreatedBy, 100)
	if createdBy == "" {
		createdBy = "api"
	}

	n := &transaction.Note{
		ID:            idgen.WithPrefix("note_"),
		TransactionID: c.Param("id"),
		Note:          validation.SanitizeString(req.Note, 2000),
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
	}
	err := s.store.Transactions().AddNote(ctx, n)
	if err == transaction.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No transaction with that ID",
		})
		return
	}
	if err != nil {
		logging.L(ctx).Error("failed to store note", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to store note",
		})
		return
	}

	c.JSON(http.StatusCreated, n)
}

// listTransactionNotesHandler handles GET /v1/transactions/:id/notes
func (s *Server) listTransactionNotesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := s.store.Transactions().Get(ctx, id); err == transaction.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No transaction with that ID",
		})
		return
	} else if err != nil {
		logging.L(ctx).Error("failed to load transaction", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load transaction",
		})
		return
	}

	notes, err := s.store.Transactions().ListNotes(ctx, id)
	if err != nil {
		logging.L(ctx).Error("failed to list notes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list notes",
		})
		return
	}
	if notes == nil {
		notes = []*transaction.Note{}
	}

	c.JSON(http.StatusOK, gin.H{
		"transactionId": id,
		"notes":         notes,
		"count":         len(notes),
	})
}

// predictorStatusHandler handles GET /v1/predictor/status
func (s *Server) predictorStatusHandler(c *gin.Context) {
	status := s.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"loaded":        status.Loaded,
		"modelVersion":  status.ModelVersion,
		"schemaVersion": status.SchemaVersion,
		"featureNames":  status.FeatureNames,
		"reasoner":      s.dispatcher.Backend(),
	})
}
