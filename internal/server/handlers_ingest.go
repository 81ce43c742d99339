package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudsight/internal/ingest"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/metrics"
	"github.com/mbd888/fraudsight/internal/session"
	"github.com/mbd888/fraudsight/internal/validation"
)

// ingestHandler handles POST /v1/ingest.
//
// It accepts a multipart CSV upload in the "file" field and streams the
// run's progress back as server-sent events. The connection stays open
// until the run reaches a terminal state; closing it abandons the run.
func (s *Server) ingestHandler(c *gin.Context) {
	if c.Request.ContentLength > validation.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "file_too_large",
			"message": fmt.Sprintf("upload exceeds %d bytes", validation.MaxUploadSize),
		})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_file",
			"message": "multipart field 'file' with a CSV upload is required",
		})
		return
	}
	defer func() { _ = file.Close() }()

	ingestedBy := validation.SanitizeString(c.GetHeader("X-Ingested-By"), 100)
	if ingestedBy == "" {
		ingestedBy = "api"
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "streaming_unsupported",
			"message": "response writer does not support streaming",
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := ingest.SinkFunc(func(_ context.Context, event interface{}) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	meta := ingest.Meta{
		Source:     header.Filename,
		IngestedBy: ingestedBy,
		FileSize:   header.Size,
	}

	sess, err := s.pipeline.Run(c.Request.Context(), file, meta, sink)
	if sess != nil {
		metrics.IngestSessionsTotal.WithLabelValues(string(sess.Status)).Inc()
		s.realtimeHub.SessionFinished(sess)
	}
	if err != nil {
		logging.L(c.Request.Context()).Warn("ingestion run did not complete", "error", err)
		return
	}

	// Every completed run closes with the digest for the day; generation
	// is idempotent so repeat uploads return the existing record. The
	// client may drop the stream right after the completion event.
	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := s.insightGen.Generate(ctx, time.Now().UTC()); err != nil {
		logging.L(ctx).Warn("daily insight generation failed", "error", err)
	}
}

// listSessionsHandler handles GET /v1/sessions
func (s *Server) listSessionsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sessions, err := s.store.Sessions().List(c.Request.Context(), limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list ingestion sessions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// getSessionHandler handles GET /v1/sessions/:id
func (s *Server) getSessionHandler(c *gin.Context) {
	sess, err := s.store.Sessions().Get(c.Request.Context(), c.Param("id"))
	if err == session.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No ingestion session with that ID",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load ingestion session",
		})
		return
	}

	c.JSON(http.StatusOK, sess)
}
