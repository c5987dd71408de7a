package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"demand/internal/controller"
	"demand/internal/database"
	"demand/internal/model"
	"demand/internal/queue"
	"demand/pkg/oxylabs"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// errorStatus maps controller errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, controller.ErrInvalidID), errors.Is(err, controller.ErrMissingCategory):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound), errors.Is(err, oxylabs.ErrNoCategory):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrAlreadyQueued):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) createReportHandler(c *gin.Context) {
	var req controller.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	report, err := s.rc.CreateReport(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (s *Server) listReportsHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, maxListLimit)
	}

	reports, err := s.rc.ListReports(c.Request.Context(), userID, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if reports == nil {
		reports = []*model.DemandReport{}
	}

	c.JSON(http.StatusOK, reports)
}

func (s *Server) getReportHandler(c *gin.Context) {
	detail, err := s.rc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// reportEventsHandler streams a report's progress as Server-Sent Events. The
// current state is sent first and the stream ends on a terminal status.
func (s *Server) reportEventsHandler(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	// subscribe before reading the current state so no transition is missed
	events, err := s.rc.Subscribe(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	detail, err := s.rc.GetReport(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	current := model.ProgressEvent{ReportID: id, Status: detail.Report.Status, Progress: detail.Report.Progress}
	c.SSEvent("progress", current)
	if current.Status.IsTerminal() {
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", event)
			return !event.Status.IsTerminal()
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) categoryFromASINHandler(c *gin.Context) {
	asin := c.Query("asin")
	if asin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asin is required"})
		return
	}

	category, err := s.rc.CategoryFromASIN(c.Request.Context(), asin)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category_name": category.Name,
		"category_url":  category.URL,
		"category_id":   category.ID,
	})
}
