package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talenthub/backoffice/internal/verification"
)

// actorFrom builds the acting identity from the headers set by the upstream
// auth layer. A missing or malformed actor id yields a system actor.
func actorFrom(c *gin.Context) verification.Actor {
	actor := verification.Actor{Role: c.GetHeader("X-Actor-Role")}
	if raw := c.GetHeader("X-Actor-ID"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			uid := uint(id)
			actor.ID = &uid
		}
	}
	if actor.Role == "" {
		actor.Role = "system"
	}
	return actor
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer", "field": "id"})
		return 0, false
	}
	return uint(id), true
}

// GET /api/v1/admin/verifications
func (s *Server) listVerifications(c *gin.Context) {
	var filters verification.ListFilters

	if raw := c.QueryArray("status"); len(raw) > 0 {
		for _, entry := range raw {
			for _, status := range strings.Split(entry, ",") {
				if status = strings.TrimSpace(status); status != "" {
					filters.Status = append(filters.Status, status)
				}
			}
		}
	}
	filters.Provider = c.Query("provider")
	filters.Search = c.Query("search")
	filters.Sort = c.Query("sort")
	filters.SortDesc = c.Query("order") == "desc"
	if raw := c.Query("reviewerId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			uid := uint(id)
			filters.ReviewerID = &uid
		}
	}
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.SubmittedFrom = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.SubmittedTo = &t
		}
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "25"))

	result, err := s.query.List(c.Request.Context(), filters)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/admin/verifications/overview
func (s *Server) verificationOverview(c *gin.Context) {
	lookbackDays, _ := strconv.Atoi(c.DefaultQuery("lookbackDays", "0"))
	overview, err := s.analytics.Overview(c.Request.Context(), lookbackDays)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GET /api/v1/admin/verifications/:id
func (s *Server) getVerification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	record, err := s.engine.GetByID(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// POST /api/v1/admin/verifications
func (s *Server) createVerification(c *gin.Context) {
	var input verification.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := s.engine.Create(c.Request.Context(), input, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

type updateRequest struct {
	Intents []verification.Intent `json:"intents"`
}

// PATCH /api/v1/admin/verifications/:id
func (s *Server) updateVerification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := s.engine.Update(c.Request.Context(), id, req.Intents, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// POST /api/v1/admin/verifications/:id/events
func (s *Server) appendVerificationEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input verification.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	event, err := s.engine.AppendEvent(c.Request.Context(), id, input, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GET /api/v1/admin/verification-settings
func (s *Server) getVerificationSettings(c *gin.Context) {
	settings, err := s.settings.Get(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PUT /api/v1/admin/verification-settings
func (s *Server) updateVerificationSettings(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	settings, err := s.settings.Update(c.Request.Context(), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
