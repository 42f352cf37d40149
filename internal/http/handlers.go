package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/learning"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEmit(c echo.Context) error {
	var e event.OrbEvent
	if err := c.Bind(&e); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid event body: " + err.Error()})
	}

	if err := s.registry.Bus().Emit(c.Request().Context(), &e); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"id": e.ID})
}

func (s *Server) handleQuery(c echo.Context) error {
	f, err := parseEventFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	events, err := s.registry.Bus().Query(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleStats(c echo.Context) error {
	f, err := parseEventFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	stats, err := s.registry.Bus().Stats(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleComputeInsights(c echo.Context) error {
	f, err := parseEventFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	insights, err := s.registry.Engine().ComputeInsights(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, insights)
}

func (s *Server) handleRecommendations(c echo.Context) error {
	f, err := parseEventFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	recommendations, err := s.registry.Engine().GetRecommendations(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, recommendations)
}

// defaultListLimit caps learning store listings when no limit is given.
const defaultListLimit = 50

func (s *Server) handleGetPatterns(c echo.Context) error {
	f := learning.PatternFilter{Limit: defaultListLimit}
	for _, t := range splitParam(c.QueryParam("types")) {
		f.Types = append(f.Types, pattern.Type(t))
	}
	for _, st := range splitParam(c.QueryParam("statuses")) {
		f.Statuses = append(f.Statuses, pattern.Status(st))
	}
	var err error
	if f.Since, f.Until, err = parseTimeRange(c); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if f.MinConfidence, err = parseFloatParam(c, "minConfidence"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if limit, err := parseIntParam(c, "limit"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	} else if limit > 0 {
		f.Limit = limit
	}

	patterns, err := s.registry.Learning().GetPatterns(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, patterns)
}

func (s *Server) handleGetInsights(c echo.Context) error {
	f := learning.InsightFilter{
		PatternID: c.QueryParam("patternId"),
		Limit:     defaultListLimit,
	}
	var err error
	if f.Since, f.Until, err = parseTimeRange(c); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if f.MinConfidence, err = parseFloatParam(c, "minConfidence"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if limit, err := parseIntParam(c, "limit"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	} else if limit > 0 {
		f.Limit = limit
	}

	insights, err := s.registry.Learning().GetInsights(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, insights)
}

func (s *Server) handleGetActions(c echo.Context) error {
	f := learning.ActionFilter{
		InsightID: c.QueryParam("insightId"),
		Limit:     defaultListLimit,
	}
	for _, t := range splitParam(c.QueryParam("types")) {
		f.Types = append(f.Types, learning.ActionType(t))
	}
	for _, st := range splitParam(c.QueryParam("statuses")) {
		f.Statuses = append(f.Statuses, learning.ActionStatus(st))
	}
	var err error
	if f.Since, f.Until, err = parseTimeRange(c); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if f.MinConfidence, err = parseFloatParam(c, "minConfidence"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if limit, err := parseIntParam(c, "limit"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	} else if limit > 0 {
		f.Limit = limit
	}

	actions, err := s.registry.Learning().GetActions(c.Request().Context(), f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, actions)
}

func (s *Server) handleCreateAction(c echo.Context) error {
	var a learning.Action
	if err := c.Bind(&a); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid action body: " + err.Error()})
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = learning.StatusPending
	}
	if a.Status != learning.StatusPending {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "new actions must start pending"})
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if err := s.registry.Learning().SaveAction(c.Request().Context(), &a); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

type advancePatternRequest struct {
	Status pattern.Status `json:"status"`
}

func (s *Server) handleAdvancePattern(c echo.Context) error {
	var req advancePatternRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status body: " + err.Error()})
	}
	if req.Status == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "status is required"})
	}

	p, err := s.registry.Workflow().AdvancePattern(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type insightFeedbackRequest struct {
	Feedback string `json:"feedback"`
	Applied  bool   `json:"applied"`
}

func (s *Server) handleInsightFeedback(c echo.Context) error {
	var req insightFeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid feedback body: " + err.Error()})
	}
	if req.Feedback == "" && !req.Applied {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "feedback or applied is required"})
	}

	ins, err := s.registry.Workflow().RecordFeedback(c.Request().Context(), c.Param("id"), req.Feedback, req.Applied)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, ins)
}

func (s *Server) handleApproveAction(c echo.Context) error {
	a, err := s.registry.Workflow().Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleRejectAction(c echo.Context) error {
	a, err := s.registry.Workflow().Reject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// writeError maps pipeline errors onto HTTP statuses.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, event.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, learning.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, learning.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func parseEventFilter(c echo.Context) (event.Filter, error) {
	f := event.Filter{
		ID:        c.QueryParam("id"),
		UserID:    c.QueryParam("userId"),
		SessionID: c.QueryParam("sessionId"),
		DeviceID:  c.QueryParam("deviceId"),
		Mode:      c.QueryParam("mode"),
		Role:      event.Role(c.QueryParam("role")),
	}
	for _, t := range splitParam(c.QueryParam("types")) {
		f.Types = append(f.Types, event.EventType(t))
	}
	var err error
	if f.Since, f.Until, err = parseTimeRange(c); err != nil {
		return event.Filter{}, err
	}
	if f.Limit, err = parseIntParam(c, "limit"); err != nil {
		return event.Filter{}, err
	}
	return f, nil
}

func parseTimeRange(c echo.Context) (since, until time.Time, err error) {
	if raw := c.QueryParam("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid since: expected RFC3339 timestamp")
		}
	}
	if raw := c.QueryParam("until"); raw != "" {
		until, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid until: expected RFC3339 timestamp")
		}
	}
	return since, until, nil
}

func parseIntParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + ": expected integer")
	}
	return v, nil
}

func parseFloatParam(c echo.Context, name string) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + ": expected number")
	}
	return v, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
