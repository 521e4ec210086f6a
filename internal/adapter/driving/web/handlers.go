package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
	"github.com/jnywong/jupyterhub-cost-monitoring/internal/shared/types"
	"github.com/jnywong/jupyterhub-cost-monitoring/pkg/version"
)

func (s *Server) handleIndex(c *gin.Context) {
	accountID, err := s.allocation.AccountID(c.Request.Context())
	if err != nil {
		s.logger.Warn("could not resolve account id", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"service":    "jupyterhub-cost-monitoring",
		"version":    version.GetVersion(),
		"account_id": accountID,
		"endpoints": []string{
			"/health/ready",
			"/hub-names",
			"/total-costs",
			"/total-costs-per-hub",
			"/total-costs-per-component",
			"/total-usage",
			"/total-costs-per-user",
			"/total-costs-per-group",
			"/metrics",
		},
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleHubNames(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	names, err := s.allocation.HubNames(c.Request.Context(), dateRange)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (s *Server) handleTotalCosts(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	costs, err := s.allocation.TotalCosts(c.Request.Context(), dateRange)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

func (s *Server) handleTotalCostsPerHub(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	costs, err := s.allocation.TotalCostsPerHub(c.Request.Context(), dateRange)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

func (s *Server) handleTotalCostsPerComponent(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	costs, err := s.allocation.TotalCostsPerComponent(c.Request.Context(), dateRange,
		filterParam(c, "hub"), filterParam(c, "component"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

func (s *Server) handleTotalUsage(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	usage, err := s.allocation.TotalUsage(c.Request.Context(), dateRange,
		filterParam(c, "hub"), filterParam(c, "component"), filterParam(c, "user"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) handleTotalCostsPerUser(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
			return
		}
	}

	costs, err := s.allocation.TotalCostsPerUser(c.Request.Context(), dateRange,
		filterParam(c, "hub"), filterParam(c, "component"),
		filterParam(c, "user"), filterParam(c, "usergroup"), limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

func (s *Server) handleTotalCostsPerGroup(c *gin.Context) {
	dateRange, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	costs, err := s.allocation.TotalCostsPerGroup(c.Request.Context(), dateRange)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrPaginatedResponse):
		// A range too wide for one page of billing results; partial totals
		// are never reported.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
		})
	case errors.Is(err, types.ErrUnknownComponent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			"error", err,
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
		})
	}
}

// filterParam reads an optional filter query parameter. Grafana dashboards
// send "all" (or an empty value) to mean no filter; both normalize to "".
func filterParam(c *gin.Context, name string) string {
	v := c.Query(name)
	if v == "all" {
		return ""
	}
	return v
}

// parseDateRange reads the from/to query parameters. Date-only and full
// timestamp forms are accepted; timestamps are converted to UTC and truncated
// to their calendar day. to defaults to today, from to 30 days before to.
// A future to is clamped to today, and a from at or past today falls back to
// the day before to.
func parseDateRange(c *gin.Context) (entity.DateRange, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)

	to := now
	if raw := c.Query("to"); raw != "" {
		t, err := parseFlexibleDate(raw)
		if err != nil {
			return entity.DateRange{}, fmt.Errorf("invalid 'to' date %q: %w", raw, err)
		}
		to = t
	}

	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		t, err := parseFlexibleDate(raw)
		if err != nil {
			return entity.DateRange{}, fmt.Errorf("invalid 'from' date %q: %w", raw, err)
		}
		from = t
	}

	if to.After(now) {
		to = now
	}
	if !from.Before(now) {
		from = to.AddDate(0, 0, -1)
	}

	return entity.NewDateRange(from, to), nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseFlexibleDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("expected an ISO date or timestamp")
}
