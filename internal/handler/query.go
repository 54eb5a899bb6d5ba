package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orbitalworks/imagery-api/internal/models"
)

const filterDateLayout = "2006-01-02"

// parseRequestFilter reads listing query parameters leniently: malformed
// values fall back to defaults instead of failing the request.
func parseRequestFilter(c *gin.Context, defaultLimit int) models.RequestFilter {
	filter := models.RequestFilter{
		Page:  1,
		Limit: defaultLimit,
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit))); err == nil {
		filter.Limit = limit
	}

	if raw := c.Query("status"); raw != "" {
		if status, err := models.ParseRequestStatus(raw); err == nil {
			filter.Status = &status
		}
	}
	if raw := c.Query("urgency"); raw != "" {
		if urgency, err := models.ParseUrgency(raw); err == nil {
			filter.Urgency = &urgency
		}
	}

	filter.UserID = c.Query("user_id")
	filter.Email = c.Query("email")
	filter.Provider = c.Query("provider")
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	if raw := c.Query("date_from"); raw != "" {
		if from, err := time.Parse(filterDateLayout, raw); err == nil {
			from = from.UTC()
			filter.DateFrom = &from
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if to, err := time.Parse(filterDateLayout, raw); err == nil {
			// Inclusive upper bound: extend to the end of that day.
			to = to.UTC().Add(24*time.Hour - time.Millisecond)
			filter.DateTo = &to
		}
	}

	return filter
}
