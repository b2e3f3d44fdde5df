package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/events"
)

func (h Handlers) ListEvents(c *gin.Context) {
	if h.Events == nil {
		notConfigured(c, "events")
		return
	}
	f := events.Filter{
		RecordID:   c.Query("record_id"),
		RecordType: c.Query("record_type"),
		Status:     events.Status(c.Query("status")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}
	var err error
	if f.From, err = optionalTime(c, "from"); err != nil {
		return
	}
	if f.To, err = optionalTime(c, "to"); err != nil {
		return
	}

	out, err := h.Events.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (h Handlers) EventsSummary(c *gin.Context) {
	if h.Events == nil {
		notConfigured(c, "events")
		return
	}
	from, err := optionalTime(c, "from")
	if err != nil {
		return
	}
	to, err := optionalTime(c, "to")
	if err != nil {
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}

	out, err := h.Events.Summary(c.Request.Context(), events.SummaryRequest{
		Range:      events.TimeRange{From: from, To: to},
		RecordType: c.Query("record_type"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// optionalTime parses an RFC 3339 query parameter and aborts on bad input.
func optionalTime(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC 3339"})
		return time.Time{}, err
	}
	return t, nil
}
