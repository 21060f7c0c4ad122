package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"contact-intake-go/internal/model"
	"contact-intake-go/internal/repository"
)

// ListMessages returns stored contact messages with pagination
func (h *Handlers) ListMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	opts := model.ListOptions{
		Email:  strings.ToLower(strings.TrimSpace(c.Query("email"))),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if s := c.Query("status"); s != "" {
		status := model.Status(strings.ToUpper(s))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_status",
				Message: "Unknown status " + s,
				Code:    http.StatusBadRequest,
			})
			return
		}
		opts.Status = status
	}

	for param, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_" + param,
				Message: param + " must be an RFC 3339 timestamp",
				Code:    http.StatusBadRequest,
			})
			return
		}
		*dst = &t
	}

	messages, total, err := h.messages.List(c.Request.Context(), opts)
	if err != nil {
		logrus.Errorf("Failed to list contact messages: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch messages",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, toMessageResponse(m))
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": responses,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetMessage returns a single contact message
func (h *Handlers) GetMessage(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Message not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		logrus.Errorf("Failed to get contact message: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch message",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, toMessageResponse(*msg))
}

// GetMessageStats returns the number of messages per status
func (h *Handlers) GetMessageStats(c *gin.Context) {
	counts, err := h.messages.CountByStatus(c.Request.Context())
	if err != nil {
		logrus.Errorf("Failed to count contact messages: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to count messages",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	if h.metrics != nil {
		h.metrics.SetStatusCounts(counts)
	}

	c.JSON(http.StatusOK, gin.H{
		"counts": counts,
		"total":  total,
	})
}
