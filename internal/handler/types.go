package handler

import (
	"time"

	"contact-intake-go/internal/model"
	"contact-intake-go/internal/scheduler"
)

// ContactRequest represents the public contact form payload.
// Company is a honeypot field hidden from humans.
type ContactRequest struct {
	Name    string `json:"name" binding:"required,min=2,max=100"`
	Email   string `json:"email" binding:"required,email,max=255"`
	Subject string `json:"subject" binding:"max=200"`
	Message string `json:"message" binding:"required,min=10,max=2000"`
	Company string `json:"company"`
}

// MessageResponse represents a stored contact message in the admin API
type MessageResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Subject     string       `json:"subject"`
	Message     string       `json:"message"`
	SpamScore   int          `json:"spam_score"`
	Status      model.Status `json:"status"`
	IP          string       `json:"ip,omitempty"`
	UserAgent   string       `json:"user_agent,omitempty"`
	Country     string       `json:"country,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at"`
}

func toMessageResponse(m model.ContactMessage) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Subject:     m.Subject,
		Message:     m.Message,
		SpamScore:   m.SpamScore,
		Status:      m.Status,
		IP:          m.IP,
		UserAgent:   m.UserAgent,
		Country:     m.Country,
		CreatedAt:   m.CreatedAt,
		ProcessedAt: m.ProcessedAt,
	}
}

// SweeperStatusResponse represents the sweeper state
type SweeperStatusResponse struct {
	Running   bool                 `json:"running"`
	NextRun   *time.Time           `json:"next_run"`
	LastRun   *time.Time           `json:"last_run"`
	LastSweep scheduler.SweepStats `json:"last_sweep"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Database      string    `json:"database"`
	Sweeper       string    `json:"sweeper"`
	Notifications int       `json:"notifications_in_flight"`
}

// FieldError describes one invalid field of a request
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Code    int          `json:"code"`
	Details []FieldError `json:"details,omitempty"`
}
