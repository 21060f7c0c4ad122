package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a stored contact message
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
	StatusSpam    Status = "SPAM"
)

// Statuses lists every status in display order
var Statuses = []Status{StatusPending, StatusSent, StatusFailed, StatusSpam}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusSpam:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s
func (s Status) Terminal() bool {
	return s != StatusPending
}

// ContactMessage represents a contact form submission recorded in the database
type ContactMessage struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name        string     `json:"name" gorm:"type:varchar(100);not null"`
	Email       string     `json:"email" gorm:"type:varchar(255);not null;index"`
	Subject     string     `json:"subject" gorm:"type:varchar(200)"`
	Message     string     `json:"message" gorm:"type:text;not null"`
	SpamScore   int        `json:"spam_score" gorm:"not null;default:0"`
	Status      Status     `json:"status" gorm:"type:varchar(20);not null;index"`
	IP          string     `json:"ip,omitempty" gorm:"type:varchar(64)"`
	UserAgent   string     `json:"user_agent,omitempty" gorm:"type:varchar(512)"`
	Country     string     `json:"country,omitempty" gorm:"type:varchar(8)"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// TableName specifies the table name for ContactMessage
func (ContactMessage) TableName() string {
	return "contact_messages"
}

// BeforeCreate assigns the identifier when the caller did not
func (m *ContactMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ContactSubmission is the validated input of the public contact form
type ContactSubmission struct {
	Name     string
	Email    string
	Subject  string
	Message  string
	Honeypot string
}

// RequestMetadata is request information captured at submission time
type RequestMetadata struct {
	IP        string
	UserAgent string
	Country   string
}

// ListOptions carries filter and pagination parameters for listing contact messages
type ListOptions struct {
	// Status filters by message status; empty returns every status.
	Status Status
	Email  string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}
