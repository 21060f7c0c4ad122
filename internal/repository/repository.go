package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"contact-intake-go/internal/model"
)

var (
	// ErrNotFound is returned when no contact message has the requested id
	ErrNotFound = errors.New("contact message not found")
	// ErrInvalidTransition is returned when a status change is not allowed,
	// including when the message already left PENDING.
	ErrInvalidTransition = errors.New("invalid contact message status transition")
)

// ContactRepository is the persistence contract for contact messages
type ContactRepository interface {
	Create(ctx context.Context, msg *model.ContactMessage) error
	UpdateStatus(ctx context.Context, id string, status model.Status, processedAt time.Time) error
	Get(ctx context.Context, id string) (*model.ContactMessage, error)
	List(ctx context.Context, opts model.ListOptions) ([]model.ContactMessage, int64, error)
	CountByStatus(ctx context.Context) (map[model.Status]int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.ContactMessage, error)
}

// Repository is the gorm implementation of ContactRepository
type Repository struct {
	db *gorm.DB
}

// Ensure Repository implements ContactRepository at compile time.
var _ ContactRepository = (*Repository)(nil)

// New creates a repository backed by db
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new contact message. The row exists once Create returns nil.
func (r *Repository) Create(ctx context.Context, msg *model.ContactMessage) error {
	if !msg.Status.Valid() {
		return fmt.Errorf("cannot create contact message with status %q", msg.Status)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.ProcessedAt = nil

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

// UpdateStatus moves a PENDING message to SENT or FAILED and stamps processedAt.
// It succeeds at most once per message.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status model.Status, processedAt time.Time) error {
	if status != model.StatusSent && status != model.StatusFailed {
		return fmt.Errorf("%w: PENDING -> %s", ErrInvalidTransition, status)
	}

	result := r.db.WithContext(ctx).
		Model(&model.ContactMessage{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": processedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update status of contact message %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: message %s is not pending", ErrInvalidTransition, id)
	}
	return nil
}

// Get returns a single contact message
func (r *Repository) Get(ctx context.Context, id string) (*model.ContactMessage, error) {
	var msg model.ContactMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact message %s: %w", id, err)
	}
	return &msg, nil
}

// List returns messages matching opts, newest first, with the total match count
func (r *Repository) List(ctx context.Context, opts model.ListOptions) ([]model.ContactMessage, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.ContactMessage{})
		if opts.Status != "" {
			q = q.Where("status = ?", opts.Status)
		}
		if opts.Email != "" {
			q = q.Where("email = ?", opts.Email)
		}
		if opts.Since != nil {
			q = q.Where("created_at >= ?", *opts.Since)
		}
		if opts.Until != nil {
			q = q.Where("created_at < ?", *opts.Until)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contact messages: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var messages []model.ContactMessage
	err := filtered().
		Order("created_at DESC").
		Offset(opts.Offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contact messages: %w", err)
	}
	return messages, total, nil
}

// CountByStatus returns the number of messages per status; every status is present
func (r *Repository) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	var rows []struct {
		Status model.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.ContactMessage{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count contact messages by status: %w", err)
	}

	counts := make(map[model.Status]int64, len(model.Statuses))
	for _, s := range model.Statuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ListStalePending returns PENDING messages created before createdBefore, oldest first
func (r *Repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.ContactMessage, error) {
	var messages []model.ContactMessage
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.StatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending messages: %w", err)
	}
	return messages, nil
}
