// Package intake orchestrates a contact submission: score it, store it,
// answer the caller, then notify the owner in the background.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"contact-intake-go/internal/metrics"
	"contact-intake-go/internal/model"
	"contact-intake-go/internal/notifier"
	"contact-intake-go/internal/spam"
)

// Messages returned to the submitter
const (
	AcceptedMessage = "Votre message a bien été envoyé. Nous vous répondrons dans les plus brefs délais."
	ReviewMessage   = "Votre message a été reçu et sera examiné."
)

const (
	defaultNotifyTimeout = 30 * time.Second
	statusUpdateTimeout  = 10 * time.Second
)

// Store is the part of the message store the pipeline needs
type Store interface {
	Create(ctx context.Context, msg *model.ContactMessage) error
	UpdateStatus(ctx context.Context, id string, status model.Status, processedAt time.Time) error
}

// Result is returned to the submitter once the message is stored
type Result struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	SpamScore int    `json:"spamScore"`
	IsSpam    bool   `json:"isSpam"`
	Message   string `json:"message"`
}

// Pipeline handles accepted contact submissions
type Pipeline struct {
	store         Store
	notifier      notifier.Notifier
	supervisor    *Supervisor
	metrics       *metrics.Metrics
	notifyTimeout time.Duration
	now           func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records pipeline metrics into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithNotifyTimeout bounds each notification attempt
func WithNotifyTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.notifyTimeout = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline. Background notifications run on sup.
func NewPipeline(store Store, n notifier.Notifier, sup *Supervisor, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		notifier:      n,
		supervisor:    sup,
		notifyTimeout: defaultNotifyTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return p
}

// Normalize trims every field and lower-cases the email
func Normalize(sub model.ContactSubmission) model.ContactSubmission {
	return model.ContactSubmission{
		Name:     strings.TrimSpace(sub.Name),
		Email:    strings.ToLower(strings.TrimSpace(sub.Email)),
		Subject:  strings.TrimSpace(sub.Subject),
		Message:  strings.TrimSpace(sub.Message),
		Honeypot: strings.TrimSpace(sub.Honeypot),
	}
}

// Submit scores and stores a validated submission. It returns once the row
// exists; the owner notification for non-spam messages continues in the
// background and is never awaited. A storage error is returned as is and
// nothing else happens.
func (p *Pipeline) Submit(ctx context.Context, sub model.ContactSubmission, meta model.RequestMetadata) (Result, error) {
	sub = Normalize(sub)

	breakdown := spam.Analyze(sub)
	score := breakdown.Total()
	isSpam := spam.IsSpam(score)

	status := model.StatusPending
	if isSpam {
		status = model.StatusSpam
	}

	msg := &model.ContactMessage{
		ID:        uuid.NewString(),
		Name:      sub.Name,
		Email:     sub.Email,
		Subject:   sub.Subject,
		Message:   sub.Message,
		SpamScore: score,
		Status:    status,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Country:   meta.Country,
		CreatedAt: p.now(),
	}

	if err := p.store.Create(ctx, msg); err != nil {
		p.metrics.Submission(metrics.OutcomeError)
		return Result{}, fmt.Errorf("failed to store contact message: %w", err)
	}
	p.metrics.SpamScores.Observe(float64(score))

	if isSpam {
		p.metrics.Submission(metrics.OutcomeSpam)
		logrus.WithFields(logrus.Fields{
			"id":       msg.ID,
			"score":    score,
			"keywords": breakdown.Keywords,
			"links":    breakdown.Links,
			"honeypot": breakdown.Honeypot,
		}).Warn("Contact message flagged as spam")
		return Result{
			Success:   true,
			ID:        msg.ID,
			SpamScore: score,
			IsSpam:    true,
			Message:   ReviewMessage,
		}, nil
	}

	p.metrics.Submission(metrics.OutcomeAccepted)
	logrus.Infof("Contact message %s stored (spam score %d)", msg.ID, score)

	snapshot := *msg
	if !p.supervisor.Go(func(taskCtx context.Context) { p.notify(taskCtx, snapshot) }) {
		logrus.Warnf("Not notifying for contact message %s: shutting down, left pending", msg.ID)
	}

	return Result{
		Success:   true,
		ID:        msg.ID,
		SpamScore: score,
		IsSpam:    false,
		Message:   AcceptedMessage,
	}, nil
}

// notify makes one delivery attempt and settles the message status once
func (p *Pipeline) notify(ctx context.Context, msg model.ContactMessage) {
	start := time.Now()

	sendCtx, cancel := context.WithTimeout(ctx, p.notifyTimeout)
	res := p.notifier.Send(sendCtx, msg)
	cancel()

	p.metrics.Notification(res.Success, time.Since(start).Seconds())

	status := model.StatusSent
	if !res.Success {
		status = model.StatusFailed
		logrus.Errorf("Notification for contact message %s failed: %v", msg.ID, res.Err)
	}

	// the update must land even when the task context was cancelled
	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer cancelUpdate()

	if err := p.store.UpdateStatus(updateCtx, msg.ID, status, p.now()); err != nil {
		p.metrics.StatusUpdateFailures.Inc()
		logrus.Errorf("Failed to set status %s on contact message %s: %v", status, msg.ID, err)
		return
	}
	logrus.Infof("Contact message %s settled as %s", msg.ID, status)
}
