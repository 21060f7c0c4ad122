// Package notifier delivers an alert to the site owner for each accepted
// contact message.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"contact-intake-go/config"
	"contact-intake-go/internal/model"
)

// Result is the outcome of a single delivery attempt
type Result struct {
	Success bool
	Err     error
}

// Succeeded returns a successful Result
func Succeeded() Result {
	return Result{Success: true}
}

// Failed returns a failed Result carrying err
func Failed(err error) Result {
	return Result{Success: false, Err: err}
}

// Notifier sends one notification per call. Implementations make a single
// attempt and must honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, msg model.ContactMessage) Result
}

// Func adapts a plain function to Notifier
type Func func(ctx context.Context, msg model.ContactMessage) Result

// Send calls f
func (f Func) Send(ctx context.Context, msg model.ContactMessage) Result {
	return f(ctx, msg)
}

// LogNotifier only logs the message. Used in development.
type LogNotifier struct{}

// Send logs msg and succeeds
func (LogNotifier) Send(ctx context.Context, msg model.ContactMessage) Result {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	logrus.WithFields(logrus.Fields{
		"id":         msg.ID,
		"email":      msg.Email,
		"subject":    msg.Subject,
		"spam_score": msg.SpamScore,
	}).Info("Contact message notification")
	return Succeeded()
}

// Throttled limits the send rate of the wrapped notifier with a token bucket
// shared by all callers.
type Throttled struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewThrottled wraps next, allowing perSec sends per second with the given burst
func NewThrottled(next Notifier, perSec float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Send waits for a token, bounded by ctx, then delegates
func (t *Throttled) Send(ctx context.Context, msg model.ContactMessage) Result {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return Failed(fmt.Errorf("notification throttled: %w", err))
	}
	if waited := time.Since(start); waited > time.Second {
		logrus.Debugf("Notification for %s waited %v for the send rate", msg.ID, waited)
	}
	return t.next.Send(ctx, msg)
}

// New builds the notifier selected by cfg.Driver, throttled when a rate is set
func New(cfg config.NotifierConfig) (Notifier, error) {
	var n Notifier
	switch cfg.Driver {
	case "", "log":
		n = LogNotifier{}
	case "gmail":
		g, err := NewGmailNotifier(cfg)
		if err != nil {
			return nil, err
		}
		n = g
	default:
		return nil, fmt.Errorf("unsupported notifier driver %q", cfg.Driver)
	}

	if cfg.RatePerSec > 0 {
		n = NewThrottled(n, cfg.RatePerSec, cfg.Burst)
	}
	return n, nil
}
