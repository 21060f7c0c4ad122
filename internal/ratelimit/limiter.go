// Package ratelimit implements the fixed-window counters that protect the
// contact form.
//
// Two windows are enforced per client: a short one against bursts and a daily
// one against slow, persistent abuse. Each window is counted under its own key
// so exhausting one never resets the other. Decisions never fail: a store error
// is logged and the request is allowed.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Window describes one fixed window
type Window struct {
	Name   string
	Limit  int
	Length time.Duration
}

// Result is the outcome of counting one request against a window
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// Decision is the outcome of CheckContact, ready to be written on a response
type Decision struct {
	Allowed bool
	// Window names the window that denied the request, empty when allowed.
	Window  string
	Headers map[string]string
	Message string
}

// Store counts hits per key inside fixed windows.
// Hit must not increment the counter when the window is exhausted.
type Store interface {
	Hit(ctx context.Context, key string, w Window, now time.Time) (Result, error)
}

// Recorder receives every decision; it is satisfied by the metrics package
type Recorder interface {
	RateLimited(window string)
}

// Limiter applies the short and daily contact windows
type Limiter struct {
	store    Store
	short    Window
	daily    Window
	now      func() time.Time
	recorder Recorder
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithRecorder reports denials to r
func WithRecorder(r Recorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

// DefaultShortWindow and DefaultDailyWindow are the contact form limits
var (
	DefaultShortWindow = Window{Name: "short", Limit: 5, Length: 10 * time.Minute}
	DefaultDailyWindow = Window{Name: "daily", Limit: 20, Length: 24 * time.Hour}
)

// NewLimiter creates a limiter over store with the given windows
func NewLimiter(store Store, short, daily Window, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		short: short,
		daily: daily,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckShortTerm counts a request against the short window
func (l *Limiter) CheckShortTerm(ctx context.Context, clientKey string) Result {
	return l.check(ctx, "contact:"+l.short.Name+":"+clientKey, l.short)
}

// CheckDaily counts a request against the daily window
func (l *Limiter) CheckDaily(ctx context.Context, clientKey string) Result {
	return l.check(ctx, "contact:"+l.daily.Name+":"+clientKey, l.daily)
}

// CheckContact evaluates the short window first and the daily window only when
// the short one allows.
func (l *Limiter) CheckContact(ctx context.Context, clientKey string) Decision {
	short := l.CheckShortTerm(ctx, clientKey)
	if !short.Allowed {
		retry := l.retryAfter(short.ResetTime)
		return l.deny(l.short.Name, short, retry,
			fmt.Sprintf("Trop de messages envoyés. Veuillez réessayer dans %d minute(s).", minutes(retry)))
	}

	daily := l.CheckDaily(ctx, clientKey)
	if !daily.Allowed {
		retry := l.retryAfter(daily.ResetTime)
		return l.deny(l.daily.Name, daily, retry,
			"Limite quotidienne de messages atteinte. Veuillez réessayer demain.")
	}

	headers := rateHeaders(short)
	headers["X-RateLimit-Daily-Remaining"] = strconv.Itoa(daily.Remaining)
	return Decision{Allowed: true, Headers: headers}
}

func (l *Limiter) check(ctx context.Context, key string, w Window) Result {
	now := l.now()
	res, err := l.store.Hit(ctx, key, w, now)
	if err != nil {
		logrus.WithError(err).WithField("window", w.Name).Warn("Rate limit store unavailable, allowing request")
		return Result{Allowed: true, Limit: w.Limit, Remaining: w.Limit, ResetTime: now.Add(w.Length)}
	}
	return res
}

func (l *Limiter) deny(window string, res Result, retry int, message string) Decision {
	if l.recorder != nil {
		l.recorder.RateLimited(window)
	}
	headers := rateHeaders(res)
	headers["Retry-After"] = strconv.Itoa(retry)
	return Decision{
		Allowed: false,
		Window:  window,
		Headers: headers,
		Message: message,
	}
}

// retryAfter is ceil((reset - now) / 1s), never negative
func (l *Limiter) retryAfter(reset time.Time) int {
	d := reset.Sub(l.now())
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func minutes(seconds int) int {
	return int(math.Ceil(float64(seconds) / 60))
}

func rateHeaders(res Result) map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(res.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(res.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(res.ResetTime.Unix(), 10),
	}
}

// decide applies the fixed-window rule to an existing counter.
// count is the number of hits already recorded and reset the end of the window;
// a zero reset means no record exists.
func decide(count int, reset time.Time, w Window, now time.Time) (newCount int, newReset time.Time, res Result) {
	if reset.IsZero() || now.After(reset) {
		newReset = now.Add(w.Length)
		return 1, newReset, Result{Allowed: true, Limit: w.Limit, Remaining: w.Limit - 1, ResetTime: newReset}
	}
	if count >= w.Limit {
		return count, reset, Result{Allowed: false, Limit: w.Limit, Remaining: 0, ResetTime: reset}
	}
	count++
	return count, reset, Result{Allowed: true, Limit: w.Limit, Remaining: w.Limit - count, ResetTime: reset}
}
