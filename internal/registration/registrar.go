// Package registration tells the platform where the webhook lives. It runs
// in the background after the listener is up and never stops the server.
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/mock_registration.go -package=mocks github.com/mattjoyce/wordbot/internal/registration EndpointSetter

// EndpointSetter is the REST call the registrar retries.
type EndpointSetter interface {
	SetInteractionsEndpointURL(ctx context.Context, url string) error
}

// Status is the registrar's lifecycle state.
type Status string

const (
	StatusDisabled   Status = "disabled"
	StatusPending    Status = "pending"
	StatusRegistered Status = "registered"
	StatusFailed     Status = "failed"
)

// Snapshot is a point-in-time view of the registration.
type Snapshot struct {
	Status    Status    `json:"status"`
	URL       string    `json:"url,omitempty"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ready reports whether the registration no longer blocks readiness.
func (s Snapshot) Ready() bool {
	return s.Status == StatusRegistered || s.Status == StatusDisabled
}

// Config bounds the retry loop.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int // 0 = until success or shutdown
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registrar) { r.logger = l }
}

// WithObserver is called with every status change.
func WithObserver(fn func(Snapshot)) Option {
	return func(r *Registrar) { r.observe = fn }
}

// WithAttemptHook is called after every attempt with "success" or "error".
func WithAttemptHook(fn func(result string)) Option {
	return func(r *Registrar) { r.onAttempt = fn }
}

// Registrar retries SetInteractionsEndpointURL with exponential backoff and
// full jitter until it succeeds, runs out of attempts, or is cancelled.
type Registrar struct {
	setter    EndpointSetter
	url       string
	cfg       Config
	logger    *slog.Logger
	observe   func(Snapshot)
	onAttempt func(string)
	jitter    func(n int64) int64
	now       func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	startOnce sync.Once
	done      chan struct{}
}

// New creates a registrar. A nil setter or empty url yields a disabled
// registrar whose Start does nothing.
func New(setter EndpointSetter, url string, cfg Config, opts ...Option) *Registrar {
	r := &Registrar{
		setter: setter,
		url:    url,
		cfg:    cfg,
		logger: slog.Default(),
		jitter: rand.Int64N,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.InitialBackoff <= 0 {
		r.cfg.InitialBackoff = time.Second
	}
	if r.cfg.MaxBackoff < r.cfg.InitialBackoff {
		r.cfg.MaxBackoff = r.cfg.InitialBackoff
	}

	status := StatusPending
	if setter == nil || url == "" {
		status = StatusDisabled
	}
	r.snap = Snapshot{Status: status, URL: url, UpdatedAt: r.now()}
	return r
}

// Status returns the current snapshot.
func (r *Registrar) Status() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Done is closed when the background loop has exited.
func (r *Registrar) Done() <-chan struct{} {
	return r.done
}

// Start launches the background loop once. It returns immediately.
func (r *Registrar) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		if r.Status().Status == StatusDisabled {
			close(r.done)
			return
		}
		go r.run(ctx)
	})
}

func (r *Registrar) run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("endpoint registration panicked", "panic", fmt.Sprint(p))
			r.update(func(s *Snapshot) {
				s.Status = StatusFailed
				s.LastError = fmt.Sprintf("panic: %v", p)
			})
		}
	}()

	for attempt := 1; ; attempt++ {
		err := r.setter.SetInteractionsEndpointURL(ctx, r.url)
		if err == nil {
			r.attempted("success")
			r.update(func(s *Snapshot) {
				s.Status = StatusRegistered
				s.Attempts = attempt
				s.LastError = ""
			})
			r.logger.Info("interactions endpoint registered", "url", r.url, "attempts", attempt)
			return
		}
		r.attempted("error")

		if ctx.Err() != nil {
			r.update(func(s *Snapshot) {
				s.Attempts = attempt
				s.LastError = err.Error()
			})
			r.logger.Info("endpoint registration stopped", "attempts", attempt)
			return
		}

		if r.cfg.MaxAttempts > 0 && attempt >= r.cfg.MaxAttempts {
			r.update(func(s *Snapshot) {
				s.Status = StatusFailed
				s.Attempts = attempt
				s.LastError = err.Error()
			})
			r.logger.Error("endpoint registration gave up", "attempts", attempt, "error", err)
			return
		}

		backoff := r.backoff(attempt)
		r.update(func(s *Snapshot) {
			s.Attempts = attempt
			s.LastError = err.Error()
		})
		r.logger.Warn("endpoint registration failed, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)

		if !wait(ctx, backoff) {
			r.logger.Info("endpoint registration stopped", "attempts", attempt)
			return
		}
	}
}

// backoff returns a full-jitter delay for the given attempt (1-based).
func (r *Registrar) backoff(attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	raw := time.Duration(float64(r.cfg.InitialBackoff) * multiplier)
	if raw > r.cfg.MaxBackoff || raw <= 0 {
		raw = r.cfg.MaxBackoff
	}
	return time.Duration(r.jitter(int64(raw) + 1))
}

func (r *Registrar) attempted(result string) {
	if r.onAttempt != nil {
		r.onAttempt(result)
	}
}

func (r *Registrar) update(fn func(*Snapshot)) {
	r.mu.Lock()
	prev := r.snap.Status
	fn(&r.snap)
	r.snap.UpdatedAt = r.now()
	snap := r.snap
	r.mu.Unlock()

	if r.observe != nil && snap.Status != prev {
		r.observe(snap)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
