package store

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/bookingapi"
	"courtbook/internal/events"

	"github.com/rs/zerolog"
)

// Sessions hands out the token reloads run with.
type Sessions interface {
	EnsureSession(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

const (
	defaultRetryDelay  = 2 * time.Second
	defaultMaxAttempts = 5
)

// Reconciler brings a stale store back in line with the service. Writers
// apply their change locally, then call Trigger; Run performs the reload in
// the background.
type Reconciler struct {
	store    *Store
	sessions Sessions
	logger   zerolog.Logger

	interval    time.Duration
	retryDelay  time.Duration
	maxAttempts int

	trigger chan struct{}
}

// NewReconciler builds a reconciler. A positive interval also reloads periodically.
func NewReconciler(s *Store, sessions Sessions, interval time.Duration, logger *zerolog.Logger) *Reconciler {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "reconciler").Logger()
	}
	return &Reconciler{
		store:       s,
		sessions:    sessions,
		logger:      l,
		interval:    interval,
		retryDelay:  defaultRetryDelay,
		maxAttempts: defaultMaxAttempts,
		trigger:     make(chan struct{}, 1),
	}
}

// Subscribe triggers a reconcile for every local mutation published on bus.
func (r *Reconciler) Subscribe(bus *events.EventBus) {
	handler := func(events.Event) error {
		r.Trigger()
		return nil
	}
	bus.Subscribe(events.ReservationCreated, handler)
	bus.Subscribe(events.ReservationCancelled, handler)
}

// Trigger requests a reload. It never blocks; triggers that arrive while one
// is pending collapse into it.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run serves triggers until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
		case <-tick:
		}
		r.converge(ctx)
	}
}

// converge retries until a reload comes back complete.
func (r *Reconciler) converge(ctx context.Context) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		warnings, err := r.Reconcile(ctx)
		if err == nil && len(warnings) == 0 {
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn().Err(err).Int("warnings", len(warnings)).Int("attempt", attempt).Msg("reconcile incomplete")

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.retryDelay):
		}
	}
	r.logger.Error().Int("attempts", r.maxAttempts).Msg("store did not converge")
}

// Reconcile performs one reload with the current session. A token the service
// rejects is invalidated and the reload repeated once with a fresh session.
func (r *Reconciler) Reconcile(ctx context.Context) (Warnings, error) {
	token, err := r.sessions.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}
	warnings, err := r.store.Reload(ctx, token)
	if err != nil || !warnings.unauthorized() {
		return warnings, err
	}

	r.logger.Info().Msg("token rejected during reload, logging in again")
	r.sessions.Invalidate(ctx)
	if token, err = r.sessions.EnsureSession(ctx); err != nil {
		return warnings, err
	}
	return r.store.Reload(ctx, token)
}

func (w Warnings) unauthorized() bool {
	for _, warning := range w {
		if bookingapi.IsUnauthorized(warning.Err) {
			return true
		}
	}
	return false
}

// Err joins the warnings into a single error, nil when there are none.
func (w Warnings) Err() error {
	errs := make([]error, 0, len(w))
	for _, warning := range w {
		errs = append(errs, warning)
	}
	return errors.Join(errs...)
}
