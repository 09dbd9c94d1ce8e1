// Package club ties the session, store, engine and history view into one
// explicit context with an init/refresh/teardown lifecycle.
package club

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"courtbook/internal/booking"
	"courtbook/internal/bookingapi"
	"courtbook/internal/events"
	"courtbook/internal/history"
	"courtbook/internal/model"
	"courtbook/internal/session"
	"courtbook/internal/slots"
	"courtbook/internal/store"

	"github.com/rs/zerolog"
)

var ErrNoUserSelected = errors.New("no member selected")

// API is everything the club needs from the booking service.
type API interface {
	session.Authenticator
	store.Fetcher
	booking.ReservationService
}

// Options tune the context. Zero values pick the defaults.
type Options struct {
	ReconcileInterval time.Duration
	PageSize          int
	Windows           []history.Window
	Clock             slots.Clock
}

// Context is the single club session of the process.
type Context struct {
	sessions   *session.Manager
	store      *store.Store
	reconciler *store.Reconciler
	engine     *booking.Engine
	view       *history.View
	bus        *events.EventBus
	logger     zerolog.Logger
	clock      slots.Clock

	mu       sync.RWMutex
	selected int64
	started  bool
	stop     context.CancelFunc
	done     chan struct{}
}

// New wires a context. tokens may be nil to keep the token in memory only.
func New(api API, creds bookingapi.Credentials, tokens session.TokenStore, opts Options, logger *zerolog.Logger) *Context {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	clock := opts.Clock
	if clock == nil {
		clock = slots.SystemClock
	}

	bus := events.NewEventBus(&l)
	sessions := session.NewManager(api, creds, tokens, &l)
	s := store.New(api, &l)
	s.UseEventBus(bus)
	reconciler := store.NewReconciler(s, sessions, opts.ReconcileInterval, &l)
	reconciler.Subscribe(bus)
	// the bus subscription already triggers the reconciler
	engine := booking.NewEngine(api, sessions, s, bus, nil, &l)

	return &Context{
		sessions:   sessions,
		store:      s,
		reconciler: reconciler,
		engine:     engine,
		view:       history.NewView(s, opts.PageSize, opts.Windows),
		bus:        bus,
		logger:     l.With().Str("component", "club").Logger(),
		clock:      clock,
	}
}

// Init establishes the session, then loads the store, then starts the
// background reconciler. An auth failure is returned and nothing is started.
func (c *Context) Init(ctx context.Context) error {
	if _, err := c.sessions.EnsureSession(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	warnings, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	c.logWarnings(warnings)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.stop = cancel
		c.done = make(chan struct{})
		c.started = true
		go func(done chan struct{}) {
			defer close(done)
			c.reconciler.Run(runCtx)
		}(c.done)
	}
	c.logger.Info().Int("reservations", len(c.store.Snapshot().Reservations)).Msg("club context ready")
	return nil
}

// Refresh re-validates the session and reloads the store.
func (c *Context) Refresh(ctx context.Context) error {
	if err := c.sessions.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	warnings, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	c.logWarnings(warnings)
	return nil
}

// SelectUser makes id the acting member and reloads everything.
func (c *Context) SelectUser(ctx context.Context, id int64) (model.User, error) {
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()

	warnings, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("select user %d: %w", id, err)
	}
	c.logWarnings(warnings)

	u, ok := c.store.LookupUser(id)
	if !ok {
		c.logger.Warn().Int64("user_id", id).Msg("selected member not in user list")
	}
	return u, nil
}

// SelectedUser returns the acting member id, 0 when none.
func (c *Context) SelectedUser() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Book reserves a slot for the selected member.
func (c *Context) Book(ctx context.Context, court slots.Court, date slots.Date, hour int) (model.Reservation, error) {
	userID := c.SelectedUser()
	if userID == 0 {
		return model.Reservation{}, ErrNoUserSelected
	}
	return c.engine.SubmitReservation(ctx, booking.Request{Court: court, Date: date, Hour: hour, RequesterID: userID})
}

// Cancel deletes one of the selected member's reservations.
func (c *Context) Cancel(ctx context.Context, reservationID int64) error {
	userID := c.SelectedUser()
	if userID == 0 {
		return ErrNoUserSelected
	}
	return c.engine.Cancel(ctx, reservationID, userID)
}

// DayGrid renders every court and hour of date against the current snapshot.
func (c *Context) DayGrid(date slots.Date) []slots.Row {
	return slots.BuildDayGrid(date, c.store.Snapshot())
}

// BookableDates lists today and the next days the booking form offers.
func (c *Context) BookableDates() []slots.Date {
	return slots.Horizon(slots.DateOf(c.clock()), slots.DefaultHorizonDays)
}

// History renders a page of the selected member's past reservations.
func (c *Context) History(page int, now time.Time) (history.Result, error) {
	userID := c.SelectedUser()
	if userID == 0 {
		return history.Result{}, ErrNoUserSelected
	}
	return c.view.Build(userID, page, now), nil
}

// ExportHistory writes the selected member's whole history as XLSX.
func (c *Context) ExportHistory(w io.Writer, now time.Time) error {
	userID := c.SelectedUser()
	if userID == 0 {
		return ErrNoUserSelected
	}
	return history.ExportXLSX(w, c.view.All(userID, now))
}

// SetContendedWindows replaces the history highlighting windows.
func (c *Context) SetContendedWindows(windows []history.Window) {
	c.view.SetWindows(windows)
}

// Snapshot exposes the current store view.
func (c *Context) Snapshot() store.Snapshot {
	return c.store.Snapshot()
}

// Session exposes the session state, e.g. for readiness checks.
func (c *Context) Session() session.State {
	return c.sessions.State()
}

// Events is the bus local mutations and reloads are published on.
func (c *Context) Events() *events.EventBus {
	return c.bus
}

// Stop halts the background reconciler and waits for it. The session and its
// stored token are kept so a later Init can reuse them.
func (c *Context) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.started = false
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown stops the reconciler and clears the session.
func (c *Context) Teardown(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.selected = 0
	c.mu.Unlock()
	return c.sessions.Teardown(ctx)
}

func (c *Context) logWarnings(warnings store.Warnings) {
	for _, w := range warnings {
		c.logger.Warn().Err(w.Err).Str("collection", w.Collection).Msg("partial reload")
	}
}
