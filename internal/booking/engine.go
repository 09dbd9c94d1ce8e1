// Package booking turns a requested slot into a confirmed reservation and
// cancels reservations on behalf of their owner.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/bookingapi"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/model"
	"courtbook/internal/slots"
	"courtbook/internal/store"

	"github.com/rs/zerolog"
)

// ReservationService is the write side of the booking service.
type ReservationService interface {
	CreateReservation(ctx context.Context, token string, r model.NewReservation) (model.Reservation, error)
	DeleteReservation(ctx context.Context, token string, id int64) error
}

// Sessions hands out the token requests are signed with.
type Sessions interface {
	EnsureSession(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// Reconciler is poked after every local mutation.
type Reconciler interface {
	Trigger()
}

// Request asks for one slot.
type Request struct {
	Court       slots.Court
	Date        slots.Date
	Hour        int
	RequesterID int64
	Recurring   bool
}

// Engine validates, checks the local view for conflicts and submits.
type Engine struct {
	api        ReservationService
	sessions   Sessions
	store      *store.Store
	bus        *events.EventBus
	reconciler Reconciler
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine builds an engine. bus and reconciler may be nil.
func NewEngine(api ReservationService, sessions Sessions, s *store.Store, bus *events.EventBus, reconciler Reconciler, logger *zerolog.Logger) *Engine {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking").Logger()
	}
	return &Engine{
		api:        api,
		sessions:   sessions,
		store:      s,
		bus:        bus,
		reconciler: reconciler,
		logger:     l,
		now:        time.Now,
	}
}

// SubmitReservation books req.
//
// Failures leave the store untouched: a validation error or *ConflictError
// is returned before any request is sent, a *bookingapi.RemoteError after the
// service refused or could not be reached. On success the confirmed
// reservation is added to the store, which stays stale until reconciled.
func (e *Engine) SubmitReservation(ctx context.Context, req Request) (model.Reservation, error) {
	key, err := e.validate(req)
	if err != nil {
		metrics.IncReservationSubmitted(metrics.OutcomeInvalid)
		return model.Reservation{}, err
	}

	if holder, taken := e.store.Snapshot().OccupiedBy(key); taken {
		metrics.IncReservationSubmitted(metrics.OutcomeConflict)
		e.logger.Info().
			Str("court", key.Court.String()).
			Str("date", key.Date.String()).
			Int("hour", key.Hour).
			Int64("held_by", holder.ID).
			Msg("slot already taken")
		return model.Reservation{}, &ConflictError{Key: key, ReservationID: holder.ID}
	}

	token, err := e.sessions.EnsureSession(ctx)
	if err != nil {
		metrics.IncReservationSubmitted(metrics.OutcomeRemoteError)
		return model.Reservation{}, fmt.Errorf("submit reservation: %w", err)
	}

	start, _ := slots.ToCanonicalTimestamp(key.Date, key.Hour)
	nr := model.NewReservation{
		Court:       key.Court,
		Start:       start,
		RequesterID: req.RequesterID,
		CreatedAt:   slots.TimestampOf(e.now()),
	}
	if req.Recurring {
		nr.Recurring = 1
	}

	created, err := e.api.CreateReservation(ctx, token, nr)
	if err != nil {
		metrics.IncReservationSubmitted(metrics.OutcomeRemoteError)
		e.onRemoteFailure(ctx, err)
		e.logger.Warn().Err(err).Str("date", key.Date.String()).Int("hour", key.Hour).Msg("reservation rejected by service")
		return model.Reservation{}, err
	}

	e.store.AppendConfirmed(created)
	metrics.IncReservationSubmitted(metrics.OutcomeConfirmed)
	e.logger.Info().
		Int64("reservation_id", created.ID).
		Int64("requester_id", created.RequesterID).
		Str("court", key.Court.String()).
		Str("date", key.Date.String()).
		Int("hour", key.Hour).
		Msg("reservation confirmed")
	e.publish(events.ReservationCreated, created)
	return created, nil
}

// Cancel deletes a reservation owned by requestingUserID.
func (e *Engine) Cancel(ctx context.Context, reservationID, requestingUserID int64) error {
	existing, ok := e.store.Snapshot().FindReservation(reservationID)
	if !ok {
		metrics.IncReservationCancelled(metrics.OutcomeNotFound)
		return fmt.Errorf("cancel %d: %w", reservationID, ErrReservationNotFound)
	}
	if existing.RequesterID != requestingUserID {
		metrics.IncReservationCancelled(metrics.OutcomeNotOwner)
		return fmt.Errorf("cancel %d: %w", reservationID, ErrNotOwner)
	}

	token, err := e.sessions.EnsureSession(ctx)
	if err != nil {
		metrics.IncReservationCancelled(metrics.OutcomeRemoteError)
		return fmt.Errorf("cancel %d: %w", reservationID, err)
	}
	if err := e.api.DeleteReservation(ctx, token, reservationID); err != nil {
		metrics.IncReservationCancelled(metrics.OutcomeRemoteError)
		e.onRemoteFailure(ctx, err)
		return err
	}

	e.store.RemoveByID(reservationID)
	metrics.IncReservationCancelled(metrics.OutcomeConfirmed)
	e.logger.Info().Int64("reservation_id", reservationID).Msg("reservation cancelled")
	e.publish(events.ReservationCancelled, existing.Reservation)
	return nil
}

func (e *Engine) validate(req Request) (slots.Key, error) {
	if req.RequesterID <= 0 {
		return slots.Key{}, fmt.Errorf("submit reservation: %w", ErrInvalidRequester)
	}
	if req.Date.IsZero() {
		return slots.Key{}, fmt.Errorf("submit reservation: missing date")
	}
	key, err := slots.NewKey(req.Court, req.Date, req.Hour)
	if err != nil {
		return slots.Key{}, fmt.Errorf("submit reservation: %w", err)
	}
	return key, nil
}

func (e *Engine) onRemoteFailure(ctx context.Context, err error) {
	if bookingapi.IsUnauthorized(err) {
		e.sessions.Invalidate(ctx)
	}
}

func (e *Engine) publish(eventType string, r model.Reservation) {
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: eventType, Reservation: r})
	}
	if e.reconciler != nil {
		e.reconciler.Trigger()
	}
}

// IsConflict reports whether err is a local slot conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
