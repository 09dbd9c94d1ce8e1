// Package store mirrors the remote reservations and users and serves the
// occupied-slot view the booking engine checks before submitting.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/model"

	"github.com/rs/zerolog"
)

// Fetcher reads the two remote collections.
type Fetcher interface {
	ListReservations(ctx context.Context, token string) ([]model.Reservation, error)
	ListUsers(ctx context.Context, token string) ([]model.User, error)
}

// usersCache is implemented by fetchers that keep the user list in a cache.
type usersCache interface {
	InvalidateUsersCache(ctx context.Context)
}

// Collection names used in warnings.
const (
	CollectionReservations = "reservas"
	CollectionUsers        = "usuarios"
)

// Warning reports a collection that could not be fetched; it was loaded as empty.
type Warning struct {
	Collection string
	Err        error
}

func (w Warning) Error() string {
	return fmt.Sprintf("fetch %s: %v", w.Collection, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

type Warnings []Warning

// Store holds the current snapshot.
type Store struct {
	api    Fetcher
	logger zerolog.Logger
	now    func() time.Time
	bus    *events.EventBus

	mu   sync.RWMutex
	snap Snapshot
}

func New(api Fetcher, logger *zerolog.Logger) *Store {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "store").Logger()
	}
	return &Store{
		api:    api,
		logger: l,
		now:    time.Now,
		snap:   newSnapshot(nil, nil, time.Time{}, false),
	}
}

// UseEventBus publishes a StoreReloaded event after every reload.
func (s *Store) UseEventBus(bus *events.EventBus) {
	s.bus = bus
}

// Snapshot returns the current view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// LookupUser finds a member in the current snapshot.
func (s *Store) LookupUser(id int64) (model.User, bool) {
	return s.Snapshot().LookupUser(id)
}

// Reload fetches both collections and replaces the snapshot. A collection that
// fails to load is replaced by an empty one and reported as a Warning; the
// other collection is still used. Users are always refetched, bypassing any
// fetcher cache. Only a cancelled context returns an error,
// and then the snapshot is left as it was.
func (s *Store) Reload(ctx context.Context, token string) (Warnings, error) {
	if c, ok := s.api.(usersCache); ok {
		c.InvalidateUsersCache(ctx)
	}

	var (
		wg                        sync.WaitGroup
		reservations              []model.Reservation
		users                     []model.User
		reservationsErr, usersErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		reservations, reservationsErr = s.api.ListReservations(ctx, token)
	}()
	go func() {
		defer wg.Done()
		users, usersErr = s.api.ListUsers(ctx, token)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}

	var warnings Warnings
	if reservationsErr != nil {
		warnings = append(warnings, Warning{Collection: CollectionReservations, Err: reservationsErr})
		reservations = nil
	}
	if usersErr != nil {
		warnings = append(warnings, Warning{Collection: CollectionUsers, Err: usersErr})
		users = nil
	}

	snap := newSnapshot(reservations, users, s.now(), false)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	for _, w := range warnings {
		s.logger.Warn().Err(w.Err).Str("collection", w.Collection).Msg("collection loaded as empty")
	}
	if len(snap.Gaps) > 0 {
		s.logger.Warn().Int("count", len(snap.Gaps)).Msg("reservations with unknown requester")
	}
	result := "ok"
	if len(warnings) > 0 {
		result = "partial"
	}
	metrics.IncStoreReload(result)
	metrics.SetJoinGaps(len(snap.Gaps))
	active := snap.Active(snap.LoadedAt)
	metrics.SetUpcoming(len(active))
	s.logger.Debug().
		Int("reservations", len(snap.Reservations)).
		Int("upcoming", len(active)).
		Int("users", len(snap.Users)).
		Msg("store reloaded")

	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.StoreReloaded, Count: len(snap.Reservations)})
	}
	return warnings, nil
}

// AppendConfirmed adds a reservation the service just accepted. The result is
// Stale until a reload confirms it.
func (s *Store) AppendConfirmed(r model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations := make([]model.Reservation, 0, len(s.snap.Reservations)+1)
	reservations = append(reservations, s.snap.Reservations...)
	reservations = append(reservations, r)
	s.snap = newSnapshot(reservations, s.snap.Users, s.snap.LoadedAt, true)
}

// RemoveByID drops a reservation the service just deleted. It reports whether
// the reservation was present.
func (s *Store) RemoveByID(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations := make([]model.Reservation, 0, len(s.snap.Reservations))
	found := false
	for _, r := range s.snap.Reservations {
		if r.ID == id {
			found = true
			continue
		}
		reservations = append(reservations, r)
	}
	if !found {
		return false
	}
	s.snap = newSnapshot(reservations, s.snap.Users, s.snap.LoadedAt, true)
	return true
}
