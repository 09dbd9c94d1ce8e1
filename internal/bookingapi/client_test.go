package bookingapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtbook/internal/bookingapi"
	"courtbook/internal/bookingapi/bookingapitest"
	"courtbook/internal/model"
	"courtbook/internal/slots"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*bookingapitest.Server, *bookingapi.Client) {
	t.Helper()
	srv := bookingapitest.NewServer("socio@club.cl", "secreto")
	t.Cleanup(srv.Close)
	return srv, bookingapi.NewClient(srv.URL, time.Second, nil)
}

func mustTimestamp(t *testing.T, date slots.Date, hour int) slots.Timestamp {
	t.Helper()
	ts, err := slots.ToCanonicalTimestamp(date, hour)
	require.NoError(t, err)
	return ts
}

func TestLogin(t *testing.T) {
	srv, client := newFixture(t)
	ctx := context.Background()

	token, err := client.Login(ctx, bookingapi.Credentials{Email: "socio@club.cl", Password: "secreto"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = client.Login(ctx, bookingapi.Credentials{Email: "socio@club.cl", Password: "mala"})
	var re *bookingapi.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.Equal(t, "credenciales inválidas", re.Message)
	assert.Equal(t, 2, srv.Calls("POST /auth/login"))
}

func TestVerifyToken(t *testing.T) {
	srv, client := newFixture(t)
	srv.IssueToken("abc")
	ctx := context.Background()

	ok, err := client.VerifyToken(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.VerifyToken(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListReservationsAndUsers(t *testing.T) {
	srv, client := newFixture(t)
	srv.IssueToken("abc")
	srv.AddUser(model.User{ID: 7, FirstName: "Ana", LastName: "Pérez"})
	srv.AddReservation(model.Reservation{Court: slots.Covered, Start: mustTimestamp(t, slots.NewDate(2024, 6, 10), 18), RequesterID: 7})
	ctx := context.Background()

	reservations, err := client.ListReservations(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, 18, reservations[0].Hour())

	users, err := client.ListUsers(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana Pérez", users[0].FullName())

	_, err = client.ListReservations(ctx, "expired")
	assert.True(t, bookingapi.IsUnauthorized(err))
}

func TestCreateAndDeleteReservation(t *testing.T) {
	srv, client := newFixture(t)
	srv.IssueToken("abc")
	ctx := context.Background()

	nr := model.NewReservation{Court: slots.Outdoor, Start: mustTimestamp(t, slots.NewDate(2024, 6, 10), 9), RequesterID: 9}
	created, err := client.CreateReservation(ctx, "abc", nr)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, nr.Start, created.Start)

	_, err = client.CreateReservation(ctx, "abc", nr)
	var re *bookingapi.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusConflict, re.Status)

	require.NoError(t, client.DeleteReservation(ctx, "abc", created.ID))
	assert.Empty(t, srv.Reservations())

	err = client.DeleteReservation(ctx, "abc", created.ID)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)
}

func TestRemoteErrorOnTransportFailure(t *testing.T) {
	srv, client := newFixture(t)
	srv.Close()

	_, err := client.ListReservations(context.Background(), "abc")
	var re *bookingapi.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Zero(t, re.Status)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestTimeoutIsRemoteError(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	client := bookingapi.NewClient(slow.URL, 50*time.Millisecond, nil)
	_, err := client.ListUsers(context.Background(), "abc")
	var re *bookingapi.RemoteError
	assert.ErrorAs(t, err, &re)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := bookingapi.NewClient(srv.URL, time.Second, nil)
	_, err := client.ListReservations(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestPlainTextErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "base de datos caída", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := bookingapi.NewClient(srv.URL, time.Second, nil)
	err := client.DeleteReservation(context.Background(), "tok", 3)
	var re *bookingapi.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "base de datos caída", re.Message)
	assert.False(t, bookingapi.IsUnauthorized(err))
}

func TestForbiddenIsNotUnauthorized(t *testing.T) {
	srv, client := newFixture(t)
	srv.IssueToken("abc")
	srv.FailWith("DELETE /reservas", http.StatusForbidden)

	err := client.DeleteReservation(context.Background(), "abc", 1)
	assert.True(t, bookingapi.IsForbidden(err))
	assert.False(t, bookingapi.IsUnauthorized(err))

	_, err = client.ListReservations(context.Background(), "revoked")
	assert.True(t, bookingapi.IsUnauthorized(err))
	assert.False(t, bookingapi.IsForbidden(err))
}

func TestUsersRedisCache(t *testing.T) {
	srv, client := newFixture(t)
	srv.IssueToken("abc")
	srv.AddUser(model.User{ID: 1, FirstName: "Ana", LastName: "Pérez"})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	client.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		users, err := client.ListUsers(ctx, "abc")
		require.NoError(t, err)
		require.Len(t, users, 1)
	}
	assert.Equal(t, 1, srv.Calls("GET /usuarios"))

	// reservations bypass the cache
	for i := 0; i < 2; i++ {
		_, err := client.ListReservations(ctx, "abc")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, srv.Calls("GET /reservas"))

	client.InvalidateUsersCache(ctx)
	_, err := client.ListUsers(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls("GET /usuarios"))
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv, client := newFixture(t)
	srv.IssueToken("abc")
	client.UseRateLimit(0.001, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ListReservations(ctx, "abc")
	require.NoError(t, err)

	_, err = client.ListReservations(ctx, "abc")
	var re *bookingapi.RemoteError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, 1, srv.Calls("GET /reservas"))
}

func TestHealthCheck(t *testing.T) {
	_, client := newFixture(t)
	assert.NoError(t, client.HealthCheck(context.Background()))
}
