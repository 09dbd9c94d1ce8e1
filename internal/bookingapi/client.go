// Package bookingapi is the HTTP client for the remote booking service.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	usersCacheKey  = "courtbook:usuarios"
	maxErrorBody   = 4 << 10
)

// Credentials are posted to /auth/login.
type Credentials struct {
	Email    string `json:"correo"`
	Password string `json:"contraseña"`
}

// Client calls the booking service endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client for baseURL. A zero timeout uses 10s.
func NewClient(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "bookingapi").Logger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     l,
	}
}

// UseRedisCache enables a read-through cache for the user list.
// Reservations are never cached: every reload must see the remote truth.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit caps outgoing requests to rps with the given burst.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", "", creds, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &RemoteError{Op: "login", Message: "empty token in response"}
	}
	return resp.Token, nil
}

// VerifyToken asks the service whether token is still valid.
func (c *Client) VerifyToken(ctx context.Context, token string) (bool, error) {
	body := struct {
		Token string `json:"token"`
	}{Token: token}
	var resp struct {
		Valid bool `json:"valido"`
	}
	if err := c.doJSON(ctx, "verify token", http.MethodPost, "/auth/verify-token", token, body, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// ListReservations returns every reservation known to the service.
func (c *Client) ListReservations(ctx context.Context, token string) ([]model.Reservation, error) {
	var out []model.Reservation
	if err := c.doJSON(ctx, "list reservations", http.MethodGet, "/reservas", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers returns the club members.
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	var wrap struct {
		Users []model.User `json:"usuarios"`
	}

	if c.readCache(ctx, usersCacheKey, &wrap) {
		return wrap.Users, nil
	}

	if err := c.doJSON(ctx, "list users", http.MethodGet, "/usuarios", token, nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, usersCacheKey, wrap)
	return wrap.Users, nil
}

// CreateReservation submits a reservation and returns it with the server-assigned id.
func (c *Client) CreateReservation(ctx context.Context, token string, r model.NewReservation) (model.Reservation, error) {
	var created model.Reservation
	if err := c.doJSON(ctx, "create reservation", http.MethodPost, "/reservas", token, r, &created); err != nil {
		return model.Reservation{}, err
	}
	if created.ID == 0 {
		return model.Reservation{}, &RemoteError{Op: "create reservation", Message: "response without id"}
	}
	return created, nil
}

// DeleteReservation cancels a reservation by id.
func (c *Client) DeleteReservation(ctx context.Context, token string, id int64) error {
	return c.doJSON(ctx, "delete reservation", http.MethodDelete, "/reservas/"+strconv.FormatInt(id, 10), token, nil, nil)
}

// HealthCheck checks if the booking service answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.doJSON(ctx, "health check", http.MethodGet, "/healthz", "", nil, nil)
}

// InvalidateUsersCache drops the cached user list so the next reload refetches it.
func (c *Client) InvalidateUsersCache(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, usersCacheKey).Err()
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *Client) doJSON(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &RemoteError{Op: op, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveRemote(op, time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Msg("request failed")
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("booking service call")

	if resp.StatusCode >= 300 {
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readErrorMessage pulls a human message out of an error body, JSON or plain text.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var wrap struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Mensaje string `json:"mensaje"`
	}
	if json.Unmarshal(data, &wrap) == nil {
		for _, s := range []string{wrap.Mensaje, wrap.Message, wrap.Error} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(data))
}
