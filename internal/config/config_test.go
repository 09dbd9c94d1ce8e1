package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  log_level: debug
api:
  base_url: ${COURTBOOK_TEST_API}
  timeout_seconds: 5
  rate_limit: 2.5
  rate_burst: 3
auth:
  email: socio@club.cl
  password: ${COURTBOOK_TEST_PASSWORD}
  token_store: memory
history:
  page_size: 5
  contended_windows:
    - days: [mon, tue, wed, thu, fri]
      from_hour: 18
      to_hour: 22
    - days: [sat]
      from_hour: 8
      to_hour: 13
`

func TestParse(t *testing.T) {
	t.Setenv("COURTBOOK_TEST_API", "http://booking.local:8080")
	t.Setenv("COURTBOOK_TEST_PASSWORD", "secreto")

	cfg, err := Parse([]byte(baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://booking.local:8080", cfg.API.BaseURL)
	assert.Equal(t, "secreto", cfg.Auth.Password)
	assert.Equal(t, 5*time.Second, cfg.APITimeout())
	assert.Equal(t, 2.5, cfg.API.RateLimit)
	assert.Equal(t, "data/courtbook.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Minute, cfg.SessionRefreshInterval())
	assert.Zero(t, cfg.ReconcileInterval())

	require.Len(t, cfg.History.Windows, 2)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, cfg.History.Windows[0].Weekdays())
	assert.Equal(t, []time.Weekday{time.Saturday}, cfg.History.Windows[1].Weekdays())
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing base url",
			yaml:    "auth: {email: a@b.cl, password: x, token_store: memory}",
			wantErr: "Config.API.BaseURL is required",
		},
		{
			name:    "bad email",
			yaml:    "api: {base_url: 'http://x'}\nauth: {email: nope, password: x, token_store: memory}",
			wantErr: "Config.Auth.Email must be a valid email address",
		},
		{
			name:    "unknown token store",
			yaml:    "api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: disk}",
			wantErr: "Config.Auth.TokenStore must be one of sqlite redis memory",
		},
		{
			name:    "redis store without address",
			yaml:    "api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: redis}",
			wantErr: "redis.address is empty",
		},
		{
			name: "inverted window",
			yaml: "api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: memory}\n" +
				"history: {contended_windows: [{days: [mon], from_hour: 20, to_hour: 18}]}",
			wantErr: "ToHour must not be before FromHour",
		},
		{
			name: "unknown day",
			yaml: "api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: memory}\n" +
				"history: {contended_windows: [{days: [funday], from_hour: 8, to_hour: 9}]}",
			wantErr: "must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_PathFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: memory}\n"), 0o600))
	t.Setenv("COURTBOOK_CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://x", cfg.API.BaseURL)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(pageSize string, mod time.Time) {
		body := "api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: memory}\nhistory: {page_size: " + pageSize + "}\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	start := time.Now().Add(-time.Hour)
	write("5", start)

	var (
		mu   sync.Mutex
		seen []int
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := Watch(ctx, path, 10*time.Millisecond, nil, func(cfg *Config) {
		mu.Lock()
		seen = append(seen, cfg.History.PageSize)
		mu.Unlock()
	})
	require.NoError(t, err)

	// a broken edit is skipped
	require.NoError(t, os.WriteFile(path, []byte("api: ["), 0o600))
	require.NoError(t, os.Chtimes(path, start.Add(time.Minute), start.Add(time.Minute)))
	time.Sleep(50 * time.Millisecond)

	write("9", start.Add(2*time.Minute))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2 && seen[1] == 9
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 5, seen[0])
	mu.Unlock()
}

func TestFileWatcher_IgnoresTouchWithoutEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("api: {base_url: 'http://x'}\nauth: {email: a@b.cl, password: x, token_store: memory}\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	calls := 0
	w := &fileWatcher{path: path, logger: zerolog.Nop(), onUpdate: func(*Config) { calls++ }}

	changed, err := w.poll()
	require.NoError(t, err)
	assert.True(t, changed)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	changed, err = w.poll()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("api: ["), 0o600))
	broken := later.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, broken, broken))
	_, err = w.poll()
	assert.Error(t, err)
	changed, err = w.poll()
	require.NoError(t, err, "a broken file is reported once")
	assert.False(t, changed)

	assert.Equal(t, 1, calls)
}

func TestWatch_InitialLoadFails(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), time.Second, nil, nil)
	assert.Error(t, err)
}
