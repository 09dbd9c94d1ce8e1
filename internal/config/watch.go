package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// fileWatcher polls one config file. A change is a new modification time whose
// content hash also differs, so touching the file does not fire onUpdate.
type fileWatcher struct {
	path     string
	logger   zerolog.Logger
	onUpdate func(*Config)

	modTime time.Time
	sum     [sha256.Size]byte
}

// poll reports whether a new config was delivered. A broken file is remembered
// so it is reported once, and the previous config stays in effect.
func (w *fileWatcher) poll() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	if info.ModTime().Equal(w.modTime) {
		return false, nil
	}
	w.modTime = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(data)
	if sum == w.sum {
		return false, nil
	}
	w.sum = sum

	cfg, err := Parse(data)
	if err != nil {
		return false, fmt.Errorf("reload %s: %w", w.path, err)
	}
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
	return true, nil
}

// Watch delivers the config at path to onUpdate, then polls the file every
// interval until ctx is done. The first load must succeed.
func Watch(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Config)) error {
	if path == "" {
		path = PathFromEnv()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := &fileWatcher{path: path, logger: zerolog.Nop(), onUpdate: onUpdate}
	if logger != nil {
		w.logger = logger.With().Str("component", "config").Str("path", path).Logger()
	}

	if _, err := w.poll(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			changed, err := w.poll()
			switch {
			case err != nil:
				w.logger.Warn().Err(err).Msg("config reload skipped")
			case changed:
				w.logger.Info().Msg("config reloaded")
			}
		}
	}()
	return nil
}
